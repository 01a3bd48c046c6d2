package config

import "time"

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultRedisURL is empty; cross-instance fan-out is off unless set.
	DefaultRedisURL = ""

	// DefaultStoreTimeout bounds the store calls of a single operation.
	DefaultStoreTimeout = 5 * time.Second

	// DefaultRedoPolicy discards a user's redo stack on their next mutation.
	DefaultRedoPolicy = "clear"

	// DefaultHistoryRetention is the age past which prune-history drops action records.
	DefaultHistoryRetention = 30 * 24 * time.Hour

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout = 10 * time.Second
)
