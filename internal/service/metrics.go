package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// historyWriteFailures counts action records lost after a successful task write.
	historyWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_history_write_failures_total",
			Help: "Action history writes that failed after the task mutation succeeded",
		},
		[]string{"action_type", "step"},
	)

	// actionsRecorded counts action records appended to the log.
	actionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_actions_recorded_total",
			Help: "Action records appended to the history log",
		},
		[]string{"action_type"},
	)

	// historyReplays counts applied undo and redo operations.
	historyReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasksync_history_replays_total",
			Help: "Undo and redo operations applied to the task store",
		},
		[]string{"direction", "action_type"},
	)
)
