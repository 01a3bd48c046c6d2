package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mtlprog/tasksync/internal/domain"
)

// RedoPolicy decides what happens to a user's undone records when that user
// performs a new mutation.
type RedoPolicy string

const (
	// RedoPolicyClear discards redo-eligible records on any new mutation by the same user.
	RedoPolicyClear RedoPolicy = "clear"
	// RedoPolicyPreserve keeps undone records redoable indefinitely.
	RedoPolicyPreserve RedoPolicy = "preserve"
)

// ParseRedoPolicy converts a flag value into a RedoPolicy.
func ParseRedoPolicy(s string) (RedoPolicy, error) {
	switch RedoPolicy(s) {
	case RedoPolicyClear, RedoPolicyPreserve:
		return RedoPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown redo policy %q (want %q or %q)", s, RedoPolicyClear, RedoPolicyPreserve)
	}
}

const defaultStoreTimeout = 5 * time.Second

// Publisher fans out events to connected viewers. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// HistoryWriter persists action records outside of the task transaction.
// *repository.ActionRecordRepository satisfies it.
type HistoryWriter interface {
	Append(ctx context.Context, record *domain.ActionRecord) error
	DiscardUndone(ctx context.Context, performedBy string) (int64, error)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) {}

type options struct {
	storeTimeout  time.Duration
	redoPolicy    RedoPolicy
	publisher     Publisher
	historyWriter HistoryWriter
}

// Option configures TaskService and HistoryService.
type Option func(*options)

// WithStoreTimeout bounds every store access of a single operation. Zero disables the bound.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) {
		o.storeTimeout = d
	}
}

// WithRedoPolicy selects how new mutations treat pending redo records.
func WithRedoPolicy(p RedoPolicy) Option {
	return func(o *options) {
		o.redoPolicy = p
	}
}

// WithPublisher sets the broadcast channel that receives every state change.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithHistoryWriter overrides where mutation records are appended.
func WithHistoryWriter(w HistoryWriter) Option {
	return func(o *options) {
		if w != nil {
			o.historyWriter = w
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		storeTimeout: defaultStoreTimeout,
		redoPolicy:   RedoPolicyClear,
		publisher:    noopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
