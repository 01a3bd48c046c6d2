package service

import (
	"context"
	"log/slog"

	"github.com/mtlprog/tasksync/internal/domain"
)

// recorder runs the side effects that follow a committed task mutation:
// the action record append and the broadcast. Neither can fail the mutation.
type recorder struct {
	history   HistoryWriter
	publisher Publisher
	policy    RedoPolicy
}

func newRecorder(history HistoryWriter, o options) *recorder {
	return &recorder{
		history:   history,
		publisher: o.publisher,
		policy:    o.redoPolicy,
	}
}

// record appends the action record and then publishes the event.
// History failures are logged and counted; the event is published regardless.
func (r *recorder) record(ctx context.Context, rec *domain.ActionRecord, event domain.Event) {
	actionType := string(rec.ActionType)

	if r.policy == RedoPolicyClear {
		discarded, err := r.history.DiscardUndone(ctx, rec.PerformedBy)
		if err != nil {
			historyWriteFailures.WithLabelValues(actionType, "discard_undone").Inc()
			slog.Error("failed to discard redo history",
				"performed_by", rec.PerformedBy,
				"error", err,
			)
		} else if discarded > 0 {
			slog.Debug("discarded redo history",
				"performed_by", rec.PerformedBy,
				"count", discarded,
			)
		}
	}

	if err := r.history.Append(ctx, rec); err != nil {
		historyWriteFailures.WithLabelValues(actionType, "append").Inc()
		slog.Error("failed to record action history",
			"action_type", rec.ActionType,
			"task_id", rec.TaskID,
			"performed_by", rec.PerformedBy,
			"error", err,
		)
	} else {
		actionsRecorded.WithLabelValues(actionType).Inc()
	}

	r.publisher.Publish(ctx, event)
}
