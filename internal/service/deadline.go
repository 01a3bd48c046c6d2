package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/tasksync/internal/domain"
)

// withStoreDeadline bounds the store calls of one operation.
// A non-positive timeout leaves the context unbounded.
func withStoreDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// detached returns a context that survives the caller's cancellation, for
// side effects that run after the primary write has committed.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// PruneCutoff returns the instant before which history is considered expired.
func PruneCutoff(now time.Time, olderThan time.Duration) time.Time {
	return now.Add(-olderThan)
}

// storageError classifies a repository failure. Domain errors pass through
// unchanged; anything else is an I/O failure wrapped in ErrStorage.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrNoActionsToUndo),
		errors.Is(err, domain.ErrNoActionsToRedo),
		errors.Is(err, domain.ErrActionAlreadyApplied),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrStorage):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
	}
}

// rollback releases a transaction that was not committed.
func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}
