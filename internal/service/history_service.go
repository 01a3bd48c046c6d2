package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/tasksync/internal/domain"
	"github.com/mtlprog/tasksync/internal/repository"
)

// direction selects which side of an action record a replay applies.
type direction string

const (
	directionUndo direction = "undo"
	directionRedo direction = "redo"
)

// HistoryService implements per-user undo and redo over the action log.
type HistoryService struct {
	pool       *pgxpool.Pool
	taskRepo   *repository.TaskRepository
	actionRepo *repository.ActionRecordRepository
	opts       options
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	actionRepo *repository.ActionRecordRepository,
	opts ...Option,
) *HistoryService {
	return &HistoryService{
		pool:       pool,
		taskRepo:   taskRepo,
		actionRepo: actionRepo,
		opts:       buildOptions(opts),
	}
}

// Undo reverts the user's most recent outstanding action and marks it undone.
// Returns ErrNoActionsToUndo if the user has nothing to undo.
func (s *HistoryService) Undo(ctx context.Context, performedBy string) (domain.Result, error) {
	return s.replay(ctx, performedBy, directionUndo)
}

// Redo re-applies the user's most recently undone action and consumes its record.
// Returns ErrNoActionsToRedo if the user has nothing to redo.
func (s *HistoryService) Redo(ctx context.Context, performedBy string) (domain.Result, error) {
	return s.replay(ctx, performedBy, directionRedo)
}

// replay runs undo or redo as one transaction: lock the user's history, pick
// the latest eligible record, write the task, then flip or consume the record.
// The record changes only if the task write succeeded.
func (s *HistoryService) replay(ctx context.Context, performedBy string, dir direction) (domain.Result, error) {
	if err := validatePerformer(performedBy); err != nil {
		return domain.Result{}, err
	}

	storeCtx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(storeCtx)
	if err != nil {
		return domain.Result{}, storageError("begin transaction", err)
	}
	defer rollback(storeCtx, tx)

	if err := s.actionRepo.LockActor(storeCtx, tx, performedBy); err != nil {
		return domain.Result{}, storageError("lock history", err)
	}

	record, err := s.actionRepo.LatestForUpdate(storeCtx, tx, performedBy, dir == directionRedo)
	if err != nil {
		return domain.Result{}, storageError("select action record", err)
	}

	if err := record.Validate(); err != nil {
		return domain.Result{}, fmt.Errorf("%s action record %s: %w", dir, record.ID, err)
	}

	var result domain.Result
	switch dir {
	case directionUndo:
		result, err = s.apply(storeCtx, tx, record, undoTarget(record), "Create action undone")
		if err != nil {
			return domain.Result{}, err
		}
		if err := s.actionRepo.MarkUndone(storeCtx, tx, record.ID); err != nil {
			return domain.Result{}, storageError("mark action undone", err)
		}
	case directionRedo:
		result, err = s.apply(storeCtx, tx, record, redoTarget(record), "Delete action redone")
		if err != nil {
			return domain.Result{}, err
		}
		if err := s.actionRepo.Consume(storeCtx, tx, record.ID); err != nil {
			return domain.Result{}, storageError("consume action record", err)
		}
	}

	if err := tx.Commit(storeCtx); err != nil {
		return domain.Result{}, storageError("commit transaction", err)
	}

	historyReplays.WithLabelValues(string(dir), string(record.ActionType)).Inc()

	event := domain.NewActionUndoneEvent(record, result)
	if dir == directionRedo {
		event = domain.NewActionRedoneEvent(record, result)
	}

	pubCtx, pubCancel := detached(ctx, s.opts.storeTimeout)
	defer pubCancel()
	s.opts.publisher.Publish(pubCtx, event)

	slog.Info("action replayed",
		"direction", dir,
		"action_id", record.ID,
		"action_type", record.ActionType,
		"task_id", record.TaskID,
		"performed_by", performedBy,
	)

	return result, nil
}

// undoTarget returns the snapshot an undo restores, or nil if the task must be removed.
func undoTarget(record *domain.ActionRecord) *domain.Task {
	if record.ActionType == domain.ActionTypeCreate {
		return nil
	}
	return record.PreviousState
}

// redoTarget returns the snapshot a redo restores, or nil if the task must be removed.
func redoTarget(record *domain.ActionRecord) *domain.Task {
	if record.ActionType == domain.ActionTypeDelete {
		return nil
	}
	return record.NewState
}

// apply writes the snapshot over the record's task, or deletes the task when
// the snapshot is nil. Restores keep the original task id.
func (s *HistoryService) apply(
	ctx context.Context,
	tx pgx.Tx,
	record *domain.ActionRecord,
	snapshot *domain.Task,
	deletionMessage string,
) (domain.Result, error) {
	if snapshot == nil {
		existed, err := s.taskRepo.Delete(ctx, tx, record.TaskID)
		if err != nil {
			return domain.Result{}, storageError("delete task", err)
		}
		if !existed {
			slog.Warn("task already absent during history replay",
				"action_id", record.ID,
				"task_id", record.TaskID,
			)
		}
		return domain.Result{Deletion: &domain.Deletion{
			Message: deletionMessage,
			TaskID:  record.TaskID,
		}}, nil
	}

	target := snapshot.Clone()
	if target.ID == "" {
		target.ID = record.TaskID
	}

	task, err := s.taskRepo.Put(ctx, tx, target)
	if err != nil {
		return domain.Result{}, storageError("restore task", err)
	}
	return domain.Result{Task: task}, nil
}

// History returns the user's action records, most recent first.
func (s *HistoryService) History(ctx context.Context, performedBy string, limit int) ([]*domain.ActionRecord, error) {
	if err := validatePerformer(performedBy); err != nil {
		return nil, err
	}

	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	records, err := s.actionRepo.ListByActor(ctx, performedBy, limit)
	if err != nil {
		return nil, storageError("list action records", err)
	}
	return records, nil
}

// HistoryStats reports how many undo and redo steps the user has available.
func (s *HistoryService) HistoryStats(ctx context.Context, performedBy string) (domain.HistoryStats, error) {
	if err := validatePerformer(performedBy); err != nil {
		return domain.HistoryStats{}, err
	}

	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	stats, err := s.actionRepo.Stats(ctx, performedBy)
	if err != nil {
		return domain.HistoryStats{}, storageError("history stats", err)
	}
	return stats, nil
}

// StatsByActor reports undo and redo availability for every user with history.
func (s *HistoryService) StatsByActor(ctx context.Context) ([]domain.HistoryStats, error) {
	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	stats, err := s.actionRepo.StatsByActor(ctx)
	if err != nil {
		return nil, storageError("history stats by actor", err)
	}
	return stats, nil
}

// PruneHistory deletes action records older than the given age.
// Pruned actions can no longer be undone or redone.
func (s *HistoryService) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", domain.ErrValidation)
	}

	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	cutoff := PruneCutoff(time.Now(), olderThan)

	pruned, err := s.actionRepo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, storageError("prune history", err)
	}

	slog.Info("pruned action history",
		"cutoff", cutoff,
		"pruned", pruned,
	)
	return pruned, nil
}
