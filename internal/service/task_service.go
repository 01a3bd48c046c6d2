package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/tasksync/internal/domain"
	"github.com/mtlprog/tasksync/internal/repository"
)

// TaskService applies task mutations and records each one in the action log.
type TaskService struct {
	pool       *pgxpool.Pool
	taskRepo   *repository.TaskRepository
	actionRepo *repository.ActionRecordRepository
	recorder   *recorder
	opts       options
}

// NewTaskService creates a new TaskService. Records are appended to actionRepo
// unless WithHistoryWriter overrides it.
func NewTaskService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	actionRepo *repository.ActionRecordRepository,
	opts ...Option,
) *TaskService {
	o := buildOptions(opts)
	history := o.historyWriter
	if history == nil {
		history = actionRepo
	}

	return &TaskService{
		pool:       pool,
		taskRepo:   taskRepo,
		actionRepo: actionRepo,
		recorder:   newRecorder(history, o),
		opts:       o,
	}
}

// lockActor serializes the user's mutations, undo and redo until tx ends.
func (s *TaskService) lockActor(ctx context.Context, tx pgx.Tx, performedBy string) error {
	if err := s.actionRepo.LockActor(ctx, tx, performedBy); err != nil {
		return storageError("lock history", err)
	}
	return nil
}

// commit stamps the action time under the user's lock and commits tx.
// Records therefore sort in the order their mutations committed.
func (s *TaskService) commit(ctx context.Context, tx pgx.Tx) (time.Time, error) {
	performedAt, err := s.actionRepo.StoreClock(ctx, tx)
	if err != nil {
		return time.Time{}, storageError("stamp action", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, storageError("commit transaction", err)
	}
	return performedAt, nil
}

// afterCommit records the action and broadcasts the event on a context that
// outlives the caller, so a disconnecting client cannot drop the history entry.
func (s *TaskService) afterCommit(ctx context.Context, record *domain.ActionRecord, event domain.Event) {
	sideCtx, cancel := detached(ctx, s.opts.storeTimeout)
	defer cancel()

	s.recorder.record(sideCtx, record, event)
}

// GetTask returns a single task.
func (s *TaskService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, storageError("get task", err)
	}
	return task, nil
}

// ListTasks returns every task, newest first.
func (s *TaskService) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	ctx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	tasks, err := s.taskRepo.List(ctx)
	if err != nil {
		return nil, storageError("list tasks", err)
	}
	return tasks, nil
}

// CreateTask inserts a new task on behalf of the user and logs a CREATE record.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	if err := validateCreate(params); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(storeCtx)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer rollback(storeCtx, tx)

	if err := s.lockActor(storeCtx, tx, params.PerformedBy); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Create(storeCtx, tx, &domain.Task{
		Title:         params.Title,
		Description:   params.Description,
		Completed:     false,
		CreatedBy:     params.PerformedBy,
		LastUpdatedBy: params.PerformedBy,
	})
	if err != nil {
		return nil, storageError("create task", err)
	}

	performedAt, err := s.commit(storeCtx, tx)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, &domain.ActionRecord{
		ActionType:  domain.ActionTypeCreate,
		TaskID:      task.ID,
		NewState:    task.Clone(),
		PerformedBy: params.PerformedBy,
		Timestamp:   performedAt,
	}, domain.NewTaskCreatedEvent(task))

	slog.Info("task created",
		"task_id", task.ID,
		"performed_by", params.PerformedBy,
	)

	return task, nil
}

// UpdateTask overwrites the provided fields of a task and logs an UPDATE record
// holding the full before and after snapshots.
func (s *TaskService) UpdateTask(ctx context.Context, taskID string, params UpdateTaskParams) (*domain.Task, error) {
	if err := validateUpdate(params); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(storeCtx)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer rollback(storeCtx, tx)

	if err := s.lockActor(storeCtx, tx, params.PerformedBy); err != nil {
		return nil, err
	}

	previous, err := s.taskRepo.GetByIDForUpdate(storeCtx, tx, taskID)
	if err != nil {
		return nil, storageError("get task", err)
	}

	updated, err := s.taskRepo.Update(storeCtx, tx, applyUpdate(previous, params))
	if err != nil {
		return nil, storageError("update task", err)
	}

	performedAt, err := s.commit(storeCtx, tx)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, &domain.ActionRecord{
		ActionType:    domain.ActionTypeUpdate,
		TaskID:        updated.ID,
		PreviousState: previous,
		NewState:      updated.Clone(),
		PerformedBy:   params.PerformedBy,
		Timestamp:     performedAt,
	}, domain.NewTaskUpdatedEvent(updated))

	slog.Info("task updated",
		"task_id", updated.ID,
		"performed_by", params.PerformedBy,
		"completed", updated.Completed,
	)

	return updated, nil
}

// DeleteTask removes a task and logs a DELETE record holding its last state.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string, performedBy string) (*domain.Deletion, error) {
	if err := validatePerformer(performedBy); err != nil {
		return nil, err
	}

	storeCtx, cancel := withStoreDeadline(ctx, s.opts.storeTimeout)
	defer cancel()

	tx, err := s.pool.Begin(storeCtx)
	if err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer rollback(storeCtx, tx)

	if err := s.lockActor(storeCtx, tx, performedBy); err != nil {
		return nil, err
	}

	previous, err := s.taskRepo.GetByIDForUpdate(storeCtx, tx, taskID)
	if err != nil {
		return nil, storageError("get task", err)
	}

	existed, err := s.taskRepo.Delete(storeCtx, tx, taskID)
	if err != nil {
		return nil, storageError("delete task", err)
	}
	if !existed {
		return nil, domain.ErrTaskNotFound
	}

	performedAt, err := s.commit(storeCtx, tx)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, &domain.ActionRecord{
		ActionType:    domain.ActionTypeDelete,
		TaskID:        previous.ID,
		PreviousState: previous,
		PerformedBy:   performedBy,
		Timestamp:     performedAt,
	}, domain.NewTaskDeletedEvent(previous.ID))

	slog.Info("task deleted",
		"task_id", previous.ID,
		"performed_by", performedBy,
	)

	return &domain.Deletion{
		Message: "Task deleted successfully",
		TaskID:  previous.ID,
	}, nil
}
