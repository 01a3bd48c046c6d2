package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/tasksync/internal/domain"
)

// actionRecordColumns is the shared list of columns for action record queries.
var actionRecordColumns = []string{
	"id", "seq", "action_type", "task_id", "previous_state", "new_state",
	"performed_by", "performed_at", "is_undone", "undone_at",
}

// ActionRecordRepository handles database operations for the action log.
type ActionRecordRepository struct {
	pool *pgxpool.Pool
}

// NewActionRecordRepository creates a new ActionRecordRepository.
func NewActionRecordRepository(pool *pgxpool.Pool) *ActionRecordRepository {
	return &ActionRecordRepository{pool: pool}
}

// encodeSnapshot serializes a task snapshot for a JSONB column. nil stays NULL.
func encodeSnapshot(task *domain.Task) ([]byte, error) {
	if task == nil {
		return nil, nil
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot of task %s: %w", task.ID, err)
	}
	return data, nil
}

// decodeSnapshot parses a JSONB column back into a task snapshot.
func decodeSnapshot(data []byte) (*domain.Task, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &task, nil
}

// scanActionRecord scans a single row into an ActionRecord struct.
func scanActionRecord(row pgx.Row) (*domain.ActionRecord, error) {
	var (
		record        domain.ActionRecord
		previousState []byte
		newState      []byte
	)
	err := row.Scan(
		&record.ID,
		&record.Seq,
		&record.ActionType,
		&record.TaskID,
		&previousState,
		&newState,
		&record.PerformedBy,
		&record.Timestamp,
		&record.IsUndone,
		&record.UndoneAt,
	)
	if err != nil {
		return nil, err
	}

	if record.PreviousState, err = decodeSnapshot(previousState); err != nil {
		return nil, fmt.Errorf("action record %s previous_state: %w", record.ID, err)
	}
	if record.NewState, err = decodeSnapshot(newState); err != nil {
		return nil, fmt.Errorf("action record %s new_state: %w", record.ID, err)
	}
	return &record, nil
}

// Append inserts a new outstanding record. ID and Seq are assigned by the store;
// Timestamp is kept when set and defaults to the store clock otherwise.
func (r *ActionRecordRepository) Append(ctx context.Context, record *domain.ActionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	previousState, err := encodeSnapshot(record.PreviousState)
	if err != nil {
		return err
	}
	newState, err := encodeSnapshot(record.NewState)
	if err != nil {
		return err
	}

	columns := []string{"action_type", "task_id", "previous_state", "new_state", "performed_by"}
	values := []any{record.ActionType, record.TaskID, previousState, newState, record.PerformedBy}
	if !record.Timestamp.IsZero() {
		columns = append(columns, "performed_at")
		values = append(values, record.Timestamp)
	}

	query, args, err := psql.
		Insert("action_records").
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING id, seq, performed_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Append query for action record: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&record.ID, &record.Seq, &record.Timestamp)
	if err != nil {
		return fmt.Errorf("append action record: %w", err)
	}

	record.IsUndone = false
	record.UndoneAt = nil
	return nil
}

// LockActor takes a transaction-scoped advisory lock for the user.
// Mutations, undo and redo for the same user serialize on it; other users are unaffected.
func (r *ActionRecordRepository) LockActor(ctx context.Context, tx pgx.Tx, performedBy string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", performedBy); err != nil {
		return fmt.Errorf("lock history of %s: %w", performedBy, err)
	}
	return nil
}

// StoreClock reads the store's clock inside tx. Read while LockActor is held,
// it orders a user's mutations the way they commit.
func (r *ActionRecordRepository) StoreClock(ctx context.Context, tx pgx.Tx) (time.Time, error) {
	var now time.Time
	if err := tx.QueryRow(ctx, "SELECT clock_timestamp()").Scan(&now); err != nil {
		return time.Time{}, fmt.Errorf("read store clock: %w", err)
	}
	return now, nil
}

// latest selects the user's most recent record with the given flag.
// Ties on performed_at are broken by seq, which is strictly increasing.
func (r *ActionRecordRepository) latest(
	ctx context.Context,
	q querier,
	performedBy string,
	isUndone bool,
	forUpdate bool,
) (*domain.ActionRecord, error) {
	qb := psql.
		Select(actionRecordColumns...).
		From("action_records").
		Where(sq.Eq{"performed_by": performedBy, "is_undone": isUndone}).
		OrderBy("performed_at DESC", "seq DESC").
		Limit(1)
	if forUpdate {
		qb = qb.Suffix("FOR UPDATE")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest query for %s: %w", performedBy, err)
	}

	record, err := scanActionRecord(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if isUndone {
				return nil, domain.ErrNoActionsToRedo
			}
			return nil, domain.ErrNoActionsToUndo
		}
		return nil, fmt.Errorf("query latest action record: %w", err)
	}
	return record, nil
}

// LatestForUpdate row-locks and returns the user's most recent record with the given flag.
// Returns ErrNoActionsToUndo or ErrNoActionsToRedo if there is none.
func (r *ActionRecordRepository) LatestForUpdate(
	ctx context.Context,
	tx pgx.Tx,
	performedBy string,
	isUndone bool,
) (*domain.ActionRecord, error) {
	return r.latest(ctx, tx, performedBy, isUndone, true)
}

// Latest returns the user's most recent record with the given flag without locking.
func (r *ActionRecordRepository) Latest(ctx context.Context, performedBy string, isUndone bool) (*domain.ActionRecord, error) {
	return r.latest(ctx, r.pool, performedBy, isUndone, false)
}

// MarkUndone flips an outstanding record to undone.
// Returns ErrActionAlreadyApplied if the record is no longer outstanding.
func (r *ActionRecordRepository) MarkUndone(ctx context.Context, tx pgx.Tx, recordID string) error {
	query, args, err := psql.
		Update("action_records").
		Set("is_undone", true).
		Set("undone_at", sq.Expr("clock_timestamp()")).
		Where(sq.Eq{
			"id":        recordID,
			"is_undone": false,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkUndone query for action record %s: %w", recordID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark action record undone: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrActionAlreadyApplied
	}
	return nil
}

// Consume removes an undone record after it has been redone.
// Returns ErrActionAlreadyApplied if the record is not in the undone state.
func (r *ActionRecordRepository) Consume(ctx context.Context, tx pgx.Tx, recordID string) error {
	query, args, err := psql.
		Delete("action_records").
		Where(sq.Eq{
			"id":        recordID,
			"is_undone": true,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Consume query for action record %s: %w", recordID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("consume action record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrActionAlreadyApplied
	}
	return nil
}

// DiscardUndone deletes every redo-eligible record of the user.
func (r *ActionRecordRepository) DiscardUndone(ctx context.Context, performedBy string) (int64, error) {
	query, args, err := psql.
		Delete("action_records").
		Where(sq.Eq{
			"performed_by": performedBy,
			"is_undone":    true,
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build DiscardUndone query for %s: %w", performedBy, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("discard undone action records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByActor returns the user's records, most recent first.
func (r *ActionRecordRepository) ListByActor(ctx context.Context, performedBy string, limit int) ([]*domain.ActionRecord, error) {
	qb := psql.
		Select(actionRecordColumns...).
		From("action_records").
		Where(sq.Eq{"performed_by": performedBy}).
		OrderBy("performed_at DESC", "seq DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByActor query for %s: %w", performedBy, err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query action records: %w", err)
	}
	defer rows.Close()

	records := []*domain.ActionRecord{}
	for rows.Next() {
		record, err := scanActionRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// PruneBefore deletes records performed before the cutoff, regardless of state.
func (r *ActionRecordRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := psql.
		Delete("action_records").
		Where(sq.Lt{"performed_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build PruneBefore query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune action records: %w", err)
	}
	return tag.RowsAffected(), nil
}
