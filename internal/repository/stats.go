package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/tasksync/internal/domain"
)

// statsColumns counts outstanding and undone records in one pass.
var statsColumns = []string{
	"performed_by",
	"COUNT(*) FILTER (WHERE NOT is_undone)",
	"COUNT(*) FILTER (WHERE is_undone)",
}

// Stats returns undo/redo availability for a single user.
// A user with no records gets zero counts, not an error.
func (r *ActionRecordRepository) Stats(ctx context.Context, performedBy string) (domain.HistoryStats, error) {
	stats := domain.HistoryStats{PerformedBy: performedBy}

	query, args, err := psql.
		Select(
			"COUNT(*) FILTER (WHERE NOT is_undone)",
			"COUNT(*) FILTER (WHERE is_undone)",
		).
		From("action_records").
		Where(sq.Eq{"performed_by": performedBy}).
		ToSql()
	if err != nil {
		return stats, fmt.Errorf("build Stats query for %s: %w", performedBy, err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&stats.Outstanding, &stats.Undone); err != nil {
		return stats, fmt.Errorf("query history stats: %w", err)
	}
	return stats, nil
}

// StatsByActor returns undo/redo availability for every user with history.
func (r *ActionRecordRepository) StatsByActor(ctx context.Context) ([]domain.HistoryStats, error) {
	query, args, err := psql.
		Select(statsColumns...).
		From("action_records").
		GroupBy("performed_by").
		OrderBy("performed_by").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build StatsByActor query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history stats by actor: %w", err)
	}
	defer rows.Close()

	result := []domain.HistoryStats{}
	for rows.Next() {
		var stats domain.HistoryStats
		if err := rows.Scan(&stats.PerformedBy, &stats.Outstanding, &stats.Undone); err != nil {
			return nil, fmt.Errorf("scan history stats: %w", err)
		}
		result = append(result, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
