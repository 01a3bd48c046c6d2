package dto

import "github.com/mtlprog/tasksync/internal/domain"

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
	Total int            `json:"total"`
}

// NewTasksListResponse wraps a task list, never encoding tasks as null.
func NewTasksListResponse(tasks []*domain.Task) TasksListResponse {
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return TasksListResponse{Tasks: tasks, Total: len(tasks)}
}

// HistoryResponse represents the response for GET /history.
type HistoryResponse struct {
	Actions []*domain.ActionRecord `json:"actions"`
	Stats   HistoryStatsResponse   `json:"stats"`
}

// HistoryStatsResponse represents the response for GET /history/stats.
type HistoryStatsResponse struct {
	PerformedBy string `json:"performed_by"`
	Outstanding int    `json:"outstanding"`
	Undone      int    `json:"undone"`
	CanUndo     bool   `json:"can_undo"`
	CanRedo     bool   `json:"can_redo"`
}

// ToHistoryStatsResponse converts domain stats to the response shape.
func ToHistoryStatsResponse(s domain.HistoryStats) HistoryStatsResponse {
	return HistoryStatsResponse{
		PerformedBy: s.PerformedBy,
		Outstanding: s.Outstanding,
		Undone:      s.Undone,
		CanUndo:     s.CanUndo(),
		CanRedo:     s.CanRedo(),
	}
}
