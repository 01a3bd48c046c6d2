package domain

import (
	"fmt"
	"time"
)

// ActionType represents the kind of task mutation an action record captures.
type ActionType string

const (
	ActionTypeCreate ActionType = "CREATE"
	ActionTypeUpdate ActionType = "UPDATE"
	ActionTypeDelete ActionType = "DELETE"
)

// IsValid checks if the action type is one of the allowed values.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionTypeCreate, ActionTypeUpdate, ActionTypeDelete:
		return true
	default:
		return false
	}
}

// ActionRecord is a logged task mutation with before/after snapshots.
// Records are partitioned by PerformedBy and ordered by (Timestamp, Seq).
type ActionRecord struct {
	ID            string     `json:"id"`
	Seq           int64      `json:"seq"`
	ActionType    ActionType `json:"action_type"`
	TaskID        string     `json:"task_id"`
	PreviousState *Task      `json:"previous_state,omitempty"` // nil for CREATE
	NewState      *Task      `json:"new_state,omitempty"`      // nil for DELETE
	PerformedBy   string     `json:"performed_by"`
	Timestamp     time.Time  `json:"timestamp"`
	IsUndone      bool       `json:"is_undone"`
	UndoneAt      *time.Time `json:"undone_at,omitempty"`
}

// Validate checks that the snapshots are consistent with the action type.
func (r *ActionRecord) Validate() error {
	if !r.ActionType.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidActionType, r.ActionType)
	}
	if r.TaskID == "" {
		return fmt.Errorf("%w: task id is empty", ErrInvalidActionRecord)
	}
	if r.PerformedBy == "" {
		return fmt.Errorf("%w: performed_by is empty", ErrInvalidActionRecord)
	}

	switch r.ActionType {
	case ActionTypeCreate:
		if r.PreviousState != nil || r.NewState == nil {
			return fmt.Errorf("%w: CREATE needs only a new state", ErrInvalidActionRecord)
		}
	case ActionTypeDelete:
		if r.PreviousState == nil || r.NewState != nil {
			return fmt.Errorf("%w: DELETE needs only a previous state", ErrInvalidActionRecord)
		}
	case ActionTypeUpdate:
		if r.PreviousState == nil || r.NewState == nil {
			return fmt.Errorf("%w: UPDATE needs both states", ErrInvalidActionRecord)
		}
	}
	return nil
}

// HistoryStats summarizes a user's undo/redo availability.
type HistoryStats struct {
	PerformedBy string `json:"performed_by"`
	Outstanding int    `json:"outstanding"` // records eligible for undo
	Undone      int    `json:"undone"`      // records eligible for redo
}

// CanUndo reports whether an undo would find a record.
func (s HistoryStats) CanUndo() bool { return s.Outstanding > 0 }

// CanRedo reports whether a redo would find a record.
func (s HistoryStats) CanRedo() bool { return s.Undone > 0 }
