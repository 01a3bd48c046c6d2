package domain

import "time"

// Task represents a to-do item shared by every connected viewer.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Completed     bool       `json:"completed"`
	CreatedBy     string     `json:"created_by"`
	LastUpdatedBy string     `json:"last_updated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"` // nil until the first update
}

// Clone returns a deep copy of the task, safe to keep as a snapshot.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.UpdatedAt != nil {
		updatedAt := *t.UpdatedAt
		c.UpdatedAt = &updatedAt
	}
	return &c
}

// Deletion confirms that a task was removed from the store.
type Deletion struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// Result is the outcome of an undo or redo: exactly one of Task or Deletion is set.
type Result struct {
	Task     *Task
	Deletion *Deletion
}

// Value returns whichever side of the result is populated, for serialization.
func (r Result) Value() any {
	if r.Deletion != nil {
		return r.Deletion
	}
	return r.Task
}
