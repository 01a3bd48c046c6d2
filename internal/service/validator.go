package service

import (
	"fmt"
	"strings"

	"github.com/mtlprog/tasksync/internal/domain"
)

// CreateTaskParams holds the input of CreateTask.
type CreateTaskParams struct {
	Title       string
	Description string
	PerformedBy string
}

// UpdateTaskParams holds the input of UpdateTask. Nil fields are left unchanged.
type UpdateTaskParams struct {
	Title       *string
	Description *string
	Completed   *bool
	PerformedBy string
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// validatePerformer rejects requests without an acting user.
func validatePerformer(performedBy string) error {
	if isBlank(performedBy) {
		return fmt.Errorf("%w: performed_by is required", domain.ErrValidation)
	}
	return nil
}

// validateCreate checks that every required field of a new task is present.
func validateCreate(p CreateTaskParams) error {
	if isBlank(p.Title) {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if isBlank(p.Description) {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	return validatePerformer(p.PerformedBy)
}

// validateUpdate checks the performer and that provided text fields stay non-empty.
func validateUpdate(p UpdateTaskParams) error {
	if err := validatePerformer(p.PerformedBy); err != nil {
		return err
	}
	if p.Title != nil && isBlank(*p.Title) {
		return fmt.Errorf("%w: title must not be empty", domain.ErrValidation)
	}
	if p.Description != nil && isBlank(*p.Description) {
		return fmt.Errorf("%w: description must not be empty", domain.ErrValidation)
	}
	return nil
}

// applyUpdate merges the provided fields into a copy of the current task.
func applyUpdate(current *domain.Task, p UpdateTaskParams) *domain.Task {
	next := current.Clone()
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Completed != nil {
		next.Completed = *p.Completed
	}
	next.LastUpdatedBy = p.PerformedBy
	return next
}
