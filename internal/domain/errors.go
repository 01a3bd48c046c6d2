package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Validation errors
	ErrValidation = errors.New("validation failed")

	// Lookup errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrNoActionsToUndo = errors.New("no actions to undo")
	ErrNoActionsToRedo = errors.New("no actions to redo")

	// History errors
	ErrActionAlreadyApplied = errors.New("action already applied")
	ErrInvalidActionRecord  = errors.New("invalid action record")
	ErrInvalidActionType    = errors.New("invalid action type")

	// Storage errors. Wraps every Task Store and Action Log Store failure.
	ErrStorage = errors.New("storage failure")
)
