package dto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mtlprog/tasksync/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	switch {
	// Validation errors
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	// Lookup errors
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrNoActionsToUndo):
		return http.StatusNotFound, "NO_ACTIONS_TO_UNDO", message
	case errors.Is(err, domain.ErrNoActionsToRedo):
		return http.StatusNotFound, "NO_ACTIONS_TO_REDO", message

	// History errors
	case errors.Is(err, domain.ErrActionAlreadyApplied):
		return http.StatusConflict, "ACTION_ALREADY_APPLIED", message
	case errors.Is(err, domain.ErrInvalidActionRecord), errors.Is(err, domain.ErrInvalidActionType):
		slog.Error("corrupt action record", "error", err)
		return http.StatusInternalServerError, "INVALID_ACTION_RECORD", "Action record is corrupt"

	// Storage errors
	case errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err):
		slog.Warn("storage timeout", "error", err)
		return http.StatusServiceUnavailable, "STORAGE_TIMEOUT", "Storage did not respond in time"
	case errors.Is(err, domain.ErrStorage):
		slog.Error("storage failure", "error", err)
		return http.StatusInternalServerError, "STORAGE_ERROR", "Storage failure"

	// Default: internal server error
	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
