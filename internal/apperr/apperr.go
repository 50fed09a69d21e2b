// Package apperr defines the error type services return for failures the
// client is expected to see, each carrying its HTTP status and a stable code.
package apperr

import (
	"errors"
	"net/http"
)

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type AppError struct {
	Status  int
	Code    string
	Message string
	Details []FieldError
}

func (e *AppError) Error() string {
	return e.Message
}

func New(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func BadRequest(code, message string) *AppError {
	return New(http.StatusBadRequest, code, message)
}

func Validation(details []FieldError) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    "validation_error",
		Message: "Validation failed",
		Details: details,
	}
}

func Unauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, "forbidden", message)
}

func NotFound(message string) *AppError {
	return New(http.StatusNotFound, "not_found", message)
}

func Conflict(code, message string) *AppError {
	return New(http.StatusConflict, code, message)
}

func Internal(message string) *AppError {
	return New(http.StatusInternalServerError, "internal_error", message)
}

func Unavailable(message string) *AppError {
	return New(http.StatusServiceUnavailable, "unavailable", message)
}

// As unwraps err into an *AppError when one is in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Shared domain failures.
var (
	ErrNotMember        = Forbidden("You are not a member of this group")
	ErrAdminOnly        = Forbidden("Only group admins can do this")
	ErrGroupNotFound    = NotFound("Group not found")
	ErrChallengeMissing = NotFound("Challenge not found")
	ErrTaskMissing      = NotFound("Task not found")
	ErrUserNotFound     = NotFound("User not found")
	ErrInvalidCode      = BadRequest("invalid_code", "Invalid or expired code")
	ErrTaskNotDue       = BadRequest("task_not_due", "Only today's task can be completed")
	ErrDeadlinePassed   = BadRequest("deadline_passed", "Today's deadline has passed")
	ErrAlreadyCompleted = BadRequest("already_completed", "Task already completed")
)
