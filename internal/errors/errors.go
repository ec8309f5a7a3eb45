// Package errors provides error code definitions shared across the core.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrDatabase       ErrorCode = "DATABASE_ERROR"
	ErrMigration      ErrorCode = "MIGRATION_FAILED"
	ErrStorageNotOpen ErrorCode = "STORAGE_NOT_OPEN"

	// Transport errors
	ErrTransport        ErrorCode = "TRANSPORT_ERROR"
	ErrBusinessConflict ErrorCode = "BUSINESS_CONFLICT"

	// Sync errors
	ErrSyncFailed ErrorCode = "SYNC_FAILED"

	// NoPendingAction is a benign control-flow signal: the drain loop
	// asked for the next action and the queue was empty. It must never
	// be surfaced to the UI as a fault.
	ErrNoPendingAction ErrorCode = "NO_PENDING_ACTION"
)

// AppError represents an application error with code and message.
// FieldErrors carries per-field validation details reported by the
// server for BUSINESS_CONFLICT and VALIDATION_ERROR codes.
type AppError struct {
	Code        ErrorCode
	Message     string
	FieldErrors map[string]string
	Err         error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithFields attaches per-field error details and returns the error.
func (e *AppError) WithFields(fields map[string]string) *AppError {
	e.FieldErrors = fields
	return e
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
