// Package errors provides coded application errors shared by all layers.
// Repositories and services attach a stable code to every failure; the HTTP
// layer maps codes to status codes without inspecting error strings.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeConcurrency  ErrorCode = "CONCURRENCY_ERROR"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Error is a coded application error with an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a coded error with no cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// NotFound creates a NOT_FOUND error for a resource/id pair.
func NotFound(resource, id string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// InvalidInput creates an INVALID_INPUT error for a named field.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("%s: %s", field, message),
	}
}

// Conflict creates a CONFLICT error.
func Conflict(message string) *Error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// CodeOf extracts the error code from an error chain.
// Unrecognized errors report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var appErr *Error
	if stdErrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether the error chain carries ErrCodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// IsConflict reports whether the error chain carries ErrCodeConflict or
// ErrCodeConcurrency, both of which mean "re-fetch and retry by hand".
func IsConflict(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeConflict || code == ErrCodeConcurrency
}

// IsInvalidInput reports whether the error chain carries ErrCodeInvalidInput.
func IsInvalidInput(err error) bool { return CodeOf(err) == ErrCodeInvalidInput }
