// Package errors defines the application error taxonomy used across killfeed.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNetwork indicates a transport-level failure reaching a remote service.
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeHTTP indicates a non-2xx response from a remote service.
	ErrCodeHTTP ErrorCode = "http"
	// ErrCodeDecode indicates malformed JSON or a missing expected field.
	ErrCodeDecode ErrorCode = "decode"
	// ErrCodeValidation indicates a token signature, claims, or issuer failure.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodePersistence indicates a storage operation failure.
	ErrCodePersistence ErrorCode = "persistence"
	// ErrCodeQueueFull indicates a non-blocking enqueue was rejected.
	ErrCodeQueueFull ErrorCode = "queue_full"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError is a structured application error with a code, message, and
// optional cause. It supports errors.Is and errors.As through Unwrap.
type AppError struct {
	// Code categorizes the error type.
	Code ErrorCode
	// Message is a human-readable error message.
	Message string
	// Cause is the underlying error, when one exists.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Network creates a new network error.
func Network(message string) *AppError {
	return &AppError{Code: ErrCodeNetwork, Message: message}
}

// HTTP creates a new remote-response error.
func HTTP(message string) *AppError {
	return &AppError{Code: ErrCodeHTTP, Message: message}
}

// HTTPf creates a new remote-response error with a formatted message.
func HTTPf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeHTTP, Message: fmt.Sprintf(format, args...)}
}

// Decode creates a new decode error.
func Decode(message string) *AppError {
	return &AppError{Code: ErrCodeDecode, Message: message}
}

// Validation creates a new validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Persistence creates a new persistence error.
func Persistence(message string) *AppError {
	return &AppError{Code: ErrCodePersistence, Message: message}
}

// QueueFull creates a new queue-full error.
func QueueFull(message string) *AppError {
	return &AppError{Code: ErrCodeQueueFull, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error carries a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNetwork checks if an error is a network error.
func IsNetwork(err error) bool { return isCode(err, ErrCodeNetwork) }

// IsHTTP checks if an error is a remote-response error.
func IsHTTP(err error) bool { return isCode(err, ErrCodeHTTP) }

// IsDecode checks if an error is a decode error.
func IsDecode(err error) bool { return isCode(err, ErrCodeDecode) }

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsPersistence checks if an error is a persistence error.
func IsPersistence(err error) bool { return isCode(err, ErrCodePersistence) }

// IsQueueFull checks if an error is a queue-full error.
func IsQueueFull(err error) bool { return isCode(err, ErrCodeQueueFull) }

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// GetCode returns the ErrorCode from an error, or empty string if it is not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
