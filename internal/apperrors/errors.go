// Package apperrors provides structured application errors with exit code mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation  = errors.New("validation error")
	ErrConfigRead  = errors.New("config read error")
	ErrConfigParse = errors.New("config parse error")
	ErrTransport   = errors.New("transport error")
	ErrApplication = errors.New("application error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "project", "jobset")
	Path       string // For config errors, the file that was loaded
	Op         string // Operation that failed (e.g., "hydra.login")
	StatusCode int    // For application errors, the HTTP status returned by the server
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so errors.Is
// matches the classification and errors.As still reaches transport errors.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// ConfigRead creates an error for a configuration file that could not be read.
func ConfigRead(path string, cause error) error {
	return &Error{
		Sentinel: ErrConfigRead,
		Message:  fmt.Sprintf("failed to read config file %s: %v", path, cause),
		Path:     path,
		Cause:    cause,
	}
}

// ConfigParse creates an error for a configuration document that does not
// match the jobset schema.
func ConfigParse(path string, cause error) error {
	return &Error{
		Sentinel: ErrConfigParse,
		Message:  fmt.Sprintf("failed to parse jobset configuration %s: %v", path, cause),
		Path:     path,
		Cause:    cause,
	}
}

// Transport creates an error for a request that never produced a response.
func Transport(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransport,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Application creates an error for a response with a non-success status.
func Application(op string, statusCode int, body string) error {
	msg := fmt.Sprintf("%s: server returned HTTP %d", op, statusCode)
	if body != "" {
		msg += ": " + body
	}
	return &Error{
		Sentinel:   ErrApplication,
		Message:    msg,
		Op:         op,
		StatusCode: statusCode,
	}
}

// StatusCode returns the HTTP status carried by an application error, or 0.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && errors.Is(appErr.Sentinel, ErrApplication) {
		return appErr.StatusCode
	}
	return 0
}
