// Package errors defines the stable error taxonomy for simdb.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// MalformedHeader indicates a column header that does not match the
	// expected grammar, or one with duplicate parameter names. Fatal to the
	// import that encountered it.
	MalformedHeader ErrorCode = "MALFORMED_HEADER"
	// InvalidReference indicates a metric computation was given a degenerate
	// reference value (e.g. ideal == 0). Fatal to that series' metric only.
	InvalidReference ErrorCode = "INVALID_REFERENCE"
	// NotFound indicates a query for a nonexistent id. Recoverable; surfaced
	// to the caller or relayed to the chat model.
	NotFound ErrorCode = "NOT_FOUND"
	// ImportAborted indicates a series-level failure during a batched import.
	// The whole import is rolled back.
	ImportAborted ErrorCode = "IMPORT_ABORTED"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// SimError represents a simdb error with a stable code and optional details
type SimError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new SimError
func New(code ErrorCode, message string, cause error) *SimError {
	return &SimError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new SimError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *SimError {
	return &SimError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *SimError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *SimError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *SimError) WithDetails(details interface{}) *SimError {
	e.Details = details
	return e
}

// CodeOf returns the error code carried by err, or InternalError if err is
// not a SimError.
func CodeOf(err error) ErrorCode {
	var se *SimError
	if errors.As(err, &se) {
		return se.Code
	}
	return InternalError
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var se *SimError
		if !errors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Unwrap()
	}
	return false
}
