package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation"        // Invalid input
	ErrCatStore      ErrorCategory = "store_unavailable" // Shared store unreachable or statement failed
	ErrCatMalformed  ErrorCategory = "malformed_payload" // Stored metrics payload failed to parse
	ErrCatCollector  ErrorCategory = "collector"         // Metrics collector misbehaved
	ErrCatNotFound   ErrorCategory = "not_found"         // Resource not found
	ErrCatTimeout    ErrorCategory = "timeout"           // Operation timed out
	ErrCatInternal   ErrorCategory = "internal"          // Unexpected internal error
)

// DomainError represents a structured error from the registry layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrStoreUnavailable creates a store error. Store errors are never retried
// inside the registry; callers own the retry policy.
func ErrStoreUnavailable(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatStore,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrMalformedMetrics creates a malformed payload error for an instance row.
func ErrMalformedMetrics(instanceID, message string) *DomainError {
	e := &DomainError{
		Category:  ErrCatMalformed,
		Code:      "BAD_METRICS_JSON",
		Message:   message,
		Retryable: false,
	}
	return e.WithDetail("instance_id", instanceID)
}

// ErrCollector creates a collector failure error.
func ErrCollector(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCollector,
		Code:      "COLLECTOR_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatInternal,
		Code:      "INTERNAL",
		Message:   message,
		Retryable: false,
	}
}

// IsCategory reports whether err is a DomainError of the given category.
func IsCategory(err error, cat ErrorCategory) bool {
	var domErr *DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return false
	}
	return domErr.Category == cat
}

// IsStoreUnavailable reports whether err indicates the shared store could
// not be reached. The HTTP layer uses this to switch to the fallback path.
func IsStoreUnavailable(err error) bool {
	return IsCategory(err, ErrCatStore)
}

// IsRetryable reports whether the error is worth retrying by the caller.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) && domErr != nil {
		return domErr.Retryable
	}
	return false
}
