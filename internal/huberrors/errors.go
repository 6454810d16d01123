// Package huberrors provides sentinel and custom error types for the application.
package huberrors

import "time"

// ErrNotFound represents a "not found" error.
// Use when a requested resource doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrForbidden is the sentinel for authorization failures on an existing resource.
var ErrForbidden = &ForbiddenError{}

// ForbiddenError is returned when the caller is authenticated but not allowed to act.
type ForbiddenError struct {
	Message string
}

// NewForbiddenError creates a ForbiddenError with a custom message.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "forbidden"
}

// Is implements the error interface for error comparison.
func (e *ForbiddenError) Is(target error) bool {
	_, ok := target.(*ForbiddenError)

	return ok
}

// ErrLimitExceeded is the sentinel for rate-limit rejections.
var ErrLimitExceeded = &LimitExceededError{}

// LimitExceededError is returned when a caller exhausted its request budget.
// Reset is when the next request will be admitted.
type LimitExceededError struct {
	Message   string
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewLimitExceededError creates a LimitExceededError carrying the limiter state.
func NewLimitExceededError(message string, limit, remaining int, reset time.Time) *LimitExceededError {
	return &LimitExceededError{Message: message, Limit: limit, Remaining: remaining, Reset: reset}
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "limit exceeded"
}

// Is implements the error interface for error comparison.
func (e *LimitExceededError) Is(target error) bool {
	_, ok := target.(*LimitExceededError)

	return ok
}
