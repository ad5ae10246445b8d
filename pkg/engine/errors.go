package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for handling and
// surfacing decisions.
type ErrorClass string

const (
	// ErrorClassValidation indicates a synchronously rejected input.
	// Raised only on the policy authoring path; evaluation never validates.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassNotFound indicates a lookup miss. Surfaced as a structured
	// result, never as a panic.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassStorage indicates a persistence failure. On the recording
	// path these are swallowed into a typed result and surfaced through
	// logging and metrics only.
	ErrorClassStorage ErrorClass = "storage"

	// ErrorClassSkip indicates an isolated per-policy evaluation failure.
	// The remaining policies are unaffected.
	ErrorClassSkip ErrorClass = "skip"
)

// GovernanceError represents a classified error with context.
type GovernanceError struct {
	// Class is the error classification for handling logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the resource or policy ID that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *GovernanceError) Error() string {
	if e.Resource != "" && e.Operation != "" {
		return fmt.Sprintf("[%s] %s (resource=%s, operation=%s): %s",
			e.Class, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	}
	if e.Resource != "" {
		return fmt.Sprintf("[%s] %s (resource=%s): %s",
			e.Class, e.Message, e.Resource, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *GovernanceError) Unwrap() error {
	return e.Err
}

// unwrapMessage returns the error message from the underlying error chain.
func (e *GovernanceError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *GovernanceError) Is(target error) bool {
	t, ok := target.(*GovernanceError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *GovernanceError {
	return &GovernanceError{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *GovernanceError {
	return &GovernanceError{
		Class:   ErrorClassNotFound,
		Message: message,
		Code:    ErrCodeNotFound,
		Err:     err,
	}
}

// NewStorageError creates a new storage error.
func NewStorageError(message string, err error) *GovernanceError {
	return &GovernanceError{
		Class:   ErrorClassStorage,
		Message: message,
		Err:     err,
	}
}

// NewSkipError creates a new per-policy skip error.
func NewSkipError(message string, err error) *GovernanceError {
	return &GovernanceError{
		Class:   ErrorClassSkip,
		Message: message,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *GovernanceError) WithResource(resourceID string) *GovernanceError {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *GovernanceError) WithOperation(operation string) *GovernanceError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *GovernanceError) WithCode(code string) *GovernanceError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *GovernanceError) WithDetail(key string, value interface{}) *GovernanceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *GovernanceError
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsNotFound returns true if the error is classified as not found.
func IsNotFound(err error) bool {
	var e *GovernanceError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsStorage returns true if the error is classified as a storage failure.
func IsStorage(err error) bool {
	var e *GovernanceError
	if errors.As(err, &e) {
		return e.Class == ErrorClassStorage
	}
	return false
}

// Common error codes.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternal      = "INTERNAL_ERROR"
)
