package domain

import (
	"fmt"
)

// ValidationError indicates malformed input. It is raised before any
// external call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ParseError indicates the model returned output that could not be read as
// a prediction array. Message is written for the learner; Snippet holds the
// beginning of the raw model text.
type ParseError struct {
	Message string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (model output began: %q)", e.Message, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ServiceError wraps a failed call to the model or to storage.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NotFoundError reports the absence of a dataset or attempt.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}
