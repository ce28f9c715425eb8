package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrExternalService is the sentinel wrapped by every ExternalServiceError.
	ErrExternalService = errors.New("external service failure")
)

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ExternalServiceError wraps a failure of a collaborator outside this service
// (geocoder, object storage, message broker). The cause is kept for logging
// but is not shown to API clients.
type ExternalServiceError struct {
	Service string
	Err     error
}

// NewExternalServiceError wraps err as a failure of the named service.
func NewExternalServiceError(service string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Err: err}
}

func (e *ExternalServiceError) Error() string {
	if e.Err == nil {
		return e.Service + ": unavailable"
	}
	return e.Service + ": " + e.Err.Error()
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Is reports ErrExternalService as a match so callers need not know the cause.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}
