package validation

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidBucketName is returned for bucket names outside the provider grammar.
	ErrInvalidBucketName = errors.New("invalid bucket name")

	// ErrEmptyField is returned when a required field is blank.
	ErrEmptyField = errors.New("should not be empty")

	// ErrInvalidEntrypoint is returned when an entrypoint is not a module.attribute path.
	ErrInvalidEntrypoint = errors.New("invalid entrypoint")

	// ErrInvalidApplicationType is returned for unknown application types.
	ErrInvalidApplicationType = errors.New("invalid application type")

	// ErrInvalidRequirement is returned when a requirements line cannot be parsed.
	ErrInvalidRequirement = errors.New("invalid requirement")

	// ErrInvalidSlug is returned when a project slug contains forbidden characters.
	ErrInvalidSlug = errors.New("invalid project slug")
)

// ValidationError reports a pre-flight check that failed before any remote call.
type ValidationError struct {
	Field   string // e.g., "bucket", "requirements_file:3"
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
