// Package gateway synthesizes and rewrites API gateway routing descriptors.
// This is part of the Functional Core - all functions are pure with no I/O.
package gateway

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrEmptyConfig is returned when a descriptor has no content.
	ErrEmptyConfig = errors.New("gateway config is empty")

	// ErrInvalidYAML is returned when a descriptor is not valid YAML.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrNotMapping is returned when the document root is not a mapping.
	ErrNotMapping = errors.New("gateway config must be a mapping")

	// ErrInvalidSpec is returned when a descriptor is not a valid OpenAPI document.
	ErrInvalidSpec = errors.New("invalid OpenAPI document")

	// ErrEmptyFunctionID is returned when injecting an empty function id.
	ErrEmptyFunctionID = errors.New("function id is required")
)

// ConfigError wraps errors with context about which descriptor failed.
type ConfigError struct {
	Op      string // e.g., "Parse", "Validate"
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(op, message string, err error) *ConfigError {
	return &ConfigError{
		Op:      op,
		Message: message,
		Err:     err,
	}
}
