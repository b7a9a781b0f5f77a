package provisioning

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("not authorized")
	ErrConflict     = errors.New("resource conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrUnavailable  = errors.New("provisioning service unavailable")
)

// APIError is an error document returned by the provisioning API.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Title
	if e.Detail != "" && e.Detail != e.Title {
		if msg != "" {
			msg += ": "
		}
		msg += e.Detail
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, msg)
}

// Is maps HTTP status codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrInvalid:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	case ErrUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// ProvisioningError wraps provisioning failures with the step and operation
// that failed. The provider message is preserved in Err.
type ProvisioningError struct {
	Step string // e.g., "function", "gateway"; empty outside the orchestrator
	Op   string // e.g., "CreateFunction"
	Err  error
}

func (e *ProvisioningError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s step: %s: %v", e.Step, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// NewProvisioningError creates a new ProvisioningError.
func NewProvisioningError(step, op string, err error) *ProvisioningError {
	return &ProvisioningError{
		Step: step,
		Op:   op,
		Err:  err,
	}
}

// WithStep attributes err to an orchestration step. A ProvisioningError
// keeps its operation; any other error is wrapped with op.
func WithStep(err error, step, op string) error {
	if err == nil {
		return nil
	}
	var provErr *ProvisioningError
	if errors.As(err, &provErr) {
		return NewProvisioningError(step, provErr.Op, provErr.Err)
	}
	return NewProvisioningError(step, op, err)
}
