package orchestrator

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDependency = errors.New("orchestrator dependency is required")
	ErrIncompleteVersion = errors.New("function version request is incomplete")
	ErrConfigRequired    = errors.New("project config is required")
)

// StepError attributes a local failure (validation, build, upload) to the
// step it happened in. Remote failures are *provisioning.ProvisioningError.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
