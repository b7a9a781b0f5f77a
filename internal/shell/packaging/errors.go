package packaging

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input errors
	ErrRequirementsNotFound = errors.New("requirements file not found")
	ErrInvalidRequirements  = errors.New("invalid requirements file")
	ErrEntrypointNotFound   = errors.New("entrypoint module not found")
	ErrAmbiguousEntrypoint  = errors.New("entrypoint module is ambiguous")
	ErrInvalidEntrypoint    = errors.New("invalid entrypoint")

	// Staging errors
	ErrStagingFailed   = errors.New("staging directory could not be prepared")
	ErrOutsideWorkRoot = errors.New("path is outside the staging root")
	ErrCopyFailed      = errors.New("project copy failed")
	ErrShimFailed      = errors.New("shim generation failed")

	// Resolution errors
	ErrResolveFailed = errors.New("dependency resolution failed")
)

// Build stages reported in BuildError.Stage.
const (
	StageValidate = "validate"
	StageStaging  = "staging"
	StageCopy     = "copy"
	StageResolve  = "resolve"
	StageShim     = "shim"
)

// BuildError wraps packaging errors with the stage that failed.
type BuildError struct {
	Stage   string // validate, staging, copy, resolve, shim
	Path    string // file or directory involved, if any
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("build %s %s: %s", e.Stage, e.Path, e.Message)
	}
	return fmt.Sprintf("build %s: %s", e.Stage, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// NewBuildError creates a new BuildError.
func NewBuildError(stage, path, message string, err error) *BuildError {
	return &BuildError{
		Stage:   stage,
		Path:    path,
		Message: message,
		Err:     err,
	}
}
