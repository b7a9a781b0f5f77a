package configfile

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("config file not found")
	ErrAlreadyExists = errors.New("config file already exists")
	ErrInvalidConfig = errors.New("invalid config file")
)

// FileError wraps config file failures with the operation and path.
type FileError struct {
	Op   string // e.g., "LoadProject"
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// NewFileError creates a new FileError.
func NewFileError(op, path string, err error) *FileError {
	return &FileError{Op: op, Path: path, Err: err}
}
