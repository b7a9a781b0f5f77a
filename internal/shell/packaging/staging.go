package packaging

import (
	"os"
	"path/filepath"
	"strings"
)

// Staging owns build output directories under a common root.
type Staging struct {
	root string
}

// NewStaging ensures the staging root exists and is accessible.
func NewStaging(root string) (*Staging, error) {
	if root == "" {
		return nil, NewBuildError(StageStaging, "", "staging root cannot be empty", ErrStagingFailed)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, NewBuildError(StageStaging, root, err.Error(), ErrStagingFailed)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, NewBuildError(StageStaging, abs, err.Error(), ErrStagingFailed)
	}
	return &Staging{root: abs}, nil
}

// Root returns the absolute staging root.
func (s *Staging) Root() string {
	return s.root
}

// Prepare recreates an empty directory for the identifier. Output of a
// previous build under the same identifier is removed first.
func (s *Staging) Prepare(identifier string) (string, error) {
	if identifier == "" || strings.ContainsAny(identifier, `/\`) {
		return "", NewBuildError(StageStaging, identifier, "invalid staging identifier", ErrStagingFailed)
	}
	dir := filepath.Join(s.root, identifier)
	if err := os.RemoveAll(dir); err != nil {
		return "", NewBuildError(StageStaging, dir, "cleanup: "+err.Error(), ErrStagingFailed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NewBuildError(StageStaging, dir, err.Error(), ErrStagingFailed)
	}
	return dir, nil
}

// Cleanup removes a directory previously returned by Prepare. Paths outside
// the staging root are refused.
func (s *Staging) Cleanup(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == "" || strings.HasPrefix(rel, "..") {
		return NewBuildError(StageStaging, path, "refusing to remove path outside staging root", ErrOutsideWorkRoot)
	}
	return os.RemoveAll(path)
}

// Contains reports whether path is the staging root or lies inside it.
func (s *Staging) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
