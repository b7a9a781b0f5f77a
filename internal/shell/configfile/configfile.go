// Package configfile loads and saves the project config (yappa.yaml) and the
// gateway config document (yappa-gw.yaml).
package configfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/project"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Project Config
// =============================================================================

// LoadProject reads a project config and applies defaults. Unknown keys are
// rejected so that typos do not silently fall back to defaults.
func LoadProject(path string) (*project.Config, error) {
	cfg, err := decodeProject("LoadProject", path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// SyncProject loads a project config and writes it back when the slug or
// bucket had to be derived, so the generated bucket name sticks to the
// project. saved reports whether the file was rewritten.
func SyncProject(path string) (cfg *project.Config, saved bool, err error) {
	cfg, err = decodeProject("SyncProject", path)
	if err != nil {
		return nil, false, err
	}
	derived := cfg.ProjectSlug == "" || cfg.Bucket == ""
	cfg.ApplyDefaults()
	if !derived {
		return cfg, false, nil
	}
	if err := SaveProject(path, cfg); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func decodeProject(op, path string) (*project.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewFileError(op, path, ErrNotFound)
		}
		return nil, NewFileError(op, path, err)
	}

	var cfg project.Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, NewFileError(op, path, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return &cfg, nil
}

// SaveProject writes a project config, replacing any existing file.
func SaveProject(path string, cfg *project.Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return NewFileError("SaveProject", path, err)
	}
	if err := enc.Close(); err != nil {
		return NewFileError("SaveProject", path, err)
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return NewFileError("SaveProject", path, err)
	}
	return nil
}

// CreateProject writes a new project config and fails if one exists.
func CreateProject(path string, cfg *project.Config) error {
	if _, err := os.Stat(path); err == nil {
		return NewFileError("CreateProject", path, ErrAlreadyExists)
	}
	return SaveProject(path, cfg)
}

// =============================================================================
// Gateway Config
// =============================================================================

// LoadGateway reads a gateway config document.
func LoadGateway(path string) (*gateway.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewFileError("LoadGateway", path, ErrNotFound)
		}
		return nil, NewFileError("LoadGateway", path, err)
	}

	cfg, err := gateway.Parse(data)
	if err != nil {
		return nil, NewFileError("LoadGateway", path, err)
	}
	return cfg, nil
}

// LoadOrCreateGateway reads a gateway config document, or returns the
// default document for the project when the file does not exist. The
// default is not written; created reports that it was generated.
func LoadOrCreateGateway(path, title, slug string) (cfg *gateway.Config, created bool, err error) {
	cfg, err = LoadGateway(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	return gateway.DefaultConfig(title, slug), true, nil
}

// SaveGateway writes a gateway config document, replacing any existing file.
func SaveGateway(path string, cfg *gateway.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return NewFileError("SaveGateway", path, err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return NewFileError("SaveGateway", path, err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// Resolve returns name relative to dir unless name is absolute.
func Resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
