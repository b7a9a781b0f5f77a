// Package packaging builds deployment packages from a local project tree.
package packaging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/yappa/internal/core/project"
	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Types
// =============================================================================

// BuildRequest describes one package build. Paths are relative to the
// project directory.
type BuildRequest struct {
	RequirementsFile     string
	ExcludedPaths        []string
	InstallRequirements  bool
	ConfigFilename       string
	GatewayConfig        string
	Entrypoint           string
	ApplicationType      string
	DjangoSettingsModule string
}

// Resolver materializes the packages listed in a requirements file into
// targetDir for the given platform.
type Resolver interface {
	Resolve(ctx context.Context, requirementsFile, targetDir string, platform project.TargetPlatform) error
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	ProjectDir string
	// StagingRoot holds build output. Defaults to a per-project directory
	// under the user cache dir, never inside ProjectDir.
	StagingRoot string
	Platform    project.TargetPlatform
	Resolver    Resolver
	// AdapterModule is the Python package the generated shim imports.
	AdapterModule string
	// AdapterRequirement is appended to the resolved requirements so the
	// adapter ships with the package. Empty disables it.
	AdapterRequirement string
	Logger             *slog.Logger
}

// packageDirName is the staging identifier of the package output.
const packageDirName = "package"

// Builder turns a project directory into a deployable package directory.
type Builder struct {
	projectDir         string
	staging            *Staging
	platform           project.TargetPlatform
	resolver           Resolver
	adapterModule      string
	adapterRequirement string
	logger             *slog.Logger
}

// NewBuilder creates a new package builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.ProjectDir == "" {
		return nil, NewBuildError(StageStaging, "", "project directory cannot be empty", ErrStagingFailed)
	}
	projectDir, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		return nil, NewBuildError(StageStaging, cfg.ProjectDir, err.Error(), ErrStagingFailed)
	}

	root := cfg.StagingRoot
	if root == "" {
		root = DefaultStagingRoot(projectDir)
	}
	staging, err := NewStaging(root)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Builder{
		projectDir:         projectDir,
		staging:            staging,
		platform:           cfg.Platform,
		resolver:           cfg.Resolver,
		adapterModule:      cfg.AdapterModule,
		adapterRequirement: cfg.AdapterRequirement,
		logger:             logger.With("component", "packaging"),
	}, nil
}

// DefaultStagingRoot returns the staging root used for projectDir when none
// is configured: <user cache dir>/yappa/build/<dir name>-<path digest>.
func DefaultStagingRoot(projectDir string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	sum := sha256.Sum256([]byte(filepath.Clean(projectDir)))
	name := filepath.Base(projectDir) + "-" + hex.EncodeToString(sum[:])[:12]
	return filepath.Join(base, "yappa", "build", name)
}

// =============================================================================
// Build
// =============================================================================

// Build produces a fresh package directory and returns its path.
//
// The project tree is only read. On failure the partial output is removed.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (string, error) {
	descriptor, err := project.NewEntrypointDescriptor(req.ApplicationType, req.Entrypoint, req.DjangoSettingsModule)
	if err != nil {
		return "", NewBuildError(StageValidate, "", err.Error(), errors.Join(ErrInvalidEntrypoint, err))
	}

	requirements, err := b.readRequirements(req.RequirementsFile)
	if err != nil {
		return "", err
	}

	excluded := project.NormalizeExcludedPaths(req.ExcludedPaths, req.RequirementsFile, req.ConfigFilename, req.GatewayConfig)
	if err := b.checkEntrypoint(descriptor, excluded); err != nil {
		return "", err
	}

	dir, err := b.staging.Prepare(packageDirName)
	if err != nil {
		return "", err
	}

	if err := b.populate(ctx, dir, req, descriptor, excluded, requirements); err != nil {
		if cleanupErr := b.staging.Cleanup(dir); cleanupErr != nil {
			b.logger.Warn("failed to remove partial package", "dir", dir, "error", cleanupErr)
		}
		return "", err
	}

	b.logger.Info("package built", "dir", dir, "entrypoint", descriptor.ProviderEntrypoint())
	return dir, nil
}

func (b *Builder) populate(ctx context.Context, dir string, req BuildRequest, descriptor project.EntrypointDescriptor, excluded []string, requirements []byte) error {
	copied, err := b.copyProject(ctx, dir, excluded)
	if err != nil {
		return err
	}
	b.logger.Debug("project copied", "files", copied)

	if req.InstallRequirements {
		if err := b.resolve(ctx, dir, requirements); err != nil {
			return err
		}
	}

	return writeShim(dir, descriptor, b.adapterModule)
}

// =============================================================================
// Validation
// =============================================================================

func (b *Builder) readRequirements(name string) ([]byte, error) {
	if name == "" {
		return nil, NewBuildError(StageValidate, "", "requirements file is not configured", ErrRequirementsNotFound)
	}
	path := filepath.Join(b.projectDir, filepath.FromSlash(name))
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewBuildError(StageValidate, name, "requirements file not found", ErrRequirementsNotFound)
		}
		return nil, NewBuildError(StageValidate, name, err.Error(), ErrRequirementsNotFound)
	}
	if err := validation.ValidateRequirements(content); err != nil {
		return nil, NewBuildError(StageValidate, name, err.Error(), errors.Join(ErrInvalidRequirements, err))
	}
	return content, nil
}

// checkEntrypoint requires exactly one of "<module>.py" and
// "<module>/__init__.py" to exist and be packaged.
func (b *Builder) checkEntrypoint(d project.EntrypointDescriptor, excluded []string) error {
	module := d.Module
	if module == "" {
		module = d.SettingsModule
	}
	base := strings.ReplaceAll(module, ".", "/")

	var found []string
	for _, candidate := range []string{base + ".py", base + "/__init__.py"} {
		info, err := os.Stat(filepath.Join(b.projectDir, filepath.FromSlash(candidate)))
		if err == nil && info.Mode().IsRegular() && !project.IsExcluded(candidate, excluded) {
			found = append(found, candidate)
		}
	}

	switch len(found) {
	case 0:
		return NewBuildError(StageValidate, base+".py",
			fmt.Sprintf("module %q not found in project", module), ErrEntrypointNotFound)
	case 1:
		return nil
	default:
		return NewBuildError(StageValidate, base,
			fmt.Sprintf("module %q matches both %s and %s", module, found[0], found[1]), ErrAmbiguousEntrypoint)
	}
}

// =============================================================================
// Copy
// =============================================================================

// copyProject copies every non-excluded file into dir and returns the number
// of files written. The staging root is never copied into itself.
func (b *Builder) copyProject(ctx context.Context, dir string, excluded []string) (int, error) {
	count := 0
	err := filepath.WalkDir(b.projectDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == b.projectDir {
			return nil
		}

		rel, err := filepath.Rel(b.projectDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if project.IsExcluded(rel, excluded) || b.staging.Contains(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			if d.Type()&fs.ModeSymlink != 0 {
				// Linked directories are not followed.
				return nil
			}
			return os.MkdirAll(target, 0o755)
		case info.Mode().IsRegular():
			count++
			return copyFile(path, target, info.Mode().Perm())
		default:
			return nil
		}
	})
	if err != nil {
		return count, NewBuildError(StageCopy, b.projectDir, err.Error(), errors.Join(ErrCopyFailed, err))
	}
	return count, nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// =============================================================================
// Dependency Resolution
// =============================================================================

func (b *Builder) resolve(ctx context.Context, dir string, requirements []byte) error {
	if b.resolver == nil {
		return NewBuildError(StageResolve, "", "no dependency resolver configured", ErrResolveFailed)
	}

	reqPath := filepath.Join(b.staging.Root(), "requirements.resolved.txt")
	content := string(requirements)
	if b.adapterRequirement != "" {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += b.adapterRequirement + "\n"
	}
	if err := os.WriteFile(reqPath, []byte(content), 0o644); err != nil {
		return NewBuildError(StageResolve, reqPath, err.Error(), ErrResolveFailed)
	}
	defer os.Remove(reqPath)

	b.logger.Info("resolving dependencies",
		"platform", b.platform.PlatformTag,
		"python", b.platform.PythonVersion,
	)
	if err := b.resolver.Resolve(ctx, reqPath, dir, b.platform); err != nil {
		var buildErr *BuildError
		if errors.As(err, &buildErr) {
			return err
		}
		return NewBuildError(StageResolve, "", err.Error(), errors.Join(ErrResolveFailed, err))
	}
	return nil
}
