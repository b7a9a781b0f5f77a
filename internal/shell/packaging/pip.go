package packaging

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/artpar/yappa/internal/core/project"
)

// =============================================================================
// Pip Resolver
// =============================================================================

// PipResolver resolves requirements with a local pip, downloading binary
// wheels built for the target platform instead of the host.
type PipResolver struct {
	// Command is the pip executable followed by any leading arguments,
	// e.g. ["python3", "-m", "pip"]. Defaults to ["pip"].
	Command []string
}

// PipInstallArgs returns the pip arguments that install requirementsFile
// flat into targetDir for platform.
func PipInstallArgs(requirementsFile, targetDir string, platform project.TargetPlatform) []string {
	return []string{
		"install",
		"--platform", platform.PlatformTag,
		"--python-version", platform.PythonVersion,
		"--implementation", platform.Implementation,
		"--abi", platform.ABI(),
		"--only-binary=:all:",
		"--no-compile",
		"--disable-pip-version-check",
		"--upgrade",
		"--target", targetDir,
		"-r", requirementsFile,
	}
}

// Resolve runs pip and returns its output on failure.
func (r *PipResolver) Resolve(ctx context.Context, requirementsFile, targetDir string, platform project.TargetPlatform) error {
	command := r.Command
	if len(command) == 0 {
		command = []string{"pip"}
	}
	args := append(append([]string{}, command[1:]...), PipInstallArgs(requirementsFile, targetDir, platform)...)

	cmd := exec.CommandContext(ctx, command[0], args...)
	// Keep pip quiet and non-interactive.
	cmd.Env = append(os.Environ(), "PIP_NO_INPUT=1", "PIP_NO_CACHE_DIR=1")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return NewBuildError(StageResolve, requirementsFile,
			fmt.Sprintf("pip install failed: %v: %s", err, string(output)), ErrResolveFailed)
	}
	return nil
}
