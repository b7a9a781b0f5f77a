package project

import (
	"fmt"
	"strings"

	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Target Platform
// =============================================================================

// TargetPlatform describes the machine the function runs on. Dependencies are
// resolved for this platform, never for the machine running the build.
type TargetPlatform struct {
	OS             string // "linux"
	Arch           string // "amd64"
	PythonVersion  string // "3.8"
	Implementation string // "cp"
	PlatformTag    string // "manylinux2014_x86_64"
	Image          string // container image used for container-based resolution
}

// ABI returns the CPython ABI tag, e.g. "cp38".
func (p TargetPlatform) ABI() string {
	return p.Implementation + strings.ReplaceAll(p.PythonVersion, ".", "")
}

// DockerPlatform returns the platform string understood by container runtimes.
func (p TargetPlatform) DockerPlatform() string {
	return p.OS + "/" + p.Arch
}

// runtimes maps provider runtime identifiers to their Python version.
var runtimes = map[string]string{
	"python37":  "3.7",
	"python38":  "3.8",
	"python39":  "3.9",
	"python311": "3.11",
	"python312": "3.12",
}

// PlatformForRuntime returns the target platform for a provider runtime.
//
// Example:
//
//	p, _ := PlatformForRuntime("python38")
//	p.PlatformTag // "manylinux2014_x86_64"
//	p.ABI()       // "cp38"
func PlatformForRuntime(runtime string) (TargetPlatform, error) {
	version, ok := runtimes[runtime]
	if !ok {
		return TargetPlatform{}, validation.NewValidationError("runtime",
			fmt.Sprintf("%q is not a supported runtime", runtime), ErrUnknownRuntime)
	}
	return TargetPlatform{
		OS:             "linux",
		Arch:           "amd64",
		PythonVersion:  version,
		Implementation: "cp",
		PlatformTag:    "manylinux2014_x86_64",
		Image:          "python:" + version + "-slim",
	}, nil
}
