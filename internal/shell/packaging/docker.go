package packaging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/artpar/yappa/internal/core/project"
)

// =============================================================================
// Docker Resolver
// =============================================================================

// containerAPI is the subset of the Docker client used for resolution.
type containerAPI interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

const (
	containerRequirementsDir = "/requirements"
	containerTargetDir       = "/package"
)

// DockerResolver runs pip inside a container of the target runtime image, so
// packages with native code are resolved on the platform they run on.
type DockerResolver struct {
	api    containerAPI
	closer io.Closer
	logger *slog.Logger
}

// NewDockerResolver connects to the Docker daemon. If host is empty, it uses
// the default Docker host from environment.
func NewDockerResolver(host string, logger *slog.Logger) (*DockerResolver, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewBuildError(StageResolve, "", "failed to create docker client: "+err.Error(), ErrResolveFailed)
	}
	return newDockerResolver(cli, cli, logger), nil
}

func newDockerResolver(api containerAPI, closer io.Closer, logger *slog.Logger) *DockerResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerResolver{api: api, closer: closer, logger: logger.With("component", "docker-resolver")}
}

// Close closes the Docker client connection.
func (r *DockerResolver) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Resolve pulls the platform image and installs requirementsFile into
// targetDir from a throwaway container.
func (r *DockerResolver) Resolve(ctx context.Context, requirementsFile, targetDir string, platform project.TargetPlatform) error {
	if platform.Image == "" {
		return NewBuildError(StageResolve, "", "target platform has no image", ErrResolveFailed)
	}
	reqAbs, err := filepath.Abs(requirementsFile)
	if err != nil {
		return NewBuildError(StageResolve, requirementsFile, err.Error(), ErrResolveFailed)
	}
	targetAbs, err := filepath.Abs(targetDir)
	if err != nil {
		return NewBuildError(StageResolve, targetDir, err.Error(), ErrResolveFailed)
	}

	if err := r.pull(ctx, platform); err != nil {
		return err
	}

	args := PipInstallArgs(containerRequirementsDir+"/"+filepath.Base(reqAbs), containerTargetDir, platform)
	config := &container.Config{
		Image: platform.Image,
		Cmd:   append([]string{"pip"}, args...),
		User:  fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Env:   []string{"HOME=/tmp", "PIP_NO_INPUT=1", "PIP_NO_CACHE_DIR=1"},
		Labels: map[string]string{
			"yappa.resolver": "pip",
		},
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: filepath.Dir(reqAbs), Target: containerRequirementsDir, ReadOnly: true},
			{Type: mount.TypeBind, Source: targetAbs, Target: containerTargetDir},
		},
	}
	ociPlatform := &ocispec.Platform{OS: platform.OS, Architecture: platform.Arch}

	resp, err := r.api.ContainerCreate(ctx, config, hostConfig, nil, ociPlatform, "")
	if err != nil {
		return NewBuildError(StageResolve, platform.Image, "create container: "+err.Error(), ErrResolveFailed)
	}
	defer func() {
		if err := r.api.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Warn("failed to remove resolver container", "container", resp.ID, "error", err)
		}
	}()

	if err := r.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return NewBuildError(StageResolve, platform.Image, "start container: "+err.Error(), ErrResolveFailed)
	}

	statusCh, errCh := r.api.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return NewBuildError(StageResolve, platform.Image, "wait for container: "+err.Error(), ErrResolveFailed)
		}
	case status := <-statusCh:
		if status.Error != nil {
			return NewBuildError(StageResolve, platform.Image, status.Error.Message, ErrResolveFailed)
		}
		exitCode = status.StatusCode
	case <-ctx.Done():
		return NewBuildError(StageResolve, platform.Image, ctx.Err().Error(), ErrResolveFailed)
	}

	if exitCode != 0 {
		return NewBuildError(StageResolve, requirementsFile,
			fmt.Sprintf("pip exited with status %d: %s", exitCode, r.logs(ctx, resp.ID)), ErrResolveFailed)
	}
	return nil
}

func (r *DockerResolver) pull(ctx context.Context, platform project.TargetPlatform) error {
	r.logger.Info("pulling image", "image", platform.Image, "platform", platform.DockerPlatform())
	reader, err := r.api.ImagePull(ctx, platform.Image, image.PullOptions{Platform: platform.DockerPlatform()})
	if err != nil {
		return NewBuildError(StageResolve, platform.Image, "pull image: "+err.Error(), ErrResolveFailed)
	}
	defer reader.Close()

	// Drain the reader to complete the pull
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return NewBuildError(StageResolve, platform.Image, "pull image: "+err.Error(), ErrResolveFailed)
	}
	return nil
}

func (r *DockerResolver) logs(ctx context.Context, containerID string) string {
	reader, err := r.api.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return ""
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return ""
	}
	return strings.TrimSpace(stderr.String() + stdout.String())
}
