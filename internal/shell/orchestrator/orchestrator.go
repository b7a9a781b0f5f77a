// Package orchestrator drives the remote provisioning sequence of a project:
// ensure the function exists, publish a version referencing a freshly
// uploaded package, then create or update the gateway wired to the function.
//
// Steps run strictly in order and each one is idempotent on retry. A failed
// step is reported with its name; earlier steps are never rolled back.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/project"
	"github.com/artpar/yappa/internal/shell/packaging"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/artpar/yappa/internal/shell/store"
	"github.com/artpar/yappa/internal/shell/transport"
)

// =============================================================================
// Dependencies
// =============================================================================

// PackageBuilder builds a package directory. *packaging.Builder satisfies it.
type PackageBuilder interface {
	Build(ctx context.Context, req packaging.BuildRequest) (string, error)
}

// ArtifactStore moves packages through the object store.
// *transport.Transport satisfies it.
type ArtifactStore interface {
	ProvisionBucket(ctx context.Context, name string) error
	Upload(ctx context.Context, dir, bucket, slug string) (string, error)
	DestroyBucket(ctx context.Context, name string) error
}

// ArtifactStoreFactory opens an artifact store with issued credentials.
type ArtifactStoreFactory func(creds transport.Credentials) ArtifactStore

// Config configures an Orchestrator.
type Config struct {
	Service   provisioning.Service
	Builder   PackageBuilder
	Artifacts ArtifactStoreFactory
	// Ledger records every run. Nil disables recording.
	Ledger store.Store
	// ProjectDir anchors relative paths such as the gateway config file.
	ProjectDir string
	// ConfigFilename is the project config file, excluded from packages.
	ConfigFilename string
	Logger         *slog.Logger
}

// Orchestrator sequences the provisioning steps.
type Orchestrator struct {
	service        provisioning.Service
	builder        PackageBuilder
	artifacts      ArtifactStoreFactory
	ledger         store.Store
	projectDir     string
	configFilename string
	logger         *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("provisioning service: %w", ErrMissingDependency)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	configFilename := cfg.ConfigFilename
	if configFilename == "" {
		configFilename = project.DefaultConfigFilename
	}
	projectDir := cfg.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	return &Orchestrator{
		service:        cfg.Service,
		builder:        cfg.Builder,
		artifacts:      cfg.Artifacts,
		ledger:         cfg.Ledger,
		projectDir:     projectDir,
		configFilename: configFilename,
		logger:         logger.With("component", "orchestrator"),
	}, nil
}

// =============================================================================
// Provisioning Steps
// =============================================================================

// EnsureFunction returns the project's function, creating it when absent.
// Calling it again never creates a duplicate.
func (o *Orchestrator) EnsureFunction(ctx context.Context, slug, description string) (*provisioning.Function, error) {
	name := deployment.FunctionName(slug)

	fn, err := o.service.GetFunction(ctx, name)
	if err == nil {
		o.logger.Info("reusing function", "name", name, "id", fn.ID)
		return fn, nil
	}
	if !errors.Is(err, provisioning.ErrNotFound) {
		return nil, provisioning.WithStep(err, deployment.StepFunction, "GetFunction")
	}

	fn, err = o.service.CreateFunction(ctx, name, description)
	if errors.Is(err, provisioning.ErrConflict) {
		// Created concurrently since the lookup.
		fn, err = o.service.GetFunction(ctx, name)
	}
	if err != nil {
		return nil, provisioning.WithStep(err, deployment.StepFunction, "CreateFunction")
	}
	return fn, nil
}

// VersionRequest is everything a function version is created from.
type VersionRequest struct {
	FunctionID           string
	Runtime              string
	Entrypoint           project.EntrypointDescriptor
	Description          string
	Bucket               string
	ObjectKey            string
	Resources            project.Resources
	Environment          map[string]string
	ServiceAccountID     string
	NamedServiceAccounts map[string]string
}

// PublishVersion always creates a new immutable version. A failure leaves
// the previously published version serving.
func (o *Orchestrator) PublishVersion(ctx context.Context, req VersionRequest) (*provisioning.FunctionVersion, error) {
	if req.FunctionID == "" || req.Runtime == "" || req.Bucket == "" || req.ObjectKey == "" {
		return nil, provisioning.NewProvisioningError(deployment.StepVersion, "PublishVersion", ErrIncompleteVersion)
	}

	v, err := o.service.CreateFunctionVersion(ctx, provisioning.FunctionVersion{
		FunctionID:           req.FunctionID,
		Runtime:              req.Runtime,
		Entrypoint:           req.Entrypoint.ProviderEntrypoint(),
		Description:          req.Description,
		Bucket:               req.Bucket,
		ObjectKey:            req.ObjectKey,
		MemoryBytes:          req.Resources.MemoryBytes,
		TimeoutSeconds:       int64(req.Resources.Timeout.Seconds()),
		ServiceAccountID:     req.ServiceAccountID,
		NamedServiceAccounts: maps.Clone(req.NamedServiceAccounts),
		Environment:          maps.Clone(req.Environment),
	})
	if err != nil {
		return nil, provisioning.WithStep(err, deployment.StepVersion, "CreateFunctionVersion")
	}
	o.logger.Info("version published",
		"function_id", v.FunctionID,
		"version_id", v.ID,
		"entrypoint", v.Entrypoint,
		"object_key", v.ObjectKey,
	)
	return v, nil
}

// EnsureGateway creates the project's gateway from cfg, or replaces the
// routing descriptor of the existing one.
func (o *Orchestrator) EnsureGateway(ctx context.Context, slug, description string, cfg *gateway.Config) (*provisioning.Gateway, error) {
	spec, err := cfg.Marshal()
	if err != nil {
		return nil, provisioning.NewProvisioningError(deployment.StepGateway, "EnsureGateway", err)
	}
	name := deployment.GatewayName(slug)

	existing, err := o.service.GetGateway(ctx, name)
	switch {
	case err == nil:
		o.logger.Info("updating gateway", "name", name, "id", existing.ID)
		gw, err := o.service.UpdateGateway(ctx, existing.ID, description, string(spec))
		if err != nil {
			return nil, provisioning.WithStep(err, deployment.StepGateway, "UpdateGateway")
		}
		return gw, nil
	case errors.Is(err, provisioning.ErrNotFound):
		o.logger.Info("creating gateway", "name", name)
		gw, err := o.service.CreateGateway(ctx, name, description, string(spec))
		if err != nil {
			return nil, provisioning.WithStep(err, deployment.StepGateway, "CreateGateway")
		}
		return gw, nil
	default:
		return nil, provisioning.WithStep(err, deployment.StepGateway, "GetGateway")
	}
}
