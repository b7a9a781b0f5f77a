package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/project"
	"github.com/artpar/yappa/internal/shell/configfile"
	"github.com/artpar/yappa/internal/shell/packaging"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/artpar/yappa/internal/shell/store"
	"github.com/artpar/yappa/internal/shell/transport"
)

// =============================================================================
// Requests
// =============================================================================

// DeployRequest runs the full pipeline for a project.
type DeployRequest struct {
	Config              *project.Config
	InstallRequirements bool
}

// UndeployRequest tears a project down.
type UndeployRequest struct {
	Config        *project.Config
	DestroyBucket bool
}

// Result is what a pipeline produced. Fields are nil for steps that were
// not reached or not part of the pipeline.
type Result struct {
	Run      *deployment.Run
	Previous *deployment.Run // last recorded run of the project, if any
	Function *provisioning.Function
	Version  *provisioning.FunctionVersion
	Gateway  *provisioning.Gateway
}

// =============================================================================
// Pipelines
// =============================================================================

// Deploy validates, packages, uploads and provisions the project.
func (o *Orchestrator) Deploy(ctx context.Context, req DeployRequest) (*Result, error) {
	return o.publish(ctx, deployment.KindDeploy, req, true)
}

// Update publishes a new version of an already deployed project and rewires
// its gateway. The function must already exist.
func (o *Orchestrator) Update(ctx context.Context, req DeployRequest) (*Result, error) {
	return o.publish(ctx, deployment.KindUpdate, req, false)
}

func (o *Orchestrator) publish(ctx context.Context, kind deployment.Kind, req DeployRequest, create bool) (*Result, error) {
	cfg := req.Config
	if err := o.preflight(cfg, true); err != nil {
		return nil, err
	}
	target, err := versionTarget(cfg)
	if err != nil {
		return nil, err
	}
	res, err := o.start(ctx, kind, cfg)
	if err != nil {
		return nil, err
	}
	run := res.Run
	slug := cfg.ProjectSlug

	// Update resolves the function first so a missing deployment fails
	// before anything is uploaded.
	if !create {
		o.step(ctx, run, deployment.StepFunction)
		fn, err := o.service.GetFunction(ctx, deployment.FunctionName(slug))
		if err != nil {
			return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepFunction, "GetFunction"))
		}
		res.Function = fn
	}

	o.step(ctx, run, deployment.StepBucket)
	artifacts, err := o.openBucket(ctx, cfg)
	if err != nil {
		return res, o.fail(ctx, run, err)
	}
	run.Bucket = cfg.Bucket

	o.step(ctx, run, deployment.StepBuild)
	dir, err := o.builder.Build(ctx, packaging.BuildRequest{
		RequirementsFile:     cfg.RequirementsFile,
		ExcludedPaths:        cfg.Excluded(o.configFilename),
		InstallRequirements:  req.InstallRequirements,
		ConfigFilename:       o.configFilename,
		GatewayConfig:        cfg.GatewayConfig,
		Entrypoint:           cfg.Entrypoint,
		ApplicationType:      cfg.ApplicationType,
		DjangoSettingsModule: cfg.DjangoSettingsModule,
	})
	if err != nil {
		return res, o.fail(ctx, run, &StepError{Step: deployment.StepBuild, Err: err})
	}

	o.step(ctx, run, deployment.StepUpload)
	key, err := artifacts.Upload(ctx, dir, cfg.Bucket, slug)
	if err != nil {
		return res, o.fail(ctx, run, &StepError{Step: deployment.StepUpload, Err: err})
	}
	run.ObjectKey = key

	if create {
		o.step(ctx, run, deployment.StepFunction)
		fn, err := o.EnsureFunction(ctx, slug, cfg.Description)
		if err != nil {
			return res, o.fail(ctx, run, err)
		}
		res.Function = fn
	}
	run.FunctionID = res.Function.ID
	if err := o.advance(ctx, run, deployment.StateFunctionExists); err != nil {
		return res, err
	}

	o.step(ctx, run, deployment.StepVersion)
	version, err := o.PublishVersion(ctx, VersionRequest{
		FunctionID:           res.Function.ID,
		Runtime:              cfg.Runtime,
		Entrypoint:           target.entrypoint,
		Description:          cfg.Description,
		Bucket:               cfg.Bucket,
		ObjectKey:            key,
		Resources:            target.resources,
		Environment:          cfg.Environment,
		ServiceAccountID:     cfg.ServiceAccountID,
		NamedServiceAccounts: cfg.NamedServiceAccounts,
	})
	if err != nil {
		return res, o.fail(ctx, run, err)
	}
	res.Version = version
	run.VersionID = version.ID
	if err := o.advance(ctx, run, deployment.StateVersionPublished); err != nil {
		return res, err
	}

	gw, err := o.wireGateway(ctx, run, cfg, res.Function.ID)
	if err != nil {
		return res, err
	}
	res.Gateway = gw
	return res, nil
}

// UpdateGateway re-synthesizes the gateway config against the existing
// function and pushes it. No package is built.
func (o *Orchestrator) UpdateGateway(ctx context.Context, cfg *project.Config) (*Result, error) {
	if err := o.preflight(cfg, false); err != nil {
		return nil, err
	}
	res, err := o.start(ctx, deployment.KindUpdateGateway, cfg)
	if err != nil {
		return nil, err
	}
	run := res.Run

	o.step(ctx, run, deployment.StepFunction)
	fn, err := o.service.GetFunction(ctx, deployment.FunctionName(cfg.ProjectSlug))
	if err != nil {
		return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepFunction, "GetFunction"))
	}
	res.Function = fn
	run.FunctionID = fn.ID
	if err := o.advance(ctx, run, deployment.StateFunctionExists); err != nil {
		return res, err
	}

	gw, err := o.wireGateway(ctx, run, cfg, fn.ID)
	if err != nil {
		return res, err
	}
	res.Gateway = gw
	return res, nil
}

// Undeploy deletes the project's gateway and function. Resources that are
// already gone are skipped. The bucket is only destroyed when requested.
func (o *Orchestrator) Undeploy(ctx context.Context, req UndeployRequest) (*Result, error) {
	cfg := req.Config
	if err := o.preflight(cfg, false); err != nil {
		return nil, err
	}
	res, err := o.start(ctx, deployment.KindUndeploy, cfg)
	if err != nil {
		return nil, err
	}
	run := res.Run
	slug := cfg.ProjectSlug

	o.step(ctx, run, deployment.StepTeardown)
	gw, err := o.service.GetGateway(ctx, deployment.GatewayName(slug))
	switch {
	case err == nil:
		run.GatewayID = gw.ID
		if err := o.service.DeleteGateway(ctx, gw.ID); err != nil && !errors.Is(err, provisioning.ErrNotFound) {
			return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepTeardown, "DeleteGateway"))
		}
		o.logger.Info("gateway deleted", "name", gw.Name, "id", gw.ID)
	case !errors.Is(err, provisioning.ErrNotFound):
		return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepTeardown, "GetGateway"))
	}

	fn, err := o.service.GetFunction(ctx, deployment.FunctionName(slug))
	switch {
	case err == nil:
		run.FunctionID = fn.ID
		if err := o.service.DeleteFunction(ctx, fn.ID); err != nil && !errors.Is(err, provisioning.ErrNotFound) {
			return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepTeardown, "DeleteFunction"))
		}
		o.logger.Info("function deleted", "name", fn.Name, "id", fn.ID)
	case !errors.Is(err, provisioning.ErrNotFound):
		return res, o.fail(ctx, run, provisioning.WithStep(err, deployment.StepTeardown, "GetFunction"))
	}

	if req.DestroyBucket {
		o.step(ctx, run, deployment.StepBucket)
		artifacts, err := o.credentials(ctx, cfg)
		if err != nil {
			return res, o.fail(ctx, run, err)
		}
		if err := artifacts.DestroyBucket(ctx, cfg.Bucket); err != nil {
			return res, o.fail(ctx, run, &StepError{Step: deployment.StepBucket, Err: err})
		}
		run.Bucket = cfg.Bucket
	}

	if err := o.advance(ctx, run, deployment.StateRemoved); err != nil {
		return res, err
	}
	return res, nil
}

// =============================================================================
// Shared Steps
// =============================================================================

func (o *Orchestrator) preflight(cfg *project.Config, build bool) error {
	if cfg == nil {
		return &StepError{Step: deployment.StepPreflight, Err: ErrConfigRequired}
	}
	if err := cfg.Validate(); err != nil {
		return &StepError{Step: deployment.StepPreflight, Err: err}
	}
	if build && (o.builder == nil || o.artifacts == nil) {
		return &StepError{Step: deployment.StepPreflight, Err: ErrMissingDependency}
	}
	return nil
}

// versionSpec holds the version fields derived from the project config.
type versionSpec struct {
	entrypoint project.EntrypointDescriptor
	resources  project.Resources
}

func versionTarget(cfg *project.Config) (versionSpec, error) {
	descriptor, err := cfg.EntrypointDescriptor()
	if err != nil {
		return versionSpec{}, &StepError{Step: deployment.StepPreflight, Err: err}
	}
	resources, err := cfg.Resources()
	if err != nil {
		return versionSpec{}, &StepError{Step: deployment.StepPreflight, Err: err}
	}
	return versionSpec{entrypoint: descriptor, resources: resources}, nil
}

// credentials fetches object store keys and opens an artifact store with them.
func (o *Orchestrator) credentials(ctx context.Context, cfg *project.Config) (ArtifactStore, error) {
	if o.artifacts == nil {
		return nil, &StepError{Step: deployment.StepBucket, Err: ErrMissingDependency}
	}
	key, err := o.service.GetS3Key(ctx, cfg.S3AccountName)
	if err != nil {
		return nil, provisioning.WithStep(err, deployment.StepBucket, "GetS3Key")
	}
	return o.artifacts(transport.Credentials{
		AccessKeyID:     key.AccessKeyID,
		SecretAccessKey: key.SecretAccessKey,
	}), nil
}

func (o *Orchestrator) openBucket(ctx context.Context, cfg *project.Config) (ArtifactStore, error) {
	artifacts, err := o.credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := artifacts.ProvisionBucket(ctx, cfg.Bucket); err != nil {
		return nil, &StepError{Step: deployment.StepBucket, Err: err}
	}
	return artifacts, nil
}

// wireGateway loads the gateway config (or synthesizes the default), points
// the project's bindings at functionID, saves the file and pushes it.
func (o *Orchestrator) wireGateway(ctx context.Context, run *deployment.Run, cfg *project.Config, functionID string) (*provisioning.Gateway, error) {
	o.step(ctx, run, deployment.StepGateway)

	path := configfile.Resolve(o.projectDir, cfg.GatewayConfig)
	gwCfg, created, err := configfile.LoadOrCreateGateway(path, cfg.ProjectName, cfg.ProjectSlug)
	if err != nil {
		return nil, o.fail(ctx, run, &StepError{Step: deployment.StepGateway, Err: err})
	}
	if created {
		o.logger.Info("created default gateway config", "path", path)
	} else if gwCfg.IsStale(functionID, cfg.ProjectSlug) {
		o.logger.Info("gateway config references another function, rewiring", "path", path, "function_id", functionID)
	}

	wired, err := gateway.InjectFunctionID(gwCfg, functionID, cfg.ProjectSlug)
	if err != nil {
		return nil, o.fail(ctx, run, &StepError{Step: deployment.StepGateway, Err: err})
	}
	if err := configfile.SaveGateway(path, wired); err != nil {
		return nil, o.fail(ctx, run, &StepError{Step: deployment.StepGateway, Err: err})
	}

	gw, err := o.EnsureGateway(ctx, cfg.ProjectSlug, cfg.Description, wired)
	if err != nil {
		return nil, o.fail(ctx, run, err)
	}
	run.GatewayID = gw.ID
	if err := o.advance(ctx, run, deployment.StateGatewayWired); err != nil {
		return nil, err
	}
	o.logger.Info("gateway wired", "name", gw.Name, "id", gw.ID, "domain", gw.Domain)
	return gw, nil
}

// =============================================================================
// Run Recording
// =============================================================================

func (o *Orchestrator) start(ctx context.Context, kind deployment.Kind, cfg *project.Config) (*Result, error) {
	run, err := deployment.NewRun(kind, cfg.ProjectSlug, deployment.StateNoFunction)
	if err != nil {
		return nil, &StepError{Step: deployment.StepPreflight, Err: err}
	}
	o.logger.Info("run started", "run_id", run.ID, "kind", kind, "project", cfg.ProjectSlug)
	res := &Result{Run: run}
	if o.ledger == nil {
		return res, nil
	}

	err = o.ledger.WithTx(ctx, func(tx store.Store) error {
		prev, err := tx.LatestRun(ctx, cfg.ProjectSlug)
		switch {
		case err == nil:
			res.Previous = prev
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		return tx.CreateRun(ctx, run)
	})
	if err != nil {
		o.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
		return res, nil
	}
	if prev := res.Previous; prev != nil && prev.State == deployment.StateFailed {
		o.logger.Warn("previous run failed, resuming from provider state",
			"previous_run_id", prev.ID,
			"previous_kind", prev.Kind,
			"failed_step", prev.CurrentStep,
			"error", prev.ErrorMessage,
		)
	}
	return res, nil
}

func (o *Orchestrator) step(ctx context.Context, run *deployment.Run, step string) {
	run.SetStep(step)
	o.logger.Debug("step", "run_id", run.ID, "step", step)
	o.record(ctx, run)
}

func (o *Orchestrator) advance(ctx context.Context, run *deployment.Run, to deployment.State) error {
	from := run.State
	if err := run.Transition(to); err != nil {
		return o.fail(ctx, run, fmt.Errorf("transition %s -> %s: %w", from, to, err))
	}
	o.record(ctx, run)
	return nil
}

// fail marks the run failed in its current step and returns err unchanged.
func (o *Orchestrator) fail(ctx context.Context, run *deployment.Run, err error) error {
	if tErr := run.TransitionToFailed(err.Error()); tErr != nil {
		o.logger.Warn("cannot mark run failed", "run_id", run.ID, "state", run.State, "error", tErr)
	}
	o.logger.Error("run failed", "run_id", run.ID, "step", run.CurrentStep, "error", err)
	o.record(ctx, run)
	return err
}

// record persists the run. The ledger is advisory; a write failure never
// fails the pipeline.
func (o *Orchestrator) record(ctx context.Context, run *deployment.Run) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.UpdateRun(ctx, run); err != nil {
		o.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}
