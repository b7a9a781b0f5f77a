package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/project"
	"github.com/artpar/yappa/internal/core/validation"
	"github.com/artpar/yappa/internal/shell/configfile"
	"github.com/artpar/yappa/internal/shell/orchestrator"
	"github.com/artpar/yappa/internal/shell/store"
)

// =============================================================================
// Command Table
// =============================================================================

// env is what a command runs with.
type env struct {
	flags          *pflag.FlagSet
	cfg            *Config
	logger         *slog.Logger
	stdout         io.Writer
	projectDir     string
	configFilename string
}

type command struct {
	Summary string
	Flags   func(fs *pflag.FlagSet)
	Run     func(ctx context.Context, e *env) error
}

var commands = map[string]command{
	"init": {
		Summary: "create a project config in the project directory",
		Flags:   initFlags,
		Run:     runInit,
	},
	"validate": {
		Summary: "check the project and gateway configs offline",
		Run:     runValidate,
	},
	"deploy": {
		Summary: "package, upload and provision the project",
		Flags:   publishFlags,
		Run:     runDeploy,
	},
	"update": {
		Summary: "publish a new version of a deployed project",
		Flags:   publishFlags,
		Run:     runUpdate,
	},
	"update-gateway": {
		Summary: "push the gateway config without rebuilding",
		Run:     runUpdateGateway,
	},
	"undeploy": {
		Summary: "delete the project's gateway and function",
		Flags: func(fs *pflag.FlagSet) {
			fs.Bool("destroy-bucket", false, "also delete the bucket and every package in it")
		},
		Run: runUndeploy,
	},
	"history": {
		Summary: "list recorded deployment runs",
		Flags: func(fs *pflag.FlagSet) {
			fs.Int("limit", 20, "maximum number of runs to list")
			fs.Bool("all", false, "list runs of every project in the ledger")
		},
		Run: runHistory,
	},
	"version": {
		Summary: "print the version",
		Run:     runVersion,
	},
}

func (e *env) projectPath() string {
	return configfile.Resolve(e.projectDir, e.configFilename)
}

func (e *env) loadProject() (*project.Config, error) {
	cfg, err := configfile.LoadProject(e.projectPath())
	return cfg, e.projectError(err)
}

// syncProject loads the project config for a provisioning command and
// persists derived fields, so later runs reuse the same bucket.
func (e *env) syncProject() (*project.Config, error) {
	cfg, saved, err := configfile.SyncProject(e.projectPath())
	if err != nil {
		return nil, e.projectError(err)
	}
	if saved {
		e.logger.Info("saved derived project settings", "path", e.projectPath(), "bucket", cfg.Bucket)
	}
	return cfg, nil
}

func (e *env) projectError(err error) error {
	if errors.Is(err, configfile.ErrNotFound) {
		return &CommandError{
			Op:       "load project",
			Err:      fmt.Errorf("%w (run \"yappa init\" first)", err),
			ExitCode: ExitConfigError,
		}
	}
	return err
}

// =============================================================================
// init
// =============================================================================

func initFlags(fs *pflag.FlagSet) {
	fs.String("name", project.DefaultProjectName, "project name")
	fs.String("description", "", "project description")
	fs.String("runtime", project.DefaultRuntime, "function runtime")
	fs.String("application-type", project.DefaultApplicationType, "wsgi, asgi or django")
	fs.String("entrypoint", "", "module.attribute of the application")
	fs.String("django-settings-module", "", "settings module of a django project")
	fs.String("requirements-file", project.DefaultRequirementsFile, "requirements file")
}

func runInit(_ context.Context, e *env) error {
	str := func(name string) string {
		v, _ := e.flags.GetString(name)
		return v
	}
	cfg := &project.Config{
		ProjectName:          str("name"),
		Description:          str("description"),
		Runtime:              str("runtime"),
		ApplicationType:      str("application-type"),
		Entrypoint:           str("entrypoint"),
		DjangoSettingsModule: str("django-settings-module"),
		RequirementsFile:     str("requirements-file"),
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := e.projectPath()
	if err := configfile.CreateProject(path, cfg); err != nil {
		return err
	}
	e.logger.Info("project config created", "path", path, "slug", cfg.ProjectSlug)
	fmt.Fprintf(e.stdout, "created %s\n", path)
	fmt.Fprintf(e.stdout, "  project  %s\n", cfg.ProjectSlug)
	fmt.Fprintf(e.stdout, "  bucket   %s\n", cfg.Bucket)
	return nil
}

// =============================================================================
// validate
// =============================================================================

func runValidate(ctx context.Context, e *env) error {
	cfg, err := e.loadProject()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reqPath := configfile.Resolve(e.projectDir, cfg.RequirementsFile)
	content, err := os.ReadFile(reqPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return validation.NewValidationError("requirements_file", reqPath+" does not exist", err)
		}
		return err
	}
	if err := validation.ValidateRequirements(content); err != nil {
		return err
	}

	gwPath := configfile.Resolve(e.projectDir, cfg.GatewayConfig)
	gw, err := configfile.LoadGateway(gwPath)
	switch {
	case errors.Is(err, configfile.ErrNotFound):
		fmt.Fprintf(e.stdout, "%s not found; the default gateway config will be generated on deploy\n", gwPath)
	case err != nil:
		return err
	default:
		if err := gw.Validate(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(e.stdout, "%s is valid\n", e.projectPath())
	return nil
}

// =============================================================================
// deploy / update / update-gateway / undeploy
// =============================================================================

func publishFlags(fs *pflag.FlagSet) {
	fs.Bool("no-deps", false, "do not install requirements into the package")
}

func runDeploy(ctx context.Context, e *env) error {
	return runPublish(ctx, e, (*orchestrator.Orchestrator).Deploy)
}

func runUpdate(ctx context.Context, e *env) error {
	return runPublish(ctx, e, (*orchestrator.Orchestrator).Update)
}

type publishFunc func(*orchestrator.Orchestrator, context.Context, orchestrator.DeployRequest) (*orchestrator.Result, error)

func runPublish(ctx context.Context, e *env, publish publishFunc) error {
	cfg, err := e.syncProject()
	if err != nil {
		return err
	}
	s, err := newSession(e.cfg, e.projectDir, e.configFilename, cfg, e.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	noDeps, _ := e.flags.GetBool("no-deps")
	res, err := publish(s.orch, ctx, orchestrator.DeployRequest{
		Config:              cfg,
		InstallRequirements: e.cfg.Build.InstallRequirements && !noDeps,
	})
	if err != nil {
		return err
	}
	printResult(e.stdout, res)
	return nil
}

func runUpdateGateway(ctx context.Context, e *env) error {
	cfg, err := e.syncProject()
	if err != nil {
		return err
	}
	s, err := newSession(e.cfg, e.projectDir, e.configFilename, cfg, e.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.orch.UpdateGateway(ctx, cfg)
	if err != nil {
		return err
	}
	printResult(e.stdout, res)
	return nil
}

func runUndeploy(ctx context.Context, e *env) error {
	cfg, err := e.syncProject()
	if err != nil {
		return err
	}
	s, err := newSession(e.cfg, e.projectDir, e.configFilename, cfg, e.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	destroy, _ := e.flags.GetBool("destroy-bucket")
	res, err := s.orch.Undeploy(ctx, orchestrator.UndeployRequest{Config: cfg, DestroyBucket: destroy})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "removed %s (run %s)\n", cfg.ProjectSlug, res.Run.ID)
	return nil
}

func printResult(w io.Writer, res *orchestrator.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\t%s\n", res.Run.ID, res.Run.State)
	if prev := res.Previous; prev != nil && prev.State == deployment.StateFailed {
		fmt.Fprintf(tw, "resumed\t%s\tfailed at %s\n", prev.ID, prev.CurrentStep)
	}
	if fn := res.Function; fn != nil {
		fmt.Fprintf(tw, "function\t%s\t%s\n", fn.ID, fn.InvokeURL)
	}
	if v := res.Version; v != nil {
		fmt.Fprintf(tw, "version\t%s\t%s/%s\n", v.ID, v.Bucket, v.ObjectKey)
	}
	if gw := res.Gateway; gw != nil {
		fmt.Fprintf(tw, "gateway\t%s\thttps://%s\n", gw.ID, gw.Domain)
	}
	tw.Flush()
}

// =============================================================================
// history
// =============================================================================

func runHistory(ctx context.Context, e *env) error {
	dsn := e.cfg.LedgerPath(e.projectDir)
	if dsn == "" {
		return &CommandError{Op: "history", Err: errors.New("ledger is disabled (ledger.dsn is empty)"), ExitCode: ExitConfigError}
	}
	ledger, err := openLedger(dsn)
	if err != nil {
		return err
	}
	defer ledger.Close()

	limit, _ := e.flags.GetInt("limit")
	all, _ := e.flags.GetBool("all")
	opts := store.ListOptions{Limit: limit}

	var runs []deployment.Run
	if all {
		runs, err = ledger.ListRuns(ctx, opts)
	} else {
		cfg, lerr := e.loadProject()
		if lerr != nil {
			return lerr
		}
		runs, err = ledger.ListRunsByProject(ctx, cfg.ProjectSlug, opts)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tKIND\tPROJECT\tSTATE\tSTEP\tSTARTED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.ProjectSlug, r.State, r.CurrentStep,
			r.CreatedAt.Local().Format(time.DateTime), r.ErrorMessage)
	}
	return tw.Flush()
}

// =============================================================================
// version
// =============================================================================

func runVersion(_ context.Context, e *env) error {
	fmt.Fprintf(e.stdout, "yappa %s (built %s)\n", Version, BuildTime)
	return nil
}
