package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/validation"
	"github.com/artpar/yappa/internal/shell/orchestrator"
	"github.com/artpar/yappa/internal/shell/packaging"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/artpar/yappa/internal/shell/transport"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitValidationError   = 2
	ExitBuildError        = 3
	ExitTransportError    = 4
	ExitProvisioningError = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		usage(stderr)
		if len(args) == 0 {
			return ExitConfigError
		}
		return ExitSuccess
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		usage(stderr)
		return ExitConfigError
	}

	fs := pflag.NewFlagSet("yappa "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := addCommonFlags(fs)
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitSuccess
		}
		return ExitConfigError
	}

	cfg, err := LoadConfig(opts.configPath, fs)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := &env{
		flags:          fs,
		cfg:            cfg,
		logger:         logger,
		stdout:         stdout,
		projectDir:     opts.projectDir,
		configFilename: opts.configFilename,
	}
	if err := cmd.Run(ctx, e); err != nil {
		code := exitCode(err)
		logger.Debug("command failed", "command", name, "exit_code", code, "error", err)
		fmt.Fprintf(stderr, "yappa %s: %v\n", name, err)
		return code
	}
	return ExitSuccess
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: yappa <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-16s %s\n", name, commands[name].Summary)
	}
}

// =============================================================================
// Common Flags
// =============================================================================

type commonOptions struct {
	configPath     string
	projectDir     string
	configFilename string
}

func addCommonFlags(fs *pflag.FlagSet) *commonOptions {
	opts := &commonOptions{}
	fs.StringVar(&opts.configPath, "config", "", "path to the tool settings file")
	fs.StringVarP(&opts.projectDir, "project-dir", "C", ".", "project directory")
	fs.StringVarP(&opts.configFilename, "file", "f", "yappa.yaml", "project config file, relative to the project directory")
	fs.String("endpoint", "", "provisioning API base URL")
	fs.String("token", "", "provisioning API token")
	fs.String("folder-id", "", "folder to provision into")
	fs.String("resolver", "", "dependency resolver: pip or docker")
	fs.String("ledger-dsn", "", "deployment ledger database path")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: text or json")
	return opts
}

// =============================================================================
// Errors
// =============================================================================

// CommandError carries an explicit exit code for failures that are not
// classified by their cause.
type CommandError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// exitCode classifies err by the layer it came from. Remote failures are
// checked first because they may wrap local causes.
func exitCode(err error) int {
	var (
		cmdErr        *CommandError
		provErr       *provisioning.ProvisioningError
		transportErr  *transport.TransportError
		buildErr      *packaging.BuildError
		validationErr *validation.ValidationError
		stepErr       *orchestrator.StepError
	)
	switch {
	case errors.As(err, &cmdErr):
		return cmdErr.ExitCode
	case errors.As(err, &provErr):
		return ExitProvisioningError
	case errors.As(err, &transportErr):
		return ExitTransportError
	case errors.As(err, &buildErr):
		return ExitBuildError
	case errors.As(err, &validationErr):
		return ExitValidationError
	case errors.As(err, &stepErr) && stepErr.Step == deployment.StepPreflight:
		return ExitValidationError
	case errors.Is(err, gateway.ErrInvalidSpec), errors.Is(err, gateway.ErrInvalidYAML), errors.Is(err, gateway.ErrNotMapping):
		return ExitValidationError
	default:
		return ExitConfigError
	}
}
