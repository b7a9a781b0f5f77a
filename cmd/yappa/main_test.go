package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/yappa/internal/core/deployment"
	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/validation"
	"github.com/artpar/yappa/internal/shell/api"
	"github.com/artpar/yappa/internal/shell/orchestrator"
	"github.com/artpar/yappa/internal/shell/packaging"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/artpar/yappa/internal/shell/transport"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newProjectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wsgi.py"), []byte("app = object()\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("flask==2.0.1\n"), 0o644))
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// Command Tests
// =============================================================================

func TestRun_NoArgs(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "usage: yappa")
	assert.Contains(t, stderr, "update-gateway")
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "launch")
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, `unknown command "launch"`)
}

func TestRun_Version(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "yappa dev")
}

func TestRun_InitThenValidate(t *testing.T) {
	clearEnv(t)
	dir := newProjectDir(t)

	code, stdout, stderr := runCLI(t, "init", "-C", dir, "--name", "Hello World")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "hello-world")
	assert.FileExists(t, filepath.Join(dir, "yappa.yaml"))

	code, _, stderr = runCLI(t, "init", "-C", dir)
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "already exists")

	code, stdout, stderr = runCLI(t, "validate", "-C", dir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "is valid")
	assert.Contains(t, stdout, "default gateway config will be generated")
}

func TestRun_InitRejectsInvalidApplicationType(t *testing.T) {
	clearEnv(t)
	dir := newProjectDir(t)

	code, _, _ := runCLI(t, "init", "-C", dir, "--application-type", "cgi")
	assert.Equal(t, ExitValidationError, code)
	assert.NoFileExists(t, filepath.Join(dir, "yappa.yaml"))
}

func TestRun_ValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		project string
		gateway string
	}{
		{
			name:    "bad memory limit",
			project: "project_name: demo\nmemory_limit: lots\n",
		},
		{
			name:    "bad requirements line",
			project: "project_name: demo\nrequirements_file: reqs.txt\n",
		},
		{
			name:    "gateway is not openapi",
			project: "project_name: demo\n",
			gateway: "openapi: 3.0.0\npaths: {}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := newProjectDir(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "reqs.txt"), []byte("flask ==== 2\n"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "yappa.yaml"), []byte(tt.project), 0o644))
			if tt.gateway != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "yappa-gw.yaml"), []byte(tt.gateway), 0o644))
			}

			code, _, stderr := runCLI(t, "validate", "-C", dir)
			assert.Equal(t, ExitValidationError, code, stderr)
		})
	}
}

func TestRun_MissingProjectConfig(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "deploy", "-C", t.TempDir())
	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, stderr, "yappa init")
}

func TestRun_DeployProviderUnreachable(t *testing.T) {
	clearEnv(t)
	dir := newProjectDir(t)
	require.Equal(t, ExitSuccess, run([]string{"init", "-C", dir, "--name", "demo"}, &bytes.Buffer{}, &bytes.Buffer{}))

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	code, _, stderr := runCLI(t, "deploy", "-C", dir, "--no-deps",
		"--endpoint", server.URL+"/api", "--ledger-dsn", ":memory:")
	assert.Equal(t, ExitProvisioningError, code, stderr)
	assert.Contains(t, stderr, "bucket step")
}

func TestRun_DeployStorageDenied(t *testing.T) {
	clearEnv(t)
	dir := newProjectDir(t)
	require.Equal(t, ExitSuccess, run([]string{"init", "-C", dir, "--name", "demo"}, &bytes.Buffer{}, &bytes.Buffer{}))

	emulator := httptest.NewServer(api.SetupAPI(api.APIConfig{Token: "t"}))
	defer emulator.Close()
	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))
	defer storage.Close()
	t.Setenv("YAPPA_STORAGE_ENDPOINT", storage.URL)

	code, _, stderr := runCLI(t, "deploy", "-C", dir, "--no-deps",
		"--endpoint", emulator.URL+"/api", "--token", "t", "--folder-id", "f1")
	assert.Equal(t, ExitTransportError, code, stderr)

	// The failed run is in the project's ledger.
	code, stdout, stderr := runCLI(t, "history", "-C", dir)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "deploy")
	assert.Contains(t, stdout, string(deployment.StateFailed))
	assert.Contains(t, stdout, deployment.StepBucket)
}

func TestRun_HistoryEmpty(t *testing.T) {
	clearEnv(t)
	code, stdout, stderr := runCLI(t, "history", "--all", "--ledger-dsn", filepath.Join(t.TempDir(), "ledger.db"))
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "RUN")
}

func TestPrintResult_ShowsResumedRun(t *testing.T) {
	run, err := deployment.NewRun(deployment.KindDeploy, "myproj", deployment.StateNoFunction)
	require.NoError(t, err)
	require.NoError(t, run.Transition(deployment.StateFunctionExists))
	require.NoError(t, run.Transition(deployment.StateVersionPublished))
	require.NoError(t, run.Transition(deployment.StateGatewayWired))

	prev, err := deployment.NewRun(deployment.KindDeploy, "myproj", deployment.StateNoFunction)
	require.NoError(t, err)
	prev.SetStep(deployment.StepGateway)
	require.NoError(t, prev.TransitionToFailed("internal"))

	var out bytes.Buffer
	printResult(&out, &orchestrator.Result{
		Run:      run,
		Previous: prev,
		Function: &provisioning.Function{ID: "fn-1"},
		Gateway:  &provisioning.Gateway{ID: "gw-1", Domain: "myproj.apigw.localhost"},
	})
	assert.Contains(t, out.String(), prev.ID)
	assert.Contains(t, out.String(), "failed at gateway")
	assert.Contains(t, out.String(), "https://myproj.apigw.localhost")

	out.Reset()
	printResult(&out, &orchestrator.Result{Run: run, Previous: run})
	assert.NotContains(t, out.String(), "resumed")
}

// =============================================================================
// Exit Code Tests
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", validation.NewValidationError("bucket", "bad", nil), ExitValidationError},
		{"preflight", &orchestrator.StepError{Step: deployment.StepPreflight, Err: errors.New("x")}, ExitValidationError},
		{"gateway spec", fmt.Errorf("load: %w", gateway.ErrInvalidSpec), ExitValidationError},
		{"build", &orchestrator.StepError{Step: deployment.StepBuild, Err: packaging.NewBuildError(packaging.StageCopy, "", "x", packaging.ErrCopyFailed)}, ExitBuildError},
		{"transport", transport.NewTransportError("Upload", "b", "k", errors.New("x")), ExitTransportError},
		{"provisioning", provisioning.NewProvisioningError(deployment.StepGateway, "CreateGateway", provisioning.ErrUnavailable), ExitProvisioningError},
		{"explicit", &CommandError{Op: "history", Err: errors.New("x"), ExitCode: ExitConfigError}, ExitConfigError},
		{"other", errors.New("x"), ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
