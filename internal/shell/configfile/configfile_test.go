package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/core/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveProject_LoadProject_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), project.DefaultConfigFilename)

	cfg := &project.Config{
		ProjectName:      "Flask App",
		RequirementsFile: "flask_requirements.txt",
		Entrypoint:       "flask_app.app",
		Bucket:           "test-bucket-231",
		ExcludedPaths:    []string{".idea", ".git", "venv"},
		Environment:      map[string]string{"DEBUG": "false"},
	}
	cfg.ApplyDefaults()
	require.NoError(t, SaveProject(path, cfg))

	loaded, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, "flask-app", loaded.ProjectSlug)
	assert.Equal(t, "test-bucket-231", loaded.Bucket)
}

func TestLoadProject_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yappa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_name: Demo\nbucket: demo-bucket\n"), 0o644))

	cfg, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.ProjectSlug)
	assert.Equal(t, project.DefaultRuntime, cfg.Runtime)
	assert.Equal(t, project.DefaultEntrypoint, cfg.Entrypoint)
	assert.Equal(t, project.DefaultGatewayFilename, cfg.GatewayConfig)
	assert.Equal(t, "demo-bucket", cfg.Bucket)
}

func TestLoadProject_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadProject(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrNotFound)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("project_name: Demo\nentry_point: wsgi.app\n"), 0o644))
	_, err = LoadProject(unknown)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("project_name: [unterminated\n"), 0o644))
	_, err = LoadProject(broken)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	var fileErr *FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "LoadProject", fileErr.Op)
	assert.Equal(t, broken, fileErr.Path)
}

func TestSyncProject_PersistsDerivedBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yappa.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_name: Demo\n"), 0o644))

	first, saved, err := SyncProject(path)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.NotEmpty(t, first.Bucket)

	second, saved, err := SyncProject(path)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, first.Bucket, second.Bucket)
}

func TestSyncProject_LeavesCompleteFileAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yappa.yaml")
	content := "# keep me\nproject_name: Demo\nbucket: demo-bucket\nproject_slug: demo\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, saved, err := SyncProject(path)
	require.NoError(t, err)
	assert.False(t, saved)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestCreateProject_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yappa.yaml")
	cfg := project.DefaultConfig()

	require.NoError(t, CreateProject(path, cfg))
	err := CreateProject(path, cfg)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGateway_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), project.DefaultGatewayFilename)

	cfg, created, err := LoadOrCreateGateway(path, "Demo", "demo")
	require.NoError(t, err)
	assert.True(t, created)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "default config must not be written")

	injected, err := gateway.InjectFunctionID(cfg, "fn_123", "demo")
	require.NoError(t, err)
	require.NoError(t, SaveGateway(path, injected))

	loaded, created, err := LoadOrCreateGateway(path, "Demo", "demo")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"fn_123"}, loaded.FunctionIDs("demo"))

	want, err := injected.Marshal()
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestLoadGateway_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o644))

	_, _, err := LoadOrCreateGateway(path, "Demo", "demo")
	assert.ErrorIs(t, err, gateway.ErrNotMapping)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/proj", "yappa.yaml"), Resolve("/proj", "yappa.yaml"))
	assert.Equal(t, "/etc/yappa.yaml", Resolve("/proj", "/etc/yappa.yaml"))
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	require.NoError(t, writeFileAtomic(path, []byte("a: 1\n"), 0o644))
	require.NoError(t, writeFileAtomic(path, []byte("a: 2\n"), 0o644))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(data))
}
