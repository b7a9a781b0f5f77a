package project

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/yappa/internal/core/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func validConfig() *Config {
	cfg := &Config{
		ProjectName:      "Test Project",
		RequirementsFile: "flask_requirements.txt",
		Entrypoint:       "flask_app.app",
		ApplicationType:  "wsgi",
		Bucket:           "test-bucket-231",
		ExcludedPaths:    []string{".idea", ".git", "venv", "requirements.txt"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// =============================================================================
// ApplyDefaults Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "My project", cfg.ProjectName)
	assert.Equal(t, "my-project", cfg.ProjectSlug)
	assert.Equal(t, "python38", cfg.Runtime)
	assert.Equal(t, "wsgi.app", cfg.Entrypoint)
	assert.Equal(t, "wsgi", cfg.ApplicationType)
	assert.Equal(t, "requirements.txt", cfg.RequirementsFile)
	assert.Equal(t, "128m", cfg.MemoryLimit)
	assert.Equal(t, "60s", cfg.Timeout)
	assert.Equal(t, "yappa-gw.yaml", cfg.GatewayConfig)
	assert.Equal(t, "default", cfg.Profile)
	assert.NotNil(t, cfg.Environment)
	assert.NotNil(t, cfg.NamedServiceAccounts)
	assert.Regexp(t, `^my-project-[0-9a-f]{8}$`, cfg.Bucket)
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_KeepsBucket(t *testing.T) {
	cfg := &Config{ProjectName: "Demo", Bucket: "chosen-bucket"}
	cfg.ApplyDefaults()
	cfg.ApplyDefaults()
	assert.Equal(t, "chosen-bucket", cfg.Bucket)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		ProjectName: "Demo",
		ProjectSlug: "custom",
		Runtime:     "python39",
		MemoryLimit: "256m",
	}
	cfg.ApplyDefaults()
	assert.Equal(t, "custom", cfg.ProjectSlug)
	assert.Equal(t, "python39", cfg.Runtime)
	assert.Equal(t, "256m", cfg.MemoryLimit)
}

func TestApplyDefaults_DjangoHasNoDefaultEntrypoint(t *testing.T) {
	cfg := &Config{ProjectName: "Site", ApplicationType: "django", DjangoSettingsModule: "site.settings"}
	cfg.ApplyDefaults()
	assert.Empty(t, cfg.Entrypoint)
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"empty name", func(c *Config) { c.ProjectName = " " }, validation.ErrEmptyField},
		{"bad slug", func(c *Config) { c.ProjectSlug = "Bad_Slug" }, validation.ErrInvalidSlug},
		{"empty bucket", func(c *Config) { c.Bucket = "" }, validation.ErrEmptyField},
		{"bad bucket", func(c *Config) { c.Bucket = "My_Bucket" }, validation.ErrInvalidBucketName},
		{"empty requirements", func(c *Config) { c.RequirementsFile = "" }, validation.ErrEmptyField},
		{"bad app type", func(c *Config) { c.ApplicationType = "cgi" }, validation.ErrInvalidApplicationType},
		{"bad entrypoint", func(c *Config) { c.Entrypoint = "app" }, validation.ErrInvalidEntrypoint},
		{"django without settings", func(c *Config) { c.ApplicationType = "django" }, validation.ErrInvalidEntrypoint},
		{"bad memory", func(c *Config) { c.MemoryLimit = "lots" }, ErrInvalidLimit},
		{"memory too small", func(c *Config) { c.MemoryLimit = "64m" }, ErrInvalidLimit},
		{"bad timeout", func(c *Config) { c.Timeout = "forever" }, ErrInvalidLimit},
		{"unknown runtime", func(c *Config) { c.Runtime = "ruby27" }, ErrUnknownRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			var vErr *validation.ValidationError
			assert.True(t, errors.As(err, &vErr))
		})
	}
}

// =============================================================================
// Resources Tests
// =============================================================================

func TestParseResources(t *testing.T) {
	res, err := ParseResources("128m", "60s")
	require.NoError(t, err)
	assert.Equal(t, int64(128*1024*1024), res.MemoryBytes)
	assert.Equal(t, 60*time.Second, res.Timeout)

	res, err = ParseResources("1g", "30")
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024*1024), res.MemoryBytes)
	assert.Equal(t, 30*time.Second, res.Timeout)

	res, err = ParseResources("256MB", "2m")
	require.NoError(t, err)
	assert.Equal(t, int64(256*1024*1024), res.MemoryBytes)
	assert.Equal(t, 2*time.Minute, res.Timeout)
}

func TestParseResources_OutOfRange(t *testing.T) {
	_, err := ParseResources("8g", "60s")
	assert.True(t, errors.Is(err, ErrInvalidLimit))

	_, err = ParseResources("128m", "1h")
	assert.True(t, errors.Is(err, ErrInvalidLimit))

	_, err = ParseResources("128m", "0")
	assert.True(t, errors.Is(err, ErrInvalidLimit))
}
