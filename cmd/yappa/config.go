package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds the tool settings. Project settings live in yappa.yaml.
type Config struct {
	Provider ProviderConfig            `mapstructure:"provider"`
	Profiles map[string]ProviderConfig `mapstructure:"profiles"`
	Storage  StorageConfig             `mapstructure:"storage"`
	Build    BuildConfig               `mapstructure:"build"`
	Ledger   LedgerConfig              `mapstructure:"ledger"`
	Log      LogConfig                 `mapstructure:"log"`
}

// ProviderConfig holds provisioning API settings.
type ProviderConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	FolderID string        `mapstructure:"folder_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds S3-compatible object store settings. Credentials are
// issued by the provider at deploy time.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	PathStyle bool   `mapstructure:"path_style"`
}

// BuildConfig holds packaging settings.
type BuildConfig struct {
	// Resolver is "pip" (local pip, platform wheels) or "docker".
	Resolver            string `mapstructure:"resolver"`
	PipCommand          string `mapstructure:"pip_command"`
	DockerHost          string `mapstructure:"docker_host"`
	AdapterRequirement  string `mapstructure:"adapter_requirement"`
	InstallRequirements bool   `mapstructure:"install_requirements"`
	// StagingDir holds build output. Empty uses the user cache dir.
	StagingDir string `mapstructure:"staging_dir"`
}

// LedgerConfig holds deployment ledger settings.
type LedgerConfig struct {
	// DSN is the SQLite path. Relative paths are resolved against the
	// project directory. Empty disables the ledger.
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ForProfile returns the provider settings with the named profile's
// non-empty fields laid over them.
func (c *Config) ForProfile(name string) ProviderConfig {
	p := c.Provider
	override, ok := c.Profiles[name]
	if !ok {
		return p
	}
	if override.Endpoint != "" {
		p.Endpoint = override.Endpoint
	}
	if override.Token != "" {
		p.Token = override.Token
	}
	if override.FolderID != "" {
		p.FolderID = override.FolderID
	}
	if override.Timeout != 0 {
		p.Timeout = override.Timeout
	}
	return p
}

// LedgerPath resolves the ledger DSN against projectDir.
func (c *Config) LedgerPath(projectDir string) string {
	dsn := c.Ledger.DSN
	if dsn == "" || dsn == ":memory:" || filepath.IsAbs(dsn) {
		return dsn
	}
	return filepath.Join(projectDir, dsn)
}

// =============================================================================
// Config Loading
// =============================================================================

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"endpoint":   "provider.endpoint",
	"token":      "provider.token",
	"folder-id":  "provider.folder_id",
	"resolver":   "build.resolver",
	"ledger-dsn": "ledger.dsn",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// LoadConfig loads configuration from file, environment and flags. Flags
// that were set win over environment, which wins over the file.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("provider.endpoint", "http://127.0.0.1:8090/api")
	v.SetDefault("provider.token", "")
	v.SetDefault("provider.folder_id", "")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("storage.endpoint", "http://127.0.0.1:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.path_style", true)
	v.SetDefault("build.resolver", "pip")
	v.SetDefault("build.pip_command", "pip")
	v.SetDefault("build.docker_host", "")
	v.SetDefault("build.adapter_requirement", "yappa")
	v.SetDefault("build.install_requirements", true)
	v.SetDefault("build.staging_dir", "")
	v.SetDefault("ledger.dsn", ".yappa/ledger.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// A missing file falls back to defaults.
		}
	}

	v.SetEnvPrefix("YAPPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg.Build.Resolver {
	case "pip", "docker":
	default:
		return nil, fmt.Errorf("unknown build.resolver %q (want pip or docker)", cfg.Build.Resolver)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Command output goes to stdout, so logs are written to w (stderr).
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
