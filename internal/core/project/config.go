// Package project contains the project configuration model and the pure
// derivations made from it (slugs, bucket names, entrypoint descriptors).
// This is part of the Functional Core - all functions are pure with no I/O.
package project

import (
	"github.com/artpar/yappa/internal/core/validation"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	DefaultConfigFilename   = "yappa.yaml"
	DefaultGatewayFilename  = "yappa-gw.yaml"
	DefaultProjectName      = "My project"
	DefaultRuntime          = "python38"
	DefaultEntrypoint       = "wsgi.app"
	DefaultApplicationType  = validation.ApplicationTypeWSGI
	DefaultRequirementsFile = "requirements.txt"
	DefaultMemoryLimit      = "128m"
	DefaultTimeout          = "60s"
	DefaultProfile          = "default"
	DefaultS3AccountName    = "yappa-uploader"
)

// =============================================================================
// Project Config
// =============================================================================

// Config is the persisted project configuration (yappa.yaml).
//
// Optional fields are filled by ApplyDefaults. Bucket is chosen once and
// then reused by every later deployment of the project.
type Config struct {
	ProjectName          string            `yaml:"project_name"`
	ProjectSlug          string            `yaml:"project_slug"`
	Description          string            `yaml:"description"`
	Runtime              string            `yaml:"runtime"`
	Entrypoint           string            `yaml:"entrypoint"`
	ApplicationType      string            `yaml:"application_type"`
	DjangoSettingsModule string            `yaml:"django_settings_module"`
	RequirementsFile     string            `yaml:"requirements_file"`
	ExcludedPaths        []string          `yaml:"excluded_paths"`
	Bucket               string            `yaml:"bucket"`
	S3AccountName        string            `yaml:"s3_account_name"`
	MemoryLimit          string            `yaml:"memory_limit"`
	Timeout              string            `yaml:"timeout"`
	Environment          map[string]string `yaml:"environment"`
	ServiceAccountID     string            `yaml:"service_account_id"`
	NamedServiceAccounts map[string]string `yaml:"named_service_accounts"`
	GatewayConfig        string            `yaml:"gw_config"`
	Profile              string            `yaml:"profile"`
}

// DefaultConfig returns a config with every defaulted field set, including a
// freshly generated bucket name.
func DefaultConfig() *Config {
	cfg := &Config{ProjectName: DefaultProjectName}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty fields with their documented defaults.
// Fields that already hold a value are never changed.
func (c *Config) ApplyDefaults() {
	if c.ProjectSlug == "" && c.ProjectName != "" {
		c.ProjectSlug = Slugify(c.ProjectName)
	}
	setDefault(&c.Runtime, DefaultRuntime)
	setDefault(&c.ApplicationType, DefaultApplicationType)
	if c.ApplicationType != validation.ApplicationTypeDjango {
		setDefault(&c.Entrypoint, DefaultEntrypoint)
	}
	setDefault(&c.RequirementsFile, DefaultRequirementsFile)
	setDefault(&c.MemoryLimit, DefaultMemoryLimit)
	setDefault(&c.Timeout, DefaultTimeout)
	setDefault(&c.GatewayConfig, DefaultGatewayFilename)
	setDefault(&c.Profile, DefaultProfile)
	setDefault(&c.S3AccountName, DefaultS3AccountName)
	if c.Bucket == "" && c.ProjectSlug != "" {
		c.Bucket = GenerateBucketName(c.ProjectSlug)
	}
	if c.Environment == nil {
		c.Environment = map[string]string{}
	}
	if c.NamedServiceAccounts == nil {
		c.NamedServiceAccounts = map[string]string{}
	}
	if c.ExcludedPaths == nil {
		c.ExcludedPaths = []string{}
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate runs every offline check that must pass before a deployment
// touches the network. The first failure is returned.
func (c *Config) Validate() error {
	if err := validation.ValidateNotEmpty("project_name", c.ProjectName); err != nil {
		return err
	}
	if err := validation.ValidateSlug(c.ProjectSlug); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("bucket", c.Bucket); err != nil {
		return err
	}
	if err := validation.ValidateBucketName(c.Bucket); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("requirements_file", c.RequirementsFile); err != nil {
		return err
	}
	if err := validation.ValidateApplicationType(c.ApplicationType); err != nil {
		return err
	}
	if _, err := c.EntrypointDescriptor(); err != nil {
		return err
	}
	if _, err := c.Resources(); err != nil {
		return err
	}
	if _, err := PlatformForRuntime(c.Runtime); err != nil {
		return err
	}
	return nil
}

// EntrypointDescriptor derives the descriptor for the configured application.
func (c *Config) EntrypointDescriptor() (EntrypointDescriptor, error) {
	return NewEntrypointDescriptor(c.ApplicationType, c.Entrypoint, c.DjangoSettingsModule)
}

// Resources parses the configured memory and timeout limits.
func (c *Config) Resources() (Resources, error) {
	return ParseResources(c.MemoryLimit, c.Timeout)
}

// Excluded returns the normalized exclusion list for packaging. The
// requirements file and both config files never ship.
func (c *Config) Excluded(configFilename string) []string {
	return NormalizeExcludedPaths(c.ExcludedPaths, c.RequirementsFile, configFilename, c.GatewayConfig)
}
