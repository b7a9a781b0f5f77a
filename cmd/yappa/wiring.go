package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/yappa/internal/core/project"
	"github.com/artpar/yappa/internal/shell/orchestrator"
	"github.com/artpar/yappa/internal/shell/packaging"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/artpar/yappa/internal/shell/store"
	"github.com/artpar/yappa/internal/shell/transport"
)

// =============================================================================
// Session
// =============================================================================

// session holds everything a provisioning command needs. Close releases the
// ledger and the container client.
type session struct {
	orch    *orchestrator.Orchestrator
	ledger  store.Store
	closers []io.Closer
	logger  *slog.Logger
}

func (r *session) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			r.logger.Warn("close failed", "error", err)
		}
	}
}

// newSession wires the orchestrator for one project.
func newSession(cfg *Config, projectDir, configFilename string, proj *project.Config, logger *slog.Logger) (*session, error) {
	rt := &session{logger: logger}

	provider := cfg.ForProfile(proj.Profile)
	service := provisioning.NewClient(provisioning.Config{
		BaseURL:  provider.Endpoint,
		Token:    provider.Token,
		FolderID: provider.FolderID,
		Timeout:  provider.Timeout,
	}, logger)

	platform, err := project.PlatformForRuntime(proj.Runtime)
	if err != nil {
		return nil, err
	}
	resolver, closer, err := newResolver(cfg.Build, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		rt.closers = append(rt.closers, closer)
	}
	builder, err := packaging.NewBuilder(packaging.BuilderConfig{
		ProjectDir:         projectDir,
		StagingRoot:        cfg.Build.StagingDir,
		Platform:           platform,
		Resolver:           resolver,
		AdapterRequirement: cfg.Build.AdapterRequirement,
		Logger:             logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	if dsn := cfg.LedgerPath(projectDir); dsn != "" {
		ledger, err := openLedger(dsn)
		if err != nil {
			// The ledger is advisory; deploy without it.
			logger.Warn("deployment ledger unavailable", "dsn", dsn, "error", err)
		} else {
			rt.ledger = ledger
			rt.closers = append(rt.closers, ledger)
		}
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Service:        service,
		Builder:        builder,
		Artifacts:      artifactFactory(cfg.Storage, logger),
		Ledger:         rt.ledger,
		ProjectDir:     projectDir,
		ConfigFilename: configFilename,
		Logger:         logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.orch = orch
	return rt, nil
}

func newResolver(cfg BuildConfig, logger *slog.Logger) (packaging.Resolver, io.Closer, error) {
	if cfg.Resolver == "docker" {
		r, err := packaging.NewDockerResolver(cfg.DockerHost, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("docker resolver: %w", err)
		}
		return r, r, nil
	}
	return &packaging.PipResolver{Command: strings.Fields(cfg.PipCommand)}, nil, nil
}

func artifactFactory(cfg StorageConfig, logger *slog.Logger) orchestrator.ArtifactStoreFactory {
	return func(creds transport.Credentials) orchestrator.ArtifactStore {
		client := transport.NewS3Client(transport.Config{
			Endpoint:     cfg.Endpoint,
			Region:       cfg.Region,
			UsePathStyle: cfg.PathStyle,
			Credentials:  creds,
		})
		return transport.New(client, logger)
	}
}

func openLedger(dsn string) (*store.SQLiteStore, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
	}
	return store.NewSQLiteStore(dsn)
}
