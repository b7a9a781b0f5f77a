package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/yappa/internal/shell/api"
	"github.com/artpar/yappa/internal/shell/api/resources"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server serves the provisioning API emulator.
type Server struct {
	config     *Config
	httpServer *http.Server
	state      *resources.State
	logger     *slog.Logger
}

// NewServer creates a server with an empty in-memory provider state.
func NewServer(cfg *Config, logger *slog.Logger) *Server {
	state := resources.NewState(cfg.Emulator.BaseDomain)
	if cfg.Emulator.Token == "" {
		logger.Warn("no token configured, accepting any bearer token")
	}

	handler := api.SetupAPI(api.APIConfig{
		State:      state,
		Token:      cfg.Emulator.Token,
		BaseDomain: cfg.Emulator.BaseDomain,
		Logger:     logger,
	})

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		state:  state,
		logger: logger,
	}
}

// Start listens and blocks until a shutdown signal, a server error, or ctx
// cancellation.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return &ServerError{Op: "Listen", Err: err, ExitCode: ExitHTTPServerError}
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until a shutdown signal, a server error, or ctx
// cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting emulator", "address", ln.Addr().String(),
			"base_domain", s.config.Emulator.BaseDomain)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{Op: "Serve", Err: err, ExitCode: ExitHTTPServerError}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return &ServerError{Op: "Shutdown", Err: err, ExitCode: ExitHTTPServerError}
	}
	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
