// Package api provides the HTTP surface of the provider emulator: an
// in-memory implementation of the function, gateway and credential API
// that the provisioning client talks to.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/yappa/internal/shell/api/middleware"
	"github.com/artpar/yappa/internal/shell/api/resources"
	"github.com/artpar/yappa/internal/shell/provisioning"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/manyminds/api2go"
	"github.com/manyminds/api2go/jsonapi"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	State      *resources.State // nil starts from an empty state
	Token      string           // Bearer token callers must present; empty accepts any
	BaseDomain string           // Gateways are served on subdomains of this domain
	Logger     *slog.Logger
}

// SetupAPI creates the emulator router with JSON:API resources and custom
// actions.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.State == nil {
		cfg.State = resources.NewState(cfg.BaseDomain)
	}
	logger := cfg.Logger.With("component", "emulator")

	jsonAPI := api2go.NewAPIWithResolver("v1", api2go.NewStaticResolver("/api"))
	jsonAPI.ContentType = provisioning.ContentType

	functionResource := resources.NewFunctionResource(cfg.State, logger)
	versionResource := resources.NewFunctionVersionResource(cfg.State, logger)
	gatewayResource := resources.NewGatewayResource(cfg.State, logger)
	keyResource := resources.NewS3KeyResource(cfg.State)

	jsonAPI.AddResource(provisioning.Function{}, functionResource)
	jsonAPI.AddResource(provisioning.FunctionVersion{}, versionResource)
	jsonAPI.AddResource(provisioning.Gateway{}, gatewayResource)
	jsonAPI.AddResource(provisioning.S3Key{}, keyResource)

	router := mux.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(chimw.RequestID)
	router.Use(requestIDHeader)
	router.Use(requestLogger(logger))
	router.Use(recoveryMiddleware(logger))

	router.HandleFunc("/health", healthHandler).Methods("GET")

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Token:  cfg.Token,
		Logger: logger,
	})
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(authMW.Handler)

	// Custom actions are registered before the api2go catch-all.
	apiRouter.HandleFunc("/v1/functions/{id}/versions", func(w http.ResponseWriter, r *http.Request) {
		resp, err := functionResource.ListVersions(mux.Vars(r)["id"], r)
		writeResponder(w, resp, err, logger)
	}).Methods("GET")

	// api2go expects paths without the /api prefix.
	apiRouter.PathPrefix("/").Handler(http.StripPrefix("/api", jsonAPI.Handler()))

	return router
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDHeader echoes the request ID assigned by chi's RequestID.
func requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set(chimw.RequestIDHeader, reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request with its status and duration.
func requestLogger(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// recoveryMiddleware recovers from panics and returns a 500 error.
func recoveryMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					writeError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Handlers
// =============================================================================

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// =============================================================================
// Helpers
// =============================================================================

// writeResponder writes an api2go.Responder from a custom action as a
// JSON:API document.
func writeResponder(w http.ResponseWriter, resp api2go.Responder, err error, logger *slog.Logger) {
	if err != nil {
		if httpErr, ok := err.(api2go.HTTPError); ok && len(httpErr.Errors) > 0 {
			w.Header().Set("Content-Type", provisioning.ContentType)
			w.WriteHeader(parseStatus(httpErr.Errors[0].Status))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errors": httpErr.Errors,
			})
			return
		}
		logger.Error("request error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	if resp == nil || resp.Result() == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := jsonapi.Marshal(resp.Result())
	if err != nil {
		logger.Error("marshal response", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}
	w.Header().Set("Content-Type", provisioning.ContentType)
	w.WriteHeader(resp.StatusCode())
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", provisioning.ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{
			{
				"status": strconv.Itoa(status),
				"title":  title,
				"detail": detail,
			},
		},
	})
}

// parseStatus converts a status string to an int.
func parseStatus(status string) int {
	if i, err := strconv.Atoi(status); err == nil && i > 0 {
		return i
	}
	return http.StatusInternalServerError
}
