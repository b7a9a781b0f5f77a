package resources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/artpar/yappa/internal/core/gateway"
	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/manyminds/api2go"
)

// GatewayResource implements the api2go resource interface for gateways.
type GatewayResource struct {
	State  *State
	Logger *slog.Logger
}

// NewGatewayResource creates a new gateway resource handler.
func NewGatewayResource(state *State, logger *slog.Logger) *GatewayResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GatewayResource{State: state, Logger: logger}
}

// FindAll returns the folder's gateways.
// GET /api/v1/gateways?filter[name]=...
func (r GatewayResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	gws := r.State.ListGateways(folderOf(req.PlainRequest), firstParam(req, "filter[name]"))
	return &Response{
		Code: http.StatusOK,
		Res:  gws,
		Meta: map[string]interface{}{"total": len(gws)},
	}, nil
}

// FindOne returns a single gateway by ID.
// GET /api/v1/gateways/{id}
func (r GatewayResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	gw, err := r.State.GetGateway(folderOf(req.PlainRequest), id)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusOK, Res: gw}, nil
}

// Create creates a gateway from a valid OpenAPI document.
// POST /api/v1/gateways
func (r GatewayResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	gw, ok := obj.(provisioning.Gateway)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	if err := checkSpec(req.PlainRequest.Context(), gw.Spec); err != nil {
		return errorResponse(err)
	}
	created, err := r.State.CreateGateway(folderOf(req.PlainRequest), gw)
	if err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("gateway created", "id", created.ID, "name", created.Name, "domain", created.Domain)
	return &Response{Code: http.StatusCreated, Res: created}, nil
}

// Update replaces the routing descriptor of a gateway.
// PATCH /api/v1/gateways/{id}
func (r GatewayResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	gw, ok := obj.(provisioning.Gateway)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	if err := checkSpec(req.PlainRequest.Context(), gw.Spec); err != nil {
		return errorResponse(err)
	}
	updated, err := r.State.UpdateGateway(folderOf(req.PlainRequest), gw)
	if err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("gateway updated", "id", updated.ID, "functions", functionIDs(updated.Spec))
	return &Response{Code: http.StatusOK, Res: updated}, nil
}

// Delete deletes a gateway.
// DELETE /api/v1/gateways/{id}
func (r GatewayResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	if err := r.State.DeleteGateway(folderOf(req.PlainRequest), id); err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("gateway deleted", "id", id)
	return &Response{Code: http.StatusNoContent}, nil
}

// checkSpec rejects descriptors that are not valid OpenAPI documents.
func checkSpec(ctx context.Context, spec string) error {
	cfg, err := gateway.Parse([]byte(spec))
	if err != nil {
		return fmt.Errorf("openapi_spec: %v: %w", err, ErrInvalid)
	}
	if err := cfg.Validate(ctx); err != nil {
		return fmt.Errorf("openapi_spec: %v: %w", err, ErrInvalid)
	}
	return nil
}

func functionIDs(spec string) []string {
	cfg, err := gateway.Parse([]byte(spec))
	if err != nil {
		return nil
	}
	var ids []string
	for _, b := range cfg.Bindings() {
		if b.FunctionID != "" && !slices.Contains(ids, b.FunctionID) {
			ids = append(ids, b.FunctionID)
		}
	}
	return ids
}
