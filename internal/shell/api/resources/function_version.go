package resources

import (
	"log/slog"
	"net/http"

	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/manyminds/api2go"
)

// FunctionVersionResource implements the api2go resource interface for
// function versions. Versions are immutable.
type FunctionVersionResource struct {
	State  *State
	Logger *slog.Logger
}

// NewFunctionVersionResource creates a new function version resource handler.
func NewFunctionVersionResource(state *State, logger *slog.Logger) *FunctionVersionResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FunctionVersionResource{State: state, Logger: logger}
}

// FindAll returns the versions of the function named by filter[function_id].
// GET /api/v1/function_versions?filter[function_id]=...
func (r FunctionVersionResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	functionID := firstParam(req, "filter[function_id]")
	if functionID == "" {
		return &Response{Code: http.StatusOK, Res: []provisioning.FunctionVersion{}}, nil
	}
	versions, err := r.State.ListVersions(folderOf(req.PlainRequest), functionID)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusOK, Res: versions}, nil
}

// FindOne returns a single version by ID.
// GET /api/v1/function_versions/{id}
func (r FunctionVersionResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	v, err := r.State.GetVersion(folderOf(req.PlainRequest), id)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusOK, Res: v}, nil
}

// Create publishes a new version.
// POST /api/v1/function_versions
func (r FunctionVersionResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	v, ok := obj.(provisioning.FunctionVersion)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	created, err := r.State.CreateVersion(folderOf(req.PlainRequest), v)
	if err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("function version created",
		"id", created.ID,
		"function_id", created.FunctionID,
		"entrypoint", created.Entrypoint,
		"package", created.Bucket+"/"+created.ObjectKey,
	)
	return &Response{Code: http.StatusCreated, Res: created}, nil
}

// Update is not supported; publish a new version instead.
func (r FunctionVersionResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	return methodNotAllowed("updating a function version")
}

// Delete is not supported; versions go away with their function.
func (r FunctionVersionResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	return methodNotAllowed("deleting a function version")
}
