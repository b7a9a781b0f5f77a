package resources

import (
	"log/slog"
	"net/http"

	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/manyminds/api2go"
)

// FunctionResource implements the api2go resource interface for functions.
type FunctionResource struct {
	State  *State
	Logger *slog.Logger
}

// NewFunctionResource creates a new function resource handler.
func NewFunctionResource(state *State, logger *slog.Logger) *FunctionResource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FunctionResource{State: state, Logger: logger}
}

// FindAll returns the folder's functions.
// GET /api/v1/functions?filter[name]=...
func (r FunctionResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	fns := r.State.ListFunctions(folderOf(req.PlainRequest), firstParam(req, "filter[name]"))
	return &Response{
		Code: http.StatusOK,
		Res:  fns,
		Meta: map[string]interface{}{"total": len(fns)},
	}, nil
}

// FindOne returns a single function by ID.
// GET /api/v1/functions/{id}
func (r FunctionResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	fn, err := r.State.GetFunction(folderOf(req.PlainRequest), id)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusOK, Res: fn}, nil
}

// Create creates a function.
// POST /api/v1/functions
func (r FunctionResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	fn, ok := obj.(provisioning.Function)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	created, err := r.State.CreateFunction(folderOf(req.PlainRequest), fn)
	if err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("function created", "id", created.ID, "name", created.Name, "folder_id", created.FolderID)
	return &Response{Code: http.StatusCreated, Res: created}, nil
}

// Update replaces the description of a function.
// PATCH /api/v1/functions/{id}
func (r FunctionResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	fn, ok := obj.(provisioning.Function)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	updated, err := r.State.UpdateFunction(folderOf(req.PlainRequest), fn)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusOK, Res: updated}, nil
}

// Delete deletes a function and its versions.
// DELETE /api/v1/functions/{id}
func (r FunctionResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	if err := r.State.DeleteFunction(folderOf(req.PlainRequest), id); err != nil {
		return errorResponse(err)
	}
	r.Logger.Info("function deleted", "id", id)
	return &Response{Code: http.StatusNoContent}, nil
}

// ListVersions is a custom action listing the versions of a function.
// GET /api/v1/functions/{id}/versions
func (r FunctionResource) ListVersions(id string, req *http.Request) (api2go.Responder, error) {
	versions, err := r.State.ListVersions(folderOf(req), id)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{
		Code: http.StatusOK,
		Res:  versions,
		Meta: map[string]interface{}{"total": len(versions)},
	}, nil
}
