package resources

import (
	"net/http"

	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/manyminds/api2go"
)

// S3KeyResource implements the api2go resource interface for static keys.
type S3KeyResource struct {
	State *State
}

// NewS3KeyResource creates a new static key resource handler.
func NewS3KeyResource(state *State) *S3KeyResource {
	return &S3KeyResource{State: state}
}

// FindAll is not supported; secrets are only returned on issue.
func (r S3KeyResource) FindAll(req api2go.Request) (api2go.Responder, error) {
	return methodNotAllowed("listing static keys")
}

// FindOne returns a key without its secret.
// GET /api/v1/s3_keys/{id}
func (r S3KeyResource) FindOne(id string, req api2go.Request) (api2go.Responder, error) {
	key, err := r.State.GetKey(folderOf(req.PlainRequest), id)
	if err != nil {
		return errorResponse(err)
	}
	key.SecretAccessKey = ""
	return &Response{Code: http.StatusOK, Res: key}, nil
}

// Create issues the key of a service account, or returns the one already
// issued.
// POST /api/v1/s3_keys
func (r S3KeyResource) Create(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	key, ok := obj.(provisioning.S3Key)
	if !ok {
		return errorResponse(ErrInvalid)
	}
	issued, err := r.State.IssueKey(folderOf(req.PlainRequest), key.AccountName)
	if err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusCreated, Res: issued}, nil
}

// Update is not supported; keys are immutable.
func (r S3KeyResource) Update(obj interface{}, req api2go.Request) (api2go.Responder, error) {
	return methodNotAllowed("updating a static key")
}

// Delete revokes a key.
// DELETE /api/v1/s3_keys/{id}
func (r S3KeyResource) Delete(id string, req api2go.Request) (api2go.Responder, error) {
	if err := r.State.RevokeKey(folderOf(req.PlainRequest), id); err != nil {
		return errorResponse(err)
	}
	return &Response{Code: http.StatusNoContent}, nil
}
