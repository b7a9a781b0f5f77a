// Package resources provides JSON:API resource implementations for the
// provider emulator.
package resources

import (
	"errors"
	"net/http"

	"github.com/artpar/yappa/internal/core/auth"
	"github.com/manyminds/api2go"
)

// Response implements api2go.Responder.
type Response struct {
	Code int
	Res  interface{}
	Meta map[string]interface{}
}

// Metadata returns additional metadata for the response.
func (r *Response) Metadata() map[string]interface{} {
	return r.Meta
}

// Result returns the response data.
func (r *Response) Result() interface{} {
	return r.Res
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.Code
}

// =============================================================================
// Helper Functions
// =============================================================================

// folderOf returns the folder the caller acts in.
func folderOf(req *http.Request) string {
	return auth.FromContext(req.Context()).FolderID
}

// errorResponse maps a state error onto a JSON:API error.
func errorResponse(err error) (api2go.Responder, error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalid):
		status = http.StatusBadRequest
	}
	return &Response{Code: status}, api2go.NewHTTPError(err, err.Error(), status)
}

func methodNotAllowed(what string) (api2go.Responder, error) {
	err := errors.New(what + " is not supported")
	return &Response{Code: http.StatusMethodNotAllowed}, api2go.NewHTTPError(err, err.Error(), http.StatusMethodNotAllowed)
}

// firstParam returns the first value of a query parameter.
func firstParam(req api2go.Request, key string) string {
	if values := req.QueryParams[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
