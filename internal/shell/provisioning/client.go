// Package provisioning provides a client for the provider's function,
// gateway and credential API. Resources travel as JSON:API documents.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/artpar/yappa/internal/core/auth"
	"github.com/manyminds/api2go/jsonapi"
)

// ContentType is the media type of every request and response body.
const ContentType = "application/vnd.api+json"

// Client implements Service over HTTP.
type Client struct {
	baseURL    string
	token      string
	folderID   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds provisioning client configuration.
type Config struct {
	BaseURL  string // API root, e.g., "http://127.0.0.1:8090/api"
	Token    string // Bearer token
	FolderID string // Folder that owns every created resource
	Timeout  time.Duration
}

// NewClient creates a new provisioning client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token:    cfg.Token,
		folderID: cfg.FolderID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "provisioning"),
	}
}

var _ Service = (*Client)(nil)

// =============================================================================
// Function Operations
// =============================================================================

// CreateFunction creates a function in the configured folder.
func (c *Client) CreateFunction(ctx context.Context, name, description string) (*Function, error) {
	fn := Function{FolderID: c.folderID, Name: name, Description: description}
	var created Function
	if err := c.do(ctx, http.MethodPost, "/v1/functions", fn, &created); err != nil {
		return nil, NewProvisioningError("", "CreateFunction", err)
	}
	c.logger.Info("function created", "name", name, "id", created.ID)
	return &created, nil
}

// GetFunction finds a function by name.
func (c *Client) GetFunction(ctx context.Context, name string) (*Function, error) {
	var fns []Function
	if err := c.do(ctx, http.MethodGet, "/v1/functions?"+nameFilter(name), nil, &fns); err != nil {
		return nil, NewProvisioningError("", "GetFunction", err)
	}
	for _, fn := range fns {
		if fn.Name == name {
			return &fn, nil
		}
	}
	return nil, NewProvisioningError("", "GetFunction", fmt.Errorf("function %q: %w", name, ErrNotFound))
}

// DeleteFunction deletes a function and all of its versions.
func (c *Client) DeleteFunction(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/functions/"+url.PathEscape(id), nil, nil); err != nil {
		return NewProvisioningError("", "DeleteFunction", err)
	}
	c.logger.Info("function deleted", "id", id)
	return nil
}

// CreateFunctionVersion publishes a new version of a function.
func (c *Client) CreateFunctionVersion(ctx context.Context, version FunctionVersion) (*FunctionVersion, error) {
	version.ID = ""
	var created FunctionVersion
	if err := c.do(ctx, http.MethodPost, "/v1/function_versions", version, &created); err != nil {
		return nil, NewProvisioningError("", "CreateFunctionVersion", err)
	}
	c.logger.Info("function version created",
		"function_id", created.FunctionID,
		"id", created.ID,
		"entrypoint", created.Entrypoint,
	)
	return &created, nil
}

// ListFunctionVersions returns every version of a function, oldest first.
func (c *Client) ListFunctionVersions(ctx context.Context, functionID string) ([]FunctionVersion, error) {
	var versions []FunctionVersion
	path := "/v1/functions/" + url.PathEscape(functionID) + "/versions"
	if err := c.do(ctx, http.MethodGet, path, nil, &versions); err != nil {
		return nil, NewProvisioningError("", "ListFunctionVersions", err)
	}
	return versions, nil
}

// =============================================================================
// Gateway Operations
// =============================================================================

// CreateGateway creates a gateway serving spec.
func (c *Client) CreateGateway(ctx context.Context, name, description, spec string) (*Gateway, error) {
	gw := Gateway{FolderID: c.folderID, Name: name, Description: description, Spec: spec}
	var created Gateway
	if err := c.do(ctx, http.MethodPost, "/v1/gateways", gw, &created); err != nil {
		return nil, NewProvisioningError("", "CreateGateway", err)
	}
	c.logger.Info("gateway created", "name", name, "id", created.ID, "domain", created.Domain)
	return &created, nil
}

// GetGateway finds a gateway by name.
func (c *Client) GetGateway(ctx context.Context, name string) (*Gateway, error) {
	var gws []Gateway
	if err := c.do(ctx, http.MethodGet, "/v1/gateways?"+nameFilter(name), nil, &gws); err != nil {
		return nil, NewProvisioningError("", "GetGateway", err)
	}
	for _, gw := range gws {
		if gw.Name == name {
			return &gw, nil
		}
	}
	return nil, NewProvisioningError("", "GetGateway", fmt.Errorf("gateway %q: %w", name, ErrNotFound))
}

// gatewayPatch carries only the attributes an update replaces.
type gatewayPatch struct {
	ID          string `json:"-"`
	Description string `json:"description"`
	Spec        string `json:"openapi_spec"`
}

func (p gatewayPatch) GetID() string   { return p.ID }
func (p gatewayPatch) GetName() string { return "gateways" }

// UpdateGateway replaces the description and routing descriptor of a gateway.
func (c *Client) UpdateGateway(ctx context.Context, id, description, spec string) (*Gateway, error) {
	patch := gatewayPatch{ID: id, Description: description, Spec: spec}
	var updated Gateway
	if err := c.do(ctx, http.MethodPatch, "/v1/gateways/"+url.PathEscape(id), patch, &updated); err != nil {
		return nil, NewProvisioningError("", "UpdateGateway", err)
	}
	c.logger.Info("gateway updated", "id", id)
	return &updated, nil
}

// DeleteGateway deletes a gateway.
func (c *Client) DeleteGateway(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/gateways/"+url.PathEscape(id), nil, nil); err != nil {
		return NewProvisioningError("", "DeleteGateway", err)
	}
	c.logger.Info("gateway deleted", "id", id)
	return nil
}

// =============================================================================
// Credential Operations
// =============================================================================

// GetS3Key returns the static object store key of a service account,
// issuing one on first use.
func (c *Client) GetS3Key(ctx context.Context, accountName string) (*S3Key, error) {
	var key S3Key
	if err := c.do(ctx, http.MethodPost, "/v1/s3_keys", S3Key{AccountName: accountName}, &key); err != nil {
		return nil, NewProvisioningError("", "GetS3Key", err)
	}
	return &key, nil
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", ContentType)
	if req.Body != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	if c.token != "" {
		req.Header.Set(auth.HeaderAuthorization, auth.BearerValue(c.token))
	}
	if c.folderID != "" {
		req.Header.Set(auth.HeaderFolderID, c.folderID)
	}
}

// do sends a JSON:API request. in is marshaled as the primary data when
// non-nil; out receives the primary data of the response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := jsonapi.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := jsonapi.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDocument is the JSON:API error envelope.
type errorDocument struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Errors) > 0 {
		apiErr.Title = doc.Errors[0].Title
		apiErr.Detail = doc.Errors[0].Detail
		return apiErr
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}

func nameFilter(name string) string {
	return url.Values{"filter[name]": {name}}.Encode()
}
