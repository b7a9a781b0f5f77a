package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/artpar/yappa/internal/core/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// testHandler is a simple handler that returns the auth context from request.
func testHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"authenticated": ctx.Authenticated,
			"folder_id":     ctx.FolderID,
		})
	})
}

func serve(t *testing.T, cfg AuthConfig, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewAuthMiddleware(cfg).Handler(testHandler())
	req := httptest.NewRequest("GET", "/api/v1/functions", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeErrors(t *testing.T, rec *httptest.ResponseRecorder) JSONAPIErrorResponse {
	t.Helper()
	var resp JSONAPIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	return resp
}

// =============================================================================
// AuthMiddleware Tests
// =============================================================================

func TestAuthMiddleware_ValidToken_StoresContext(t *testing.T) {
	rec := serve(t, AuthConfig{Token: "secret"}, map[string]string{
		"Authorization": "Bearer secret",
		"X-Folder-ID":   "folder-1",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["authenticated"])
	assert.Equal(t, "folder-1", resp["folder_id"])
}

func TestAuthMiddleware_AnyTokenWhenUnconfigured(t *testing.T) {
	rec := serve(t, AuthConfig{}, map[string]string{
		"Authorization": "Bearer whatever",
		"X-Folder-ID":   "folder-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	rec := serve(t, AuthConfig{Token: "secret"}, map[string]string{
		"X-Folder-ID": "folder-1",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/vnd.api+json", rec.Header().Get("Content-Type"))
	resp := decodeErrors(t, rec)
	assert.Equal(t, "401", resp.Errors[0].Status)
	assert.Equal(t, "Bearer token required", resp.Errors[0].Detail)
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	rec := serve(t, AuthConfig{Token: "secret"}, map[string]string{
		"Authorization": "Bearer guess",
		"X-Folder-ID":   "folder-1",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeErrors(t, rec).Errors[0].Detail)
}

func TestAuthMiddleware_NonBearerScheme(t *testing.T) {
	rec := serve(t, AuthConfig{}, map[string]string{
		"Authorization": "Basic dXNlcjpwYXNz",
		"X-Folder-ID":   "folder-1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MissingFolder(t *testing.T) {
	rec := serve(t, AuthConfig{Token: "secret"}, map[string]string{
		"Authorization": "Bearer secret",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrors(t, rec)
	assert.Equal(t, "400", resp.Errors[0].Status)
	assert.Contains(t, resp.Errors[0].Detail, "X-Folder-ID")
}
