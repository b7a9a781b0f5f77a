// Package auth provides the authentication context of provisioning API calls.
// Callers present an opaque bearer token and the folder they act in.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const authContextKey contextKey = "auth"

// =============================================================================
// Types
// =============================================================================

// Context represents the authentication context for a request.
type Context struct {
	// Token is the bearer token presented by the caller. It is never parsed.
	Token string

	// FolderID scopes every resource the caller creates or looks up.
	FolderID string

	// Authenticated indicates whether the request carried a token.
	Authenticated bool
}

// =============================================================================
// Header Constants
// =============================================================================

const (
	// HeaderAuthorization carries "Bearer {token}".
	HeaderAuthorization = "Authorization"

	// HeaderFolderID is the header containing the folder the caller acts in.
	HeaderFolderID = "X-Folder-ID"

	bearerPrefix = "Bearer "
)

// =============================================================================
// Context Extraction
// =============================================================================

// ExtractFromRequest extracts auth context from HTTP request headers.
func ExtractFromRequest(r *http.Request) Context {
	return ExtractFromHeaders(headerGetter{r: r})
}

// HeaderGetter is an interface for getting header values.
// This allows testing without requiring an http.Request.
type HeaderGetter interface {
	Get(key string) string
}

type headerGetter struct {
	r *http.Request
}

func (h headerGetter) Get(key string) string {
	return h.r.Header.Get(key)
}

// ExtractFromHeaders extracts auth context from headers.
// A missing or malformed Authorization header yields an unauthenticated
// context; the folder is extracted either way.
func ExtractFromHeaders(headers HeaderGetter) Context {
	folderID := strings.TrimSpace(headers.Get(HeaderFolderID))

	token := parseBearer(headers.Get(HeaderAuthorization))
	if token == "" {
		return Context{FolderID: folderID, Authenticated: false}
	}
	return Context{
		Token:         token,
		FolderID:      folderID,
		Authenticated: true,
	}
}

func parseBearer(header string) string {
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// BearerValue formats a token for the Authorization header.
func BearerValue(token string) string {
	return bearerPrefix + token
}

// TokenMatches compares a presented token with the expected one in
// constant time.
func TokenMatches(presented, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the auth context in the request context.
func WithContext(ctx context.Context, authCtx Context) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext retrieves the auth context from the request context.
// If no auth context is found, returns an unauthenticated context.
func FromContext(ctx context.Context) Context {
	if authCtx, ok := ctx.Value(authContextKey).(Context); ok {
		return authCtx
	}
	return Context{Authenticated: false}
}

// =============================================================================
// Helper Types for Testing
// =============================================================================

// MapHeaderGetter wraps a map to implement HeaderGetter interface.
// This is useful for testing without creating http.Request objects.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
