package deployment

import (
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// Resource Naming Functions
// =============================================================================

// objectDigestLength is how many hex digits of the content digest appear in
// an object key.
const objectDigestLength = 16

// FunctionName returns the remote function name for a project.
// Pattern: {slug}
//
// Example:
//
//	FunctionName("my-project") // returns "my-project"
func FunctionName(slug string) string {
	return slug
}

// GatewayName returns the remote API gateway name for a project.
// Pattern: {slug}
//
// Gateways are looked up by name, so they share the function's name.
func GatewayName(slug string) string {
	return slug
}

// ObjectKey builds the object key for an uploaded package.
// Pattern: {slug}/{digest[:16]}-{nonce}.zip
//
// Example:
//
//	ObjectKey("my-project", "9f86d081884c7d65...", "1a2b3c4d")
//	// returns "my-project/9f86d081884c7d65-1a2b3c4d.zip"
func ObjectKey(slug, digest, nonce string) string {
	if len(digest) > objectDigestLength {
		digest = digest[:objectDigestLength]
	}
	return fmt.Sprintf("%s/%s-%s.zip", slug, digest, nonce)
}

// GenerateObjectKey builds a fresh object key for a package with the given
// hex content digest. Two calls never return the same key.
func GenerateObjectKey(slug, digest string) string {
	return ObjectKey(slug, digest, uuid.New().String()[:8])
}
