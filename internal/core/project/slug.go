package project

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// Slug Generation
// =============================================================================

// Slugify converts a project name to a slug usable for function and gateway names.
//
// The transformation rules are:
//   - Lowercase letters (a-z) and digits (0-9) are kept as-is
//   - Uppercase letters (A-Z) are converted to lowercase
//   - Spaces, hyphens, underscores and dots become a single hyphen
//   - All other characters are removed
//   - Leading and trailing hyphens are trimmed
//
// Example:
//
//	Slugify("Yappa Project")  // returns "yappa-project"
//	Slugify("My App 2.0!")    // returns "my-app-2-0"
//	Slugify("flask_app")      // returns "flask-app"
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// GenerateBucketName derives a bucket name from the project slug.
// Pattern: {slug}-{8 hex chars}
//
// Example:
//
//	GenerateBucketName("yappa-project") // returns e.g. "yappa-project-3f2a91c0"
func GenerateBucketName(slug string) string {
	base := strings.ReplaceAll(slug, "_", ".")
	if len(base) > maxBucketBaseLength {
		base = strings.TrimRight(base[:maxBucketBaseLength], "-.")
	}
	return base + "-" + uuid.New().String()[:8]
}

// maxBucketBaseLength leaves room for the 9-character suffix within 63.
const maxBucketBaseLength = 54
