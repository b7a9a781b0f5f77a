package validation

import "strings"

// =============================================================================
// Bucket Name Validation
// =============================================================================

const (
	minBucketNameLength = 3
	maxBucketNameLength = 63
)

// ValidateBucketName checks a bucket name against the object-store naming rules.
//
// The rules are:
//   - Length is between 3 and 63 characters
//   - No uppercase characters and no underscores
//   - Every dot-separated label is non-empty and starts and ends with a
//     lowercase letter or a digit
//   - The name is not made of digit-only labels (it would parse as an IP)
//
// This is a pure function with no side effects. Failures wrap ErrInvalidBucketName.
//
// Example:
//
//	ValidateBucketName("my.bucket-1") // returns nil
//	ValidateBucketName("My_Bucket")   // returns error
//	ValidateBucketName("192.168.1.1") // returns error
func ValidateBucketName(name string) error {
	if len(name) < minBucketNameLength || len(name) > maxBucketNameLength {
		return bucketError("bucket names must be at least 3 and no more than 63 characters long")
	}
	if strings.ToLower(name) != name || strings.Contains(name, "_") {
		return bucketError("bucket names must not contain uppercase characters or underscores")
	}

	labels := strings.Split(name, ".")
	allDigits := true
	for _, label := range labels {
		if label == "" || !isLowerOrDigit(label[0]) || !isLowerOrDigit(label[len(label)-1]) {
			return bucketError("each label must start and end with a lowercase letter or a number")
		}
		if !isDigits(label) {
			allDigits = false
		}
	}
	if allDigits {
		return bucketError("bucket names must not be formatted as an IP address (i.e. 192.168.5.4)")
	}

	return nil
}

func bucketError(message string) *ValidationError {
	return NewValidationError("bucket", message, ErrInvalidBucketName)
}

func isLowerOrDigit(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
