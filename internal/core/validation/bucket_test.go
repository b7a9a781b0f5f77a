package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ValidateBucketName Tests
// =============================================================================

func TestValidateBucketName_Valid(t *testing.T) {
	names := []string{
		"my.bucket-1",
		"abc",
		"test-bucket-231",
		"yappa.bucket-32139",
		"1bucket",
		"a.b.c",
		"192.168.1.x1",
		strings.Repeat("a", 63),
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, ValidateBucketName(name))
		})
	}
}

func TestValidateBucketName_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		bucket string
	}{
		{"too short", "ab"},
		{"too long", strings.Repeat("a", 64)},
		{"empty", ""},
		{"uppercase and underscore", "My_Bucket"},
		{"uppercase", "MyBucket"},
		{"underscore", "my_bucket"},
		{"empty label", "my..bucket"},
		{"leading dot", ".bucket"},
		{"trailing dot", "bucket."},
		{"label starts with hyphen", "my.-bucket"},
		{"label ends with hyphen", "bucket-"},
		{"ip address", "192.168.1.1"},
		{"all digits", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBucketName(tt.bucket)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidBucketName))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "bucket", vErr.Field)
		})
	}
}

func TestValidateBucketName_Messages(t *testing.T) {
	err := ValidateBucketName("ab")
	assert.Contains(t, err.Error(), "at least 3")

	err = ValidateBucketName("My_Bucket")
	assert.Contains(t, err.Error(), "uppercase")

	err = ValidateBucketName("192.168.1.1")
	assert.Contains(t, err.Error(), "IP address")
}
