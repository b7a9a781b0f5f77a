package transport

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Bucket errors
	ErrBucketNotFound = errors.New("bucket not found")
	ErrBucketTaken    = errors.New("bucket name is owned by another account")

	// Object errors
	ErrObjectNotFound = errors.New("object not found")

	// Archive errors
	ErrArchiveFailed = errors.New("package archive failed")
)

// TransportError wraps object store errors with the bucket and key involved.
// The provider error is preserved in Err.
type TransportError struct {
	Op     string // e.g., "Upload", "DestroyBucket"
	Bucket string
	Key    string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Bucket, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new TransportError.
func NewTransportError(op, bucket, key string, err error) *TransportError {
	return &TransportError{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}
