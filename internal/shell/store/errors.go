// Package store provides the deployment ledger: a SQLite record of every
// run and the state it reached.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound means the ledger has no run with the given ID, or no run
	// at all for a project.
	ErrNotFound = errors.New("run not recorded")

	// ErrDuplicateID means a run ID was recorded twice.
	ErrDuplicateID = errors.New("run already recorded")

	// ErrConnectionFailed means the ledger file could not be opened.
	ErrConnectionFailed = errors.New("ledger unavailable")

	// ErrMigrationFailed means the ledger schema could not be brought up to date.
	ErrMigrationFailed = errors.New("ledger schema migration failed")

	// ErrInvalidData means a recorded run has an unparsable timestamp.
	ErrInvalidData = errors.New("corrupt run record")

	// ErrTxFailed means a ledger write batch could not begin, commit or
	// roll back.
	ErrTxFailed = errors.New("ledger transaction failed")
)

// StoreError describes a failed ledger operation.
type StoreError struct {
	Op      string // Store method, e.g. "UpdateRun"
	Entity  string // Always "run" for row-level failures
	ID      string // Run ID, or project slug for per-project lookups
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("ledger %s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	case e.Entity != "":
		return fmt.Sprintf("ledger %s %s: %s", e.Op, e.Entity, e.Message)
	default:
		return fmt.Sprintf("ledger %s: %s", e.Op, e.Message)
	}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
