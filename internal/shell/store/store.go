package store

import (
	"context"

	"github.com/artpar/yappa/internal/core/deployment"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface of the deployment ledger.
type Store interface {
	CreateRun(ctx context.Context, run *deployment.Run) error
	GetRun(ctx context.Context, id string) (*deployment.Run, error)
	UpdateRun(ctx context.Context, run *deployment.Run) error
	ListRuns(ctx context.Context, opts ListOptions) ([]deployment.Run, error)
	ListRunsByProject(ctx context.Context, slug string, opts ListOptions) ([]deployment.Run, error)

	// LatestRun returns the most recent run of a project.
	LatestRun(ctx context.Context, slug string) (*deployment.Run, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options. Runs are listed newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
