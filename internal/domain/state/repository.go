package state

import (
	"context"
	"errors"
)

// Repository errors.
var (
	ErrStateNotFound = errors.New("state file not found")
	ErrStateCorrupt  = errors.New("state file is corrupt")
	ErrSaveFailed    = errors.New("failed to save state")
	ErrConcurrentRun = errors.New("another provisioning run is in progress")
)

// Repository is the port for state persistence.
type Repository interface {
	// Load reads the state at path.
	// Returns ErrStateNotFound if the file doesn't exist.
	// Returns ErrStateCorrupt if the file exists but is invalid.
	Load(ctx context.Context, path string) (*ProvisioningState, error)

	// Save replaces the state at path. A crash during Save leaves either the
	// old or the new document in place, never a truncated one.
	Save(ctx context.Context, path string, state *ProvisioningState) error
}

// RunLock guards the state file against concurrent runs.
type RunLock interface {
	// Acquire takes the lock without waiting. Returns ErrConcurrentRun when
	// another process holds it.
	Acquire(ctx context.Context) error

	// Release gives the lock back. Releasing an unheld lock is a no-op.
	Release() error
}
