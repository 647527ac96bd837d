package statefile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
)

// FileLock implements state.RunLock with an advisory lock on a file next to
// the state file.
type FileLock struct {
	path  string
	flock *flock.Flock
}

// NewFileLock creates a lock for the state file at statePath. The lock file
// is statePath with a ".lock" suffix.
func NewFileLock(statePath string) *FileLock {
	path := statePath + ".lock"
	return &FileLock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock or fails with state.ErrConcurrentRun.
func (l *FileLock) Acquire(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.path, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s is held by another process", state.ErrConcurrentRun, l.path)
	}
	return nil
}

// Release gives the lock back.
func (l *FileLock) Release() error {
	return l.flock.Unlock()
}

// Ensure FileLock implements state.RunLock.
var _ state.RunLock = (*FileLock)(nil)
