package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/juju/clock"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Store owns the in-memory ProvisioningState for a run and writes it through
// the Repository after every recorded step.
type Store struct {
	repo   Repository
	path   string
	clock  clock.Clock
	logger ports.Logger

	mu    sync.Mutex
	state *ProvisioningState
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for the state's UpdatedAt.
func WithClock(clk clock.Clock) StoreOption {
	return func(s *Store) {
		s.clock = clk
	}
}

// WithLogger sets the logger used for load warnings.
func WithLogger(logger ports.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store for the state file at path.
func NewStore(repo Repository, path string, opts ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		path:   path,
		clock:  clock.WallClock,
		logger: nopLogger{},
		state:  NewProvisioningState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted state. A missing file yields empty state; an
// unreadable or corrupt file is logged as a warning and also yields empty
// state, so Load never fails a run.
func (s *Store) Load(ctx context.Context) *ProvisioningState {
	loaded, err := s.repo.Load(ctx, s.path)
	switch {
	case err == nil:
		loaded.normalize()
	case errors.Is(err, ErrStateNotFound):
		s.logger.Debug(ctx, "no previous state", ports.F("path", s.path))
		loaded = NewProvisioningState()
	default:
		s.logger.Warn(ctx, "ignoring unreadable state file, starting fresh",
			ports.F("path", s.path), ports.Err(err))
		loaded = NewProvisioningState()
	}

	s.mu.Lock()
	s.state = loaded
	s.mu.Unlock()
	return loaded.Clone()
}

// RecordStep stores the outcome of a step together with the artifacts it
// produced, then saves. It is the only way the state changes.
func (s *Store) RecordStep(ctx context.Context, step string, rec StepRecord, artifacts map[string]string) error {
	s.mu.Lock()
	s.state.CompletedSteps[step] = rec
	for k, v := range artifacts {
		s.state.GeneratedArtifacts[k] = v
	}
	if rec.RunID != "" {
		s.state.RunID = rec.RunID
	}
	s.state.UpdatedAt = s.clock.Now().UTC()
	snapshot := s.state.Clone()
	s.mu.Unlock()

	if err := s.repo.Save(ctx, s.path, snapshot); err != nil {
		return fmt.Errorf("record %s: %w", step, err)
	}
	return nil
}

// Flush saves the current state without changing it.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	snapshot := s.state.Clone()
	s.mu.Unlock()
	return s.repo.Save(ctx, s.path, snapshot)
}

// Converged reports whether step reached its desired state on a previous run
// and was verified, so a non-forced run can skip it.
func (s *Store) Converged(step string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.CompletedSteps[step]
	return ok && rec.Converged
}

// Record returns the stored record for step.
func (s *Store) Record(step string) (StepRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Record(step)
}

// Artifacts returns a copy of the generated artifacts.
func (s *Store) Artifacts() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.state.GeneratedArtifacts))
	for k, v := range s.state.GeneratedArtifacts {
		out[k] = v
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...ports.Field) {}
func (nopLogger) Info(context.Context, string, ...ports.Field)  {}
func (nopLogger) Warn(context.Context, string, ...ports.Field)  {}
func (nopLogger) Error(context.Context, string, ...ports.Field) {}
func (n nopLogger) With(...ports.Field) ports.Logger            { return n }
func (nopLogger) Level() ports.Level                            { return ports.LevelError }
func (nopLogger) SetLevel(ports.Level)                          {}
