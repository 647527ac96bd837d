package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// memoryRepository keeps saved documents in memory.
type memoryRepository struct {
	mu      sync.Mutex
	docs    map[string]*ProvisioningState
	loadErr error
	saveErr error
	saves   int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{docs: map[string]*ProvisioningState{}}
}

func (m *memoryRepository) Load(_ context.Context, path string) (*ProvisioningState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrStateNotFound
	}
	return doc.Clone(), nil
}

func (m *memoryRepository) Save(_ context.Context, path string, state *ProvisioningState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.docs[path] = state.Clone()
	return nil
}

type recordingLogger struct {
	nopLogger
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Warn(_ context.Context, msg string, _ ...ports.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	store := NewStore(newMemoryRepository(), "state.json")

	loaded := store.Load(context.Background())

	assert.True(t, loaded.IsEmpty())
	assert.Equal(t, CurrentVersion, loaded.Version)
}

func TestStore_LoadCorruptWarnsAndStartsFresh(t *testing.T) {
	repo := newMemoryRepository()
	repo.loadErr = ErrStateCorrupt
	logger := &recordingLogger{}
	store := NewStore(repo, "state.json", WithLogger(logger))

	loaded := store.Load(context.Background())

	assert.True(t, loaded.IsEmpty())
	assert.Len(t, logger.warns, 1)
}

func TestStore_RecordStepSavesEveryTime(t *testing.T) {
	repo := newMemoryRepository()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(repo, "state.json", WithClock(testclock.NewClock(now)))
	ctx := context.Background()
	store.Load(ctx)

	require.NoError(t, store.RecordStep(ctx, "k3s:install", StepRecord{
		Status: StatusApplied, Converged: true, RunID: "run-1", AppliedAt: now,
	}, map[string]string{"k3s-version": "v1.30.4+k3s1"}))
	require.NoError(t, store.RecordStep(ctx, "tools:helm", StepRecord{Status: StatusFailed, RunID: "run-1"}, nil))

	assert.Equal(t, 2, repo.saves)
	saved := repo.docs["state.json"]
	require.NotNil(t, saved)
	assert.Equal(t, "run-1", saved.RunID)
	assert.Equal(t, now, saved.UpdatedAt)
	assert.Equal(t, "v1.30.4+k3s1", saved.GeneratedArtifacts["k3s-version"])
	assert.Equal(t, []string{"k3s:install", "tools:helm"}, saved.StepNames())

	assert.True(t, store.Converged("k3s:install"))
	assert.False(t, store.Converged("tools:helm"))
	assert.False(t, store.Converged("never:ran"))
}

func TestStore_LoadRestoresPreviousRun(t *testing.T) {
	repo := newMemoryRepository()
	ctx := context.Background()
	first := NewStore(repo, "state.json")
	first.Load(ctx)
	require.NoError(t, first.RecordStep(ctx, "host:os-check", StepRecord{Status: StatusSkipped, Converged: true}, map[string]string{"node-name": "edge"}))

	second := NewStore(repo, "state.json")
	loaded := second.Load(ctx)

	rec, ok := loaded.Record("host:os-check")
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, rec.Status)
	assert.True(t, second.Converged("host:os-check"))
	assert.Equal(t, map[string]string{"node-name": "edge"}, second.Artifacts())
}

func TestStore_SaveFailureIsReturned(t *testing.T) {
	repo := newMemoryRepository()
	repo.saveErr = ErrSaveFailed
	store := NewStore(repo, "state.json")

	err := store.RecordStep(context.Background(), "k3s:install", StepRecord{Status: StatusApplied}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSaveFailed))
	assert.Contains(t, err.Error(), "k3s:install")
}

func TestStore_ArtifactsAreCopies(t *testing.T) {
	store := NewStore(newMemoryRepository(), "state.json")
	ctx := context.Background()
	require.NoError(t, store.RecordStep(ctx, "a:one", StepRecord{Status: StatusApplied}, map[string]string{"k": "v"}))

	arts := store.Artifacts()
	arts["k"] = "changed"

	rec, _ := store.Record("a:one")
	assert.Equal(t, StatusApplied, rec.Status)
	assert.Equal(t, "v", store.Artifacts()["k"])
}

func TestStore_Flush(t *testing.T) {
	repo := newMemoryRepository()
	store := NewStore(repo, "state.json")

	require.NoError(t, store.Flush(context.Background()))
	assert.Equal(t, 1, repo.saves)
	assert.NotNil(t, repo.docs["state.json"])
}
