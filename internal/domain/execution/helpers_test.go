package execution

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/adapters/logging"
	"github.com/felixgeelhaar/edgeprov/internal/adapters/statefile"
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// fakeStep is a configurable compiler.Step that counts calls.
type fakeStep struct {
	id   compiler.StepID
	deps []compiler.StepID
	diff compiler.Diff

	checkFn  func(compiler.RunContext) (compiler.Precondition, error)
	applyFn  func(compiler.RunContext) error
	verifyFn func(compiler.RunContext) error

	mu       sync.Mutex
	checks   int
	applies  int
	verifies int
}

func newFakeStep(id string, deps ...string) *fakeStep {
	depIDs := make([]compiler.StepID, len(deps))
	for i, d := range deps {
		depIDs[i] = compiler.MustNewStepID(d)
	}
	return &fakeStep{
		id:   compiler.MustNewStepID(id),
		deps: depIDs,
		diff: compiler.NewDiff(compiler.DiffTypeAdd, "step", id, "", ""),
	}
}

func (s *fakeStep) ID() compiler.StepID          { return s.id }
func (s *fakeStep) DependsOn() []compiler.StepID { return s.deps }
func (s *fakeStep) Explain() compiler.Explanation {
	return compiler.NewExplanation("fake "+s.id.String(), "", nil)
}

func (s *fakeStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	s.mu.Lock()
	s.checks++
	s.mu.Unlock()
	if s.checkFn != nil {
		return s.checkFn(ctx)
	}
	return compiler.NotSatisfied, nil
}

func (s *fakeStep) Plan(compiler.RunContext) (compiler.Diff, error) {
	return s.diff, nil
}

func (s *fakeStep) Apply(ctx compiler.RunContext) error {
	s.mu.Lock()
	s.applies++
	s.mu.Unlock()
	if s.applyFn != nil {
		return s.applyFn(ctx)
	}
	return nil
}

func (s *fakeStep) Verify(ctx compiler.RunContext) error {
	s.mu.Lock()
	s.verifies++
	s.mu.Unlock()
	if s.verifyFn != nil {
		return s.verifyFn(ctx)
	}
	return nil
}

func (s *fakeStep) counts() (checks, applies, verifies int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks, s.applies, s.verifies
}

// confirmableStep is a fakeStep that asks before a forced re-apply.
type confirmableStep struct {
	*fakeStep
}

func (s confirmableStep) ConfirmPrompt() string {
	return "Re-apply " + s.id.String() + "?"
}

// world is the simulated node state shared by steps in one test.
type world struct {
	mu        sync.Mutex
	installed map[string]bool
}

func newWorld() *world {
	return &world{installed: map[string]bool{}}
}

// bind makes the step's precondition and apply observe and change the world.
func (w *world) bind(s *fakeStep) *fakeStep {
	key := s.id.String()
	s.checkFn = func(compiler.RunContext) (compiler.Precondition, error) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.installed[key] {
			return compiler.Satisfied, nil
		}
		return compiler.NotSatisfied, nil
	}
	s.applyFn = func(compiler.RunContext) error {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.installed[key] = true
		return nil
	}
	return s
}

func newGraph(t *testing.T, steps ...compiler.Step) *compiler.StepGraph {
	t.Helper()
	graph := compiler.NewStepGraph()
	for _, s := range steps {
		require.NoError(t, graph.Add(s))
	}
	return graph
}

// newStore returns a loaded store backed by a JSON file in a temp dir.
func newStore(t *testing.T, path string) *state.Store {
	t.Helper()
	store := state.NewStore(statefile.NewJSONRepository(), path)
	store.Load(context.Background())
	return store
}

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.json")
}

func loadState(t *testing.T, path string) *state.ProvisioningState {
	t.Helper()
	doc, err := statefile.NewJSONRepository().Load(context.Background(), path)
	require.NoError(t, err)
	return doc
}

func statuses(report *Report) map[string]StepStatus {
	out := map[string]StepStatus{}
	for _, r := range report.Results() {
		out[r.StepID().String()] = r.Status()
	}
	return out
}

func fixedRunID(id string) Option {
	return WithRunID(func() string { return id })
}

// recordingObserver collects notifications.
type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished []StepResult
}

func (o *recordingObserver) StepStarted(id compiler.StepID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, id.String())
}

func (o *recordingObserver) StepFinished(r StepResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, r)
}

// phaseLogger collects the lifecycle phases each step entered.
type phaseLogger struct {
	*logging.NopLogger
	step   string
	mu     *sync.Mutex
	phases map[string][]Phase
}

func newPhaseLogger() *phaseLogger {
	return &phaseLogger{NopLogger: logging.NewNopLogger(), mu: &sync.Mutex{}, phases: map[string][]Phase{}}
}

func (l *phaseLogger) With(fields ...ports.Field) ports.Logger {
	out := *l
	for _, f := range fields {
		if f.Key == "step" {
			out.step, _ = f.Value.(string)
		}
	}
	return &out
}

func (l *phaseLogger) Debug(_ context.Context, msg string, fields ...ports.Field) {
	if msg != "step phase" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range fields {
		if f.Key == "phase" {
			phase, _ := f.Value.(string)
			l.phases[l.step] = append(l.phases[l.step], Phase(phase))
		}
	}
}

func (l *phaseLogger) of(step string) []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Phase(nil), l.phases[step]...)
}
