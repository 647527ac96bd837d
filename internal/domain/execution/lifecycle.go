package execution

import (
	"errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/statekit"
)

// Phase is a step's position in its per-run lifecycle.
type Phase string

// Machine state names.
const (
	statePending       = "pending"
	stateChecking      = "checking"
	stateApplying      = "applying"
	stateVerifying     = "verifying"
	stateSkipped       = "skipped"
	stateSkippedDryRun = "skipped-dry-run"
	stateApplied       = "applied"
	stateFailed        = "failed"
)

// Lifecycle phases.
const (
	PhasePending       Phase = statePending
	PhaseChecking      Phase = stateChecking
	PhaseApplying      Phase = stateApplying
	PhaseVerifying     Phase = stateVerifying
	PhaseSkipped       Phase = stateSkipped
	PhaseSkippedDryRun Phase = stateSkippedDryRun
	PhaseApplied       Phase = stateApplied
	PhaseFailed        Phase = stateFailed
)

// Lifecycle events.
const (
	EventCheck   = "CHECK"
	EventSkip    = "SKIP"
	EventDryRun  = "DRY_RUN"
	EventApply   = "APPLY"
	EventVerify  = "VERIFY"
	EventSucceed = "SUCCEED"
	EventFail    = "FAIL"
	EventReset   = "RESET"
)

// ErrInvalidTransition is returned when an event is not accepted in the
// current phase.
var ErrInvalidTransition = errors.New("invalid step transition")

// LifecycleContext is the statekit context of a step lifecycle.
type LifecycleContext struct {
	StepID string
	Verify bool
}

// Lifecycle tracks one step through
// pending → checking → skipped | skipped-dry-run | applying → verifying → applied | failed.
// When verification is on, an applying step can only reach applied through
// verifying; when it is off, verifying cannot be entered.
type Lifecycle struct {
	interp *statekit.Interpreter[LifecycleContext]

	mu      sync.Mutex
	entered []Phase
	onEnter func(Phase)
}

// NewLifecycle builds and starts the lifecycle machine for a step.
// onEnter, if set, is called with every phase entered after pending.
func NewLifecycle(stepID string, verify bool, onEnter func(Phase)) (*Lifecycle, error) {
	l := &Lifecycle{onEnter: onEnter}

	enter := func(p Phase) func(*LifecycleContext, statekit.Event) {
		return func(_ *LifecycleContext, _ statekit.Event) {
			l.record(p)
		}
	}

	machine, err := statekit.NewMachine[LifecycleContext]("step-lifecycle").
		WithInitial(statePending).
		WithContext(LifecycleContext{StepID: stepID, Verify: verify}).
		WithGuard("verifyEnabled", func(c LifecycleContext, _ statekit.Event) bool {
			return c.Verify
		}).
		WithGuard("verifyDisabled", func(c LifecycleContext, _ statekit.Event) bool {
			return !c.Verify
		}).
		WithAction("enterChecking", enter(PhaseChecking)).
		WithAction("enterApplying", enter(PhaseApplying)).
		WithAction("enterVerifying", enter(PhaseVerifying)).
		WithAction("enterSkipped", enter(PhaseSkipped)).
		WithAction("enterSkippedDryRun", enter(PhaseSkippedDryRun)).
		WithAction("enterApplied", enter(PhaseApplied)).
		WithAction("enterFailed", enter(PhaseFailed)).
		// A converged step is skipped without probing.
		State(statePending).
		On(EventCheck).Target(stateChecking).
		On(EventSkip).Target(stateSkipped).
		On(EventFail).Target(stateFailed).Done().
		State(stateChecking).
		OnEntry("enterChecking").
		On(EventSkip).Target(stateSkipped).
		On(EventDryRun).Target(stateSkippedDryRun).
		On(EventApply).Target(stateApplying).
		On(EventFail).Target(stateFailed).Done().
		State(stateApplying).
		OnEntry("enterApplying").
		On(EventVerify).Target(stateVerifying).Guard("verifyEnabled").
		On(EventSucceed).Target(stateApplied).Guard("verifyDisabled").
		On(EventFail).Target(stateFailed).Done().
		State(stateVerifying).
		OnEntry("enterVerifying").
		On(EventSucceed).Target(stateApplied).
		On(EventFail).Target(stateFailed).Done().
		// Terminal phases only leave through an explicit reset.
		State(stateSkipped).
		OnEntry("enterSkipped").
		On(EventReset).Target(statePending).Done().
		State(stateSkippedDryRun).
		OnEntry("enterSkippedDryRun").
		On(EventReset).Target(statePending).Done().
		State(stateApplied).
		OnEntry("enterApplied").
		On(EventReset).Target(statePending).Done().
		State(stateFailed).
		OnEntry("enterFailed").
		On(EventReset).Target(statePending).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build step lifecycle: %w", err)
	}

	l.interp = statekit.NewInterpreter(machine)
	l.interp.Start()
	return l, nil
}

// Send delivers an event to the machine and reports whether it moved.
// Every transition changes phase, so an unchanged phase means the event was
// refused.
func (l *Lifecycle) Send(event string) bool {
	before := l.Phase()
	l.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	return l.Phase() != before
}

// Require delivers an event that must be accepted.
func (l *Lifecycle) Require(event string) error {
	before := l.Phase()
	if !l.Send(event) {
		return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, event, before)
	}
	return nil
}

// Status maps the current phase to a step status. Phases that are not
// terminal report pending.
func (l *Lifecycle) Status() StepStatus {
	switch l.Phase() {
	case PhaseSkipped:
		return StatusSkipped
	case PhaseSkippedDryRun:
		return StatusSkippedDryRun
	case PhaseApplied:
		return StatusApplied
	case PhaseFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Phase returns the current phase.
func (l *Lifecycle) Phase() Phase {
	return Phase(l.interp.State().Value)
}

// Entered returns the phases entered so far, in order.
func (l *Lifecycle) Entered() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Phase(nil), l.entered...)
}

// Stop halts the machine.
func (l *Lifecycle) Stop() {
	l.interp.Stop()
}

func (l *Lifecycle) record(p Phase) {
	l.mu.Lock()
	l.entered = append(l.entered, p)
	fn := l.onEnter
	l.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}
