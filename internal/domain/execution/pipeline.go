package execution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Options are the run-wide switches.
type Options struct {
	DryRun           bool
	Force            bool
	SkipVerification bool
	ContinueOnError  bool
	StepTimeout      time.Duration // zero means no limit beyond each command's own
}

// StateStore is the persisted state the pipeline consults and records into.
type StateStore interface {
	Converged(step string) bool
	Record(step string) (state.StepRecord, bool)
	Artifacts() map[string]string
	RecordStep(ctx context.Context, step string, rec state.StepRecord, artifacts map[string]string) error
}

// Pipeline runs the steps of a graph one at a time in dependency order.
type Pipeline struct {
	store    StateStore
	opts     Options
	decider  ports.Decider
	logger   ports.Logger
	clock    clock.Clock
	observer Observer
	newRunID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDecider sets who is asked before a confirmable step is forced.
func WithDecider(d ports.Decider) Option {
	return func(p *Pipeline) {
		p.decider = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock sets the clock used for result timestamps and passed to steps.
func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) {
		p.clock = clk
	}
}

// WithObserver sets the observer notified per step.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithRunID sets the run identifier generator.
func WithRunID(fn func() string) Option {
	return func(p *Pipeline) {
		p.newRunID = fn
	}
}

// NewPipeline creates a Pipeline recording into store.
func NewPipeline(store StateStore, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		opts:     opts,
		decider:  declineAll{},
		logger:   nopLogger{},
		clock:    clock.WallClock,
		observer: Observers(nil),
		newRunID: uuid.NewString,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run executes graph and returns the ordered report. Step failures are in
// the report; the error is reserved for a graph that cannot be ordered or a
// state file that cannot be written. Cancelling ctx stops the in-flight step
// and leaves the remaining steps pending.
func (p *Pipeline) Run(ctx context.Context, graph *compiler.StepGraph) (*Report, error) {
	plan, err := NewPlanner().Plan(graph)
	if err != nil {
		return nil, err
	}

	report := newReport(p.newRunID(), p.opts.DryRun, p.clock.Now())
	base := compiler.NewRunContext(ctx).
		WithDryRun(p.opts.DryRun).
		WithForce(p.opts.Force).
		WithSkipVerification(p.opts.SkipVerification).
		WithClock(p.clock).
		WithArtifacts(compiler.NewArtifactSet(p.store.Artifacts()))

	p.logger.Info(ctx, "run started",
		ports.F("run_id", report.RunID()),
		ports.F("steps", plan.Len()),
		ports.F("dry_run", p.opts.DryRun),
		ports.F("force", p.opts.Force))

	statuses := make(map[string]StepStatus, plan.Len())
	stopReason := ""

	for _, entry := range plan.Entries() {
		step := entry.Step()
		id := step.ID()

		if stopReason == "" && ctx.Err() != nil {
			stopReason = "not started: run interrupted"
		}
		if stopReason != "" {
			statuses[id.String()] = StatusPending
			report.add(NewStepResult(id, StatusPending).WithReason(stopReason))
			continue
		}
		if dep, depStatus, blocked := blockedBy(step, statuses); blocked {
			statuses[id.String()] = StatusPending
			report.add(NewStepResult(id, StatusPending).
				WithReason(fmt.Sprintf("not started: dependency %s is %s", dep, depStatus)))
			continue
		}

		result, persistErr := p.runStep(base, step, report.RunID())
		statuses[id.String()] = result.Status()
		report.add(result)
		p.observer.StepFinished(result)
		if persistErr != nil {
			report.interrupted = ctx.Err() != nil
			report.finishedAt = p.clock.Now()
			return report, fmt.Errorf("persist state: %w", persistErr)
		}

		if result.Status() == StatusFailed && ctx.Err() == nil && !p.opts.ContinueOnError {
			stopReason = fmt.Sprintf("not started: run aborted after %s failed", id)
		}
	}

	report.interrupted = ctx.Err() != nil
	report.finishedAt = p.clock.Now()
	p.logger.Info(ctx, "run finished",
		ports.F("run_id", report.RunID()),
		ports.F("outcome", report.Outcome()),
		ports.F("duration", report.Duration().Round(time.Millisecond).String()))
	return report, nil
}

// blockedBy returns the first dependency that did not succeed this run.
func blockedBy(step compiler.Step, statuses map[string]StepStatus) (string, StepStatus, bool) {
	for _, dep := range step.DependsOn() {
		status, ok := statuses[dep.String()]
		if !ok {
			status = StatusPending
		}
		if !status.Succeeded() {
			return dep.String(), status, true
		}
	}
	return "", "", false
}

// runStep drives one step to a terminal status. The returned error is a
// state persistence failure only.
func (p *Pipeline) runStep(base compiler.RunContext, step compiler.Step, runID string) (StepResult, error) {
	id := step.ID()
	ctx := base.Context()
	logger := p.logger.With(ports.F("step", id.String()))
	started := p.clock.Now()
	artifacts := base.Artifacts()
	artifacts.Discard()

	p.observer.StepStarted(id)

	lc, err := NewLifecycle(id.String(), !p.opts.SkipVerification, func(ph Phase) {
		logger.Debug(ctx, "step phase", ports.F("phase", string(ph)))
	})
	if err != nil {
		result := NewStepResult(id, StatusFailed).WithError(err).WithTiming(started, p.clock.Now())
		return result, p.record(ctx, runID, result, false, nil)
	}
	defer lc.Stop()

	rc := base.WithLogger(logger)
	finish := func(r StepResult) StepResult {
		return r.WithTiming(started, p.clock.Now())
	}

	// settle delivers a terminal event and builds the result in the status
	// the machine lands in. A refused event fails the step.
	settle := func(event string) StepResult {
		if err := lc.Require(event); err != nil {
			lc.Send(EventFail)
			logger.Error(ctx, "step lifecycle refused event", ports.Err(err))
			return finish(NewStepResult(id, StatusFailed).WithError(err))
		}
		return finish(NewStepResult(id, lc.Status()))
	}

	precondition := compiler.Unknown
	reason := "forced"
	var checkErr error
	var diff compiler.Diff

	fail := func(err error) (StepResult, error) {
		artifacts.Discard()
		result := settle(EventFail).
			WithPrecondition(precondition).
			WithCheckError(checkErr).
			WithDiff(diff).
			WithError(err).
			WithReason(reason)
		logger.Error(ctx, "step failed", ports.Err(err))
		return result, p.record(ctx, runID, result, false, nil)
	}

	if !p.opts.Force && p.store.Converged(id.String()) {
		result := settle(EventSkip).
			WithPrecondition(compiler.Satisfied).
			WithReason("converged in a previous run")
		logger.Info(ctx, "step skipped", ports.F("reason", result.Reason()))
		return result, p.record(ctx, runID, result, true, nil)
	}

	if err := lc.Require(EventCheck); err != nil {
		return fail(err)
	}
	if !p.opts.Force {
		precondition, checkErr = p.check(rc, step, logger)
		reason = "precondition " + precondition.String()
	}
	if ctx.Err() != nil {
		return finish(NewStepResult(id, lc.Status()).WithReason("not started: run interrupted")), nil
	}

	if precondition == compiler.Satisfied {
		result := settle(EventSkip).
			WithPrecondition(precondition).
			WithReason("precondition satisfied")
		logger.Info(ctx, "step skipped", ports.F("reason", result.Reason()))
		return result, p.record(ctx, runID, result, true, nil)
	}

	diff, err = step.Plan(rc)
	if err != nil {
		logger.Debug(ctx, "step plan unavailable", ports.Err(err))
	}

	if p.opts.DryRun {
		result := settle(EventDryRun).
			WithPrecondition(precondition).
			WithCheckError(checkErr).
			WithDiff(diff).
			WithReason("would apply: " + reason)
		logger.Info(ctx, "step would apply", ports.F("change", diff.Summary()))
		return result, nil
	}

	if p.opts.Force {
		if confirmable, ok := compiler.AsConfirmable(step); ok && !p.confirm(ctx, confirmable, logger) {
			result := settle(EventSkip).
				WithPrecondition(precondition).
				WithReason("forced re-apply declined")
			prev, _ := p.store.Record(id.String())
			logger.Info(ctx, "step skipped", ports.F("reason", result.Reason()))
			return result, p.record(ctx, runID, result, prev.Converged, nil)
		}
	}

	stepCtx, cancel := p.stepContext(ctx)
	defer cancel()
	rc = rc.WithContext(ports.ContextWithLogger(stepCtx, logger))

	if err := lc.Require(EventApply); err != nil {
		return fail(err)
	}
	logger.Info(ctx, "applying step", ports.F("change", diff.Summary()), ports.F("reason", reason))
	if err := step.Apply(rc); err != nil {
		return fail(compiler.NewApplyFailedError(id.String(), err))
	}

	// The machine only enters verifying when verification is on.
	verified := lc.Send(EventVerify)
	if verified {
		if err := step.Verify(rc); err != nil {
			return fail(compiler.NewVerifyFailedError(id.String(), err))
		}
	}

	result := settle(EventSucceed).
		WithPrecondition(precondition).
		WithCheckError(checkErr).
		WithDiff(diff).
		WithVerified(verified).
		WithReason(reason)
	if result.Status() != StatusApplied {
		artifacts.Discard()
		return result, p.record(ctx, runID, result, false, nil)
	}
	committed := artifacts.Commit()
	result = result.WithArtifactKeys(sortedKeys(committed))
	logger.Info(ctx, "step applied",
		ports.F("verified", verified),
		ports.F("duration", result.Duration().Round(time.Millisecond).String()))
	return result, p.record(ctx, runID, result, verified, committed)
}

// check runs the precondition probe. A probe that cannot run is logged and
// counts as not satisfied.
func (p *Pipeline) check(rc compiler.RunContext, step compiler.Step, logger ports.Logger) (compiler.Precondition, error) {
	precondition, err := step.Check(rc)
	if err != nil {
		checkErr := compiler.NewPreconditionCheckError(step.ID().String(), err)
		logger.Warn(rc.Context(), "precondition check could not run, applying", ports.Err(checkErr))
		return compiler.NotSatisfied, checkErr
	}
	return precondition, nil
}

func (p *Pipeline) confirm(ctx context.Context, step compiler.ConfirmableStep, logger ports.Logger) bool {
	ok, err := p.decider.Confirm(ctx, step.ConfirmPrompt())
	if err != nil {
		logger.Warn(ctx, "confirmation unavailable, not re-applying", ports.Err(err))
		return false
	}
	return ok
}

func (p *Pipeline) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.StepTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.StepTimeout)
	}
	return context.WithCancel(ctx)
}

// record persists a terminal result. Dry runs persist nothing. The save is
// detached from ctx so an interrupted step is still recorded.
func (p *Pipeline) record(ctx context.Context, runID string, result StepResult, converged bool, artifacts map[string]string) error {
	if p.opts.DryRun || !result.Status().Persisted() {
		return nil
	}

	id := result.StepID().String()
	finished := result.FinishedAt().UTC()
	rec := state.StepRecord{
		Status:    result.Status().recordStatus(),
		Converged: converged && result.Status() != StatusFailed,
		RunID:     runID,
		UpdatedAt: finished,
	}
	if result.Status() == StatusApplied {
		rec.AppliedAt = finished
	} else if prev, ok := p.store.Record(id); ok {
		rec.AppliedAt = prev.AppliedAt
	}
	if err := result.Error(); err != nil {
		rec.Error = err.Error()
	}

	return p.store.RecordStep(context.WithoutCancel(ctx), id, rec, artifacts)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type declineAll struct{}

func (declineAll) Confirm(context.Context, string) (bool, error) { return false, nil }

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...ports.Field) {}
func (nopLogger) Info(context.Context, string, ...ports.Field)  {}
func (nopLogger) Warn(context.Context, string, ...ports.Field)  {}
func (nopLogger) Error(context.Context, string, ...ports.Field) {}
func (n nopLogger) With(...ports.Field) ports.Logger            { return n }
func (nopLogger) Level() ports.Level                            { return ports.LevelError }
func (nopLogger) SetLevel(ports.Level)                          {}
