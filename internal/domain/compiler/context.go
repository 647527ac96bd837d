package compiler

import (
	"context"

	"github.com/juju/clock"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// RunContext provides context for step execution (Check, Plan, Apply, Verify).
type RunContext struct {
	ctx              context.Context
	dryRun           bool
	force            bool
	skipVerification bool
	clock            clock.Clock
	logger           ports.Logger
	artifacts        *ArtifactSet
}

// NewRunContext creates a new RunContext with the wall clock, a discarding
// logger and an empty artifact set.
func NewRunContext(ctx context.Context) RunContext {
	return RunContext{
		ctx:       ctx,
		clock:     clock.WallClock,
		logger:    discardLogger{},
		artifacts: NewArtifactSet(nil),
	}
}

// Context returns the underlying context.Context.
func (r RunContext) Context() context.Context {
	return r.ctx
}

// DryRun returns whether this is a dry-run execution.
func (r RunContext) DryRun() bool {
	return r.dryRun
}

// Force returns whether preconditions are being bypassed.
func (r RunContext) Force() bool {
	return r.force
}

// SkipVerification returns whether Verify is being skipped.
func (r RunContext) SkipVerification() bool {
	return r.skipVerification
}

// Clock returns the clock used for timestamps and polling.
func (r RunContext) Clock() clock.Clock {
	return r.clock
}

// Logger returns the step-scoped logger.
func (r RunContext) Logger() ports.Logger {
	return r.logger
}

// Artifacts returns the artifact set shared by the run.
func (r RunContext) Artifacts() *ArtifactSet {
	return r.artifacts
}

// WithContext returns a copy using ctx.
func (r RunContext) WithContext(ctx context.Context) RunContext {
	r.ctx = ctx
	return r
}

// WithDryRun returns a copy with the dry-run flag set.
func (r RunContext) WithDryRun(dryRun bool) RunContext {
	r.dryRun = dryRun
	return r
}

// WithForce returns a copy with the force flag set.
func (r RunContext) WithForce(force bool) RunContext {
	r.force = force
	return r
}

// WithSkipVerification returns a copy with the skip-verification flag set.
func (r RunContext) WithSkipVerification(skip bool) RunContext {
	r.skipVerification = skip
	return r
}

// WithClock returns a copy using clk.
func (r RunContext) WithClock(clk clock.Clock) RunContext {
	if clk != nil {
		r.clock = clk
	}
	return r
}

// WithLogger returns a copy using logger.
func (r RunContext) WithLogger(logger ports.Logger) RunContext {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithArtifacts returns a copy sharing artifacts.
func (r RunContext) WithArtifacts(artifacts *ArtifactSet) RunContext {
	if artifacts != nil {
		r.artifacts = artifacts
	}
	return r
}

type discardLogger struct{}

func (discardLogger) Debug(context.Context, string, ...ports.Field) {}
func (discardLogger) Info(context.Context, string, ...ports.Field)  {}
func (discardLogger) Warn(context.Context, string, ...ports.Field)  {}
func (discardLogger) Error(context.Context, string, ...ports.Field) {}
func (d discardLogger) With(...ports.Field) ports.Logger            { return d }
func (discardLogger) Level() ports.Level                            { return ports.LevelError }
func (discardLogger) SetLevel(ports.Level)                          {}
