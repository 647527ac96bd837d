// Package app wires configuration, providers, the pipeline and persistence
// into the edgeprov application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/juju/clock"

	"github.com/felixgeelhaar/edgeprov/internal/adapters/command"
	"github.com/felixgeelhaar/edgeprov/internal/adapters/filesystem"
	"github.com/felixgeelhaar/edgeprov/internal/adapters/logging"
	"github.com/felixgeelhaar/edgeprov/internal/adapters/metrics"
	"github.com/felixgeelhaar/edgeprov/internal/adapters/statefile"
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/domain/execution"
	"github.com/felixgeelhaar/edgeprov/internal/domain/state"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/azure"
	"github.com/felixgeelhaar/edgeprov/internal/provider/custom"
	"github.com/felixgeelhaar/edgeprov/internal/provider/host"
	"github.com/felixgeelhaar/edgeprov/internal/provider/k3s"
	"github.com/felixgeelhaar/edgeprov/internal/provider/modules"
	"github.com/felixgeelhaar/edgeprov/internal/provider/tools"
)

// RunOptions are the per-invocation inputs of Run.
type RunOptions struct {
	ConfigPath  string
	Overrides   config.Overrides
	MetricsFile string
}

// RunOutcome is what a finished run hands back to the CLI.
type RunOutcome struct {
	Config       config.Configuration
	Report       *execution.Report
	ArtifactPath string // empty when no artifact file was written
}

// Edgeprov is the main application orchestrator.
type Edgeprov struct {
	loader   *config.Loader
	compiler *compiler.Compiler
	runner   ports.CommandRunner
	fs       ports.FileSystem
	repo     state.Repository
	newLock  func(statePath string) state.RunLock
	decider  ports.Decider
	logger   ports.Logger
	clock    clock.Clock
	out      io.Writer
}

// Option configures an Edgeprov.
type Option func(*Edgeprov)

// WithRunner replaces the process runner every provider uses.
func WithRunner(runner ports.CommandRunner) Option {
	return func(e *Edgeprov) {
		e.runner = runner
	}
}

// WithFileSystem replaces the filesystem providers use.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(e *Edgeprov) {
		e.fs = fs
	}
}

// WithRepository replaces the state repository.
func WithRepository(repo state.Repository) Option {
	return func(e *Edgeprov) {
		e.repo = repo
	}
}

// WithLockFactory replaces how the run lock for a state file is built.
func WithLockFactory(fn func(statePath string) state.RunLock) Option {
	return func(e *Edgeprov) {
		e.newLock = fn
	}
}

// WithDecider sets who confirms forced re-applies.
func WithDecider(d ports.Decider) Option {
	return func(e *Edgeprov) {
		e.decider = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger ports.Logger) Option {
	return func(e *Edgeprov) {
		e.logger = logger
	}
}

// WithClock sets the clock for results, state and artifact timestamps.
func WithClock(clk clock.Clock) Option {
	return func(e *Edgeprov) {
		e.clock = clk
	}
}

// New creates the application writing human output to out.
func New(out io.Writer, opts ...Option) *Edgeprov {
	e := &Edgeprov{
		loader:  config.NewLoader(),
		fs:      filesystem.NewRealFileSystem(),
		repo:    statefile.NewJSONRepository(),
		logger:  logging.NewNopLogger(),
		clock:   clock.WallClock,
		out:     out,
		newLock: func(statePath string) state.RunLock {
			return statefile.NewFileLock(statePath)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = command.NewExecRunner(command.WithLogSink(e.logger))
	}

	// Registration order is the tie-break order of the run.
	comp := compiler.NewCompiler()
	comp.RegisterProvider(host.NewProvider(e.runner, e.fs))
	comp.RegisterProvider(k3s.NewProvider(e.runner, e.fs))
	comp.RegisterProvider(tools.NewProvider(e.runner, e.fs))
	comp.RegisterProvider(azure.NewProvider(e.runner))
	comp.RegisterProvider(modules.NewProvider(e.runner, e.fs))
	comp.RegisterProvider(custom.NewProvider(e.runner))
	e.compiler = comp

	return e
}

// Load reads the configuration at path and applies overrides.
func (e *Edgeprov) Load(ctx context.Context, path string, overrides config.Overrides) (config.Configuration, error) {
	cfg, err := e.loader.Load(path)
	if err != nil {
		return config.Configuration{}, err
	}
	for _, key := range cfg.UnknownKeys() {
		e.logger.Warn(ctx, "ignoring unknown configuration key", ports.F("key", key), ports.F("path", path))
	}
	return cfg.WithOverrides(overrides), nil
}

// Compile resolves the step graph for cfg.
func (e *Edgeprov) Compile(cfg config.Configuration) (*compiler.StepGraph, error) {
	return e.compiler.Compile(cfg)
}

// Run loads the configuration, executes every enabled step and writes the
// artifact file. Step failures are reported in the outcome, not as an error.
func (e *Edgeprov) Run(ctx context.Context, opts RunOptions) (*RunOutcome, error) {
	cfg, err := e.Load(ctx, opts.ConfigPath, opts.Overrides)
	if err != nil {
		return nil, err
	}
	graph, err := e.Compile(cfg)
	if err != nil {
		return nil, err
	}

	d := cfg.Deployment
	lock := e.newLock(d.StateFile)
	if err := lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			e.logger.Warn(ctx, "failed to release run lock", ports.Err(err))
		}
	}()

	store := state.NewStore(e.repo, d.StateFile, state.WithClock(e.clock), state.WithLogger(e.logger))
	store.Load(ctx)

	var recorder *metrics.TextfileRecorder
	observers := execution.Observers{}
	if opts.MetricsFile != "" {
		recorder = metrics.NewTextfileRecorder(opts.MetricsFile)
		observers = append(observers, recorder)
	}

	pipelineOpts := []execution.Option{
		execution.WithLogger(e.logger),
		execution.WithClock(e.clock),
		execution.WithObserver(observers),
	}
	if e.decider != nil {
		pipelineOpts = append(pipelineOpts, execution.WithDecider(e.decider))
	}
	pipeline := execution.NewPipeline(store, execution.Options{
		DryRun:           d.DryRun,
		Force:            d.ForceReinstall,
		SkipVerification: d.SkipVerification,
		ContinueOnError:  d.ContinueOnError,
		StepTimeout:      d.StepTimeout,
	}, pipelineOpts...)

	report, runErr := pipeline.Run(ctx, graph)
	if runErr != nil && !d.DryRun {
		if err := store.Flush(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn(ctx, "failed to flush state", ports.Err(err))
		}
	}
	if report == nil {
		return nil, runErr
	}
	outcome := &RunOutcome{Config: cfg, Report: report}

	if recorder != nil {
		recorder.RecordRun(report)
		if err := recorder.Flush(); err != nil {
			e.logger.Warn(ctx, "failed to write metrics", ports.Err(err))
		}
	}

	if !report.DryRun() {
		doc := NewArtifactDocument(report, store.Artifacts(), e.clock.Now())
		if err := statefile.WriteArtifacts(d.ArtifactFile, doc); err != nil {
			runErr = errors.Join(runErr, err)
		} else {
			outcome.ArtifactPath = d.ArtifactFile
			e.logger.Info(ctx, "artifacts written", ports.F("path", d.ArtifactFile))
		}
	}

	return outcome, runErr
}

// ValidationResult is the resolved run order of a configuration.
type ValidationResult struct {
	Config config.Configuration
	Plan   *execution.Plan
}

// Validate loads and resolves the configuration at path without running
// anything.
func (e *Edgeprov) Validate(ctx context.Context, path string, overrides config.Overrides) (*ValidationResult, error) {
	cfg, err := e.Load(ctx, path, overrides)
	if err != nil {
		return nil, err
	}
	graph, err := e.Compile(cfg)
	if err != nil {
		return nil, err
	}
	plan, err := execution.NewPlanner().Plan(graph)
	if err != nil {
		return nil, fmt.Errorf("failed to plan: %w", err)
	}
	return &ValidationResult{Config: cfg, Plan: plan}, nil
}

// Status returns the state persisted at statePath. A missing file is an
// empty state.
func (e *Edgeprov) Status(ctx context.Context, statePath string) (*state.ProvisioningState, error) {
	doc, err := e.repo.Load(ctx, statePath)
	if errors.Is(err, state.ErrStateNotFound) {
		return state.NewProvisioningState(), nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
