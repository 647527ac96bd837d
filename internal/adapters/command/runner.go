// Package command provides command execution adapters.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Defaults for ExecRunner.
const (
	DefaultTimeout   = 15 * time.Minute
	DefaultMaxOutput = 256 * 1024
	DefaultTailSize  = 8 * 1024

	waitDelay = 5 * time.Second
)

// ExecRunner executes real processes with a hard timeout and bounded output capture.
type ExecRunner struct {
	defaultTimeout time.Duration
	maxOutput      int
	tailSize       int
	sink           ports.Logger
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithDefaultTimeout sets the timeout used when a Command has none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *ExecRunner) {
		r.defaultTimeout = d
	}
}

// WithMaxOutput sets how many bytes of stdout and stderr are retained per stream.
func WithMaxOutput(n int) Option {
	return func(r *ExecRunner) {
		r.maxOutput = n
	}
}

// WithTailSize sets how many bytes of combined output are kept for error reports.
func WithTailSize(n int) Option {
	return func(r *ExecRunner) {
		r.tailSize = n
	}
}

// WithLogSink streams output lines to logger at debug level while the process runs.
func WithLogSink(logger ports.Logger) Option {
	return func(r *ExecRunner) {
		r.sink = logger
	}
}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		defaultTimeout: DefaultTimeout,
		maxOutput:      DefaultMaxOutput,
		tailSize:       DefaultTailSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a command and returns the result.
func (r *ExecRunner) Run(ctx context.Context, c ports.Command) (ports.CommandResult, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	// Cancel only runs when a context ends before the process exits.
	var killed atomic.Bool
	kill := cmd.Cancel
	cmd.Cancel = func() error {
		killed.Store(true)
		return kill()
	}

	stdout := NewRingBuffer(r.maxOutput)
	stderr := NewRingBuffer(r.maxOutput)
	tail := NewRingBuffer(r.tailSize)
	stdoutSink := r.newSink(ctx, c, "stdout")
	stderrSink := r.newSink(ctx, c, "stderr")
	cmd.Stdout = captureWriter(stdout, tail, stdoutSink)
	cmd.Stderr = captureWriter(stderr, tail, stderrSink)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ports.CommandResult{ExitCode: -1}, fmt.Errorf("start %s: %w", c.Name, err)
	}
	waitErr := cmd.Wait()
	stdoutSink.Flush()
	stderrSink.Flush()

	result := ports.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Tail:     tail.String(),
		Duration: time.Since(start),
	}
	r.noteTruncation(ctx, c, stdout, stderr)

	if errors.Is(ctx.Err(), context.Canceled) {
		result.ExitCode = -1
		return result, fmt.Errorf("%s interrupted: %w", c.Name, ctx.Err())
	}
	if killed.Load() {
		result.ExitCode = -1
		result.TimedOut = true
		return result, nil
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The process exited but a background child still holds its output.
		result.ExitCode = cmd.ProcessState.ExitCode()
		if logger := r.sinkFor(ctx); logger != nil {
			logger.Debug(ctx, "output left open after exit", ports.F("cmd", c.Name))
		}
	default:
		result.ExitCode = -1
		return result, fmt.Errorf("wait for %s: %w", c.Name, waitErr)
	}
	return result, nil
}

func captureWriter(ring, tail *RingBuffer, sink *lineSink) io.Writer {
	if sink == nil {
		return io.MultiWriter(ring, tail)
	}
	return io.MultiWriter(ring, tail, sink)
}

func (r *ExecRunner) newSink(ctx context.Context, c ports.Command, stream string) *lineSink {
	logger := r.sinkFor(ctx)
	if logger == nil {
		return nil
	}
	return newLineSink(ctx, logger, c, stream)
}

// sinkFor prefers a logger carried by ctx, which has the step's fields,
// over the runner-wide sink. Output is only streamed when a sink is set.
func (r *ExecRunner) sinkFor(ctx context.Context) ports.Logger {
	if r.sink == nil {
		return nil
	}
	if logger := ports.LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.sink
}

func (r *ExecRunner) noteTruncation(ctx context.Context, c ports.Command, stdout, stderr *RingBuffer) {
	logger := r.sinkFor(ctx)
	if logger == nil {
		return
	}
	for stream, buf := range map[string]*RingBuffer{"stdout": stdout, "stderr": stderr} {
		if buf.Truncated() {
			logger.Debug(ctx, "output truncated",
				ports.F("cmd", c.Name),
				ports.F("stream", stream),
				ports.F("total", humanize.IBytes(uint64(buf.Written()))),
				ports.F("kept", humanize.IBytes(uint64(buf.Len()))))
		}
	}
}

// Ensure ExecRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*ExecRunner)(nil)
