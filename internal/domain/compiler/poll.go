package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
)

// ErrPollTimeout is returned when a polled condition never held.
var ErrPollTimeout = errors.New("condition not met before timeout")

// PollOptions configures Poll.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
}

// Probe reports whether a condition holds. An error counts as "not yet" and
// is kept for the timeout report.
type Probe func(ctx context.Context) (bool, error)

// Poll runs probe until it reports true, the timeout elapses or ctx ends.
// The probe always runs at least once.
func Poll(ctx context.Context, opts PollOptions, probe Probe) error {
	clk := opts.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := clk.Now().Add(opts.Timeout)

	var lastErr error
	for attempt := 1; ; attempt++ {
		done, err := probe(ctx)
		if err == nil && done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remaining := deadline.Sub(clk.Now())
		if remaining <= 0 {
			if lastErr != nil {
				return fmt.Errorf("%w (%s, %d attempts): %v", ErrPollTimeout, opts.Timeout, attempt, lastErr)
			}
			return fmt.Errorf("%w (%s, %d attempts)", ErrPollTimeout, opts.Timeout, attempt)
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(wait):
		}
	}
}
