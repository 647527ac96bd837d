package mocks

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Decider is a test double for ports.Decider that returns a fixed answer
// and records every prompt.
type Decider struct {
	mu      sync.Mutex
	answer  bool
	err     error
	prompts []string
}

// NewDecider creates a Decider that always answers answer.
func NewDecider(answer bool) *Decider {
	return &Decider{answer: answer}
}

// WithError makes Confirm fail with err.
func (d *Decider) WithError(err error) *Decider {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
	return d
}

// Confirm records prompt and returns the configured answer.
func (d *Decider) Confirm(_ context.Context, prompt string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prompts = append(d.prompts, prompt)
	if d.err != nil {
		return false, d.err
	}
	return d.answer, nil
}

// Prompts returns the prompts asked so far.
func (d *Decider) Prompts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.prompts...)
}

// Ensure Decider implements ports.Decider.
var _ ports.Decider = (*Decider)(nil)
