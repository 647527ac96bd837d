// Package prompt provides ports.Decider implementations for the CLI.
package prompt

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Auto answers every question with a fixed value. It backs --yes and
// non-interactive runs.
type Auto struct {
	answer bool
}

// NewAuto creates a decider that always answers answer.
func NewAuto(answer bool) *Auto {
	return &Auto{answer: answer}
}

// Confirm returns the fixed answer.
func (a *Auto) Confirm(_ context.Context, _ string) (bool, error) {
	return a.answer, nil
}

// Terminal asks the operator with a huh confirmation form.
type Terminal struct {
	input      io.Reader
	output     io.Writer
	accessible bool
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithInput reads answers from r instead of stdin.
func WithInput(r io.Reader) TerminalOption {
	return func(t *Terminal) {
		t.input = r
	}
}

// WithOutput draws the form on w instead of stdout.
func WithOutput(w io.Writer) TerminalOption {
	return func(t *Terminal) {
		t.output = w
	}
}

// WithAccessible switches to huh's line-based accessible mode.
func WithAccessible(enabled bool) TerminalOption {
	return func(t *Terminal) {
		t.accessible = enabled
	}
}

// NewTerminal creates a terminal decider.
func NewTerminal(opts ...TerminalOption) *Terminal {
	t := &Terminal{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Confirm shows a yes/no form. Aborting the form (ctrl+c) is a "no".
func (t *Terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(prompt).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(t.accessible)
	if t.input != nil {
		form = form.WithInput(t.input)
	}
	if t.output != nil {
		form = form.WithOutput(t.output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// IsInteractive reports whether every file descriptor is a terminal.
func IsInteractive(fds ...uintptr) bool {
	for _, fd := range fds {
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return len(fds) > 0
}

// ForTerminal picks the decider for a CLI run: always yes with assumeYes,
// a terminal prompt when stdin and stdout are terminals, and no otherwise.
func ForTerminal(assumeYes bool) ports.Decider {
	if assumeYes {
		return NewAuto(true)
	}
	if IsInteractive(os.Stdin.Fd(), os.Stdout.Fd()) {
		return NewTerminal()
	}
	return NewAuto(false)
}

var (
	_ ports.Decider = (*Auto)(nil)
	_ ports.Decider = (*Terminal)(nil)
)
