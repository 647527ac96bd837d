// Package mocks provides test doubles for testing.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// CommandRunner is a thread-safe test double for ports.CommandRunner.
// Responses are keyed by command name and arguments; unregistered commands
// return an error.
type CommandRunner struct {
	mu       sync.RWMutex
	results  map[string][]ports.CommandResult
	errors   map[string]error
	calls    []ports.CommandCall
	fallback *ports.CommandResult
}

// NewCommandRunner creates a new CommandRunner mock.
func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string][]ports.CommandResult),
		errors:  make(map[string]error),
		calls:   make([]ports.CommandCall, 0),
	}
}

// AddResult registers an expected command and its result.
func (m *CommandRunner) AddResult(command string, args []string, result ports.CommandResult) {
	m.AddSequence(command, args, result)
}

// AddSequence registers results returned by successive calls. The last
// result repeats once the sequence is exhausted.
func (m *CommandRunner) AddSequence(command string, args []string, results ...ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[buildKey(command, args)] = append([]ports.CommandResult(nil), results...)
}

// AddCommand registers a result for cmd.
func (m *CommandRunner) AddCommand(cmd ports.Command, result ports.CommandResult) {
	m.AddResult(cmd.Name, cmd.Args, result)
}

// AddError registers an expected command that should return an error.
func (m *CommandRunner) AddError(command string, args []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[buildKey(command, args)] = err
}

// SetFallback makes unregistered commands return result instead of an error.
func (m *CommandRunner) SetFallback(result ports.CommandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &result
}

// Run executes a mock command.
func (m *CommandRunner) Run(ctx context.Context, cmd ports.Command) (ports.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, ports.CommandCall{
		Command: cmd.Name,
		Args:    append([]string(nil), cmd.Args...),
	})

	if err := ctx.Err(); err != nil {
		return ports.CommandResult{ExitCode: -1}, fmt.Errorf("%s: %w", cmd.Name, err)
	}

	key := buildKey(cmd.Name, cmd.Args)

	// Check for registered error first
	if err, ok := m.errors[key]; ok {
		return ports.CommandResult{}, err
	}

	if seq, ok := m.results[key]; ok && len(seq) > 0 {
		result := seq[0]
		if len(seq) > 1 {
			m.results[key] = seq[1:]
		}
		return result, nil
	}

	if m.fallback != nil {
		return *m.fallback, nil
	}

	return ports.CommandResult{}, fmt.Errorf("no mock result for command: %s", cmd.String())
}

// Calls returns all recorded command invocations.
func (m *CommandRunner) Calls() []ports.CommandCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent data races
	calls := make([]ports.CommandCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many times the command with exactly these arguments ran.
func (m *CommandRunner) CallCount(command string, args ...string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := buildKey(command, args)
	n := 0
	for _, c := range m.calls {
		if buildKey(c.Command, c.Args) == key {
			n++
		}
	}
	return n
}

// Called reports whether the command with exactly these arguments ran.
func (m *CommandRunner) Called(command string, args ...string) bool {
	return m.CallCount(command, args...) > 0
}

// CommandLines returns every recorded invocation rendered as a command line.
func (m *CommandRunner) CommandLines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
	}
	return lines
}

// Reset clears all registered results, errors, and recorded calls.
func (m *CommandRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string][]ports.CommandResult)
	m.errors = make(map[string]error)
	m.calls = make([]ports.CommandCall, 0)
	m.fallback = nil
}

// buildKey creates a unique key for a command and its arguments.
func buildKey(command string, args []string) string {
	return command + "\x00" + strings.Join(args, "\x00")
}

// Ensure CommandRunner implements ports.CommandRunner.
var _ ports.CommandRunner = (*CommandRunner)(nil)
