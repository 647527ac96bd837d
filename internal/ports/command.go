// Package ports defines interfaces for external dependencies.
package ports

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command describes a single external process invocation.
type Command struct {
	Name    string
	Args    []string
	Env     []string
	Dir     string
	Timeout time.Duration // zero means the runner default
}

// Cmd creates a Command for the given executable and arguments.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Shell creates a Command that runs script through "sh -c".
func Shell(script string) Command {
	return Command{Name: "sh", Args: []string{"-c", script}}
}

// WithTimeout returns a copy of the command with a hard timeout.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Timeout = d
	return c
}

// WithEnv returns a copy of the command with extra environment entries (KEY=value).
func (c Command) WithEnv(env ...string) Command {
	merged := make([]string, 0, len(c.Env)+len(env))
	merged = append(merged, c.Env...)
	merged = append(merged, env...)
	c.Env = merged
	return c
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// CommandResult represents the result of executing a shell command.
type CommandResult struct {
	ExitCode int // -1 when TimedOut
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
	Tail     string // last bytes of combined output, kept for error reports
}

// Success returns true if the command exited with code 0 before its timeout.
func (r CommandResult) Success() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Output returns stdout with surrounding whitespace removed.
func (r CommandResult) Output() string {
	return strings.TrimSpace(r.Stdout)
}

// OutputTail returns the retained output tail, falling back to stderr then stdout.
func (r CommandResult) OutputTail() string {
	switch {
	case strings.TrimSpace(r.Tail) != "":
		return strings.TrimSpace(r.Tail)
	case strings.TrimSpace(r.Stderr) != "":
		return strings.TrimSpace(r.Stderr)
	default:
		return strings.TrimSpace(r.Stdout)
	}
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// CommandRunner executes external commands.
//
// Run never returns an error for a non-zero exit code or a timeout; both are
// reported in the result. An error means the process could not be started or
// the caller's context was cancelled.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

// CommandError reports a command that ran but did not succeed.
type CommandError struct {
	Command Command
	Result  CommandResult
}

// NewCommandError creates a CommandError for a finished command.
func NewCommandError(cmd Command, result CommandResult) *CommandError {
	return &CommandError{Command: cmd, Result: result}
}

// Error returns the formatted error message.
func (e *CommandError) Error() string {
	if e.Result.TimedOut {
		return fmt.Sprintf("%s timed out after %s", e.Command.Name, e.Result.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s exited with code %d", e.Command.Name, e.Result.ExitCode)
}

// Tail returns the output tail captured for the failed command.
func (e *CommandError) Tail() string {
	return e.Result.OutputTail()
}
