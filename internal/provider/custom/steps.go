package custom

import (
	"fmt"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
)

// ShellStep runs user scripts through sh -c. The optional check script
// decides the precondition by its exit code; the optional verify script
// must exit 0 after apply.
type ShellStep struct {
	id     compiler.StepID
	deps   []compiler.StepID
	def    config.CustomStep
	runner ports.CommandRunner
}

// NewShellStep creates a new ShellStep.
func NewShellStep(id compiler.StepID, def config.CustomStep, runner ports.CommandRunner, deps ...compiler.StepID) *ShellStep {
	return &ShellStep{
		id:     id,
		deps:   deps,
		def:    def,
		runner: runner,
	}
}

// ID returns the step identifier.
func (s *ShellStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *ShellStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check runs the check script. Without one the step always applies until
// it has converged.
func (s *ShellStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	if s.def.Check == "" {
		return compiler.NotSatisfied, nil
	}
	_, ok, err := commandutil.Probe(ctx.Context(), s.runner, s.command(s.def.Check))
	if err != nil {
		return compiler.Unknown, err
	}
	if ok {
		return compiler.Satisfied, nil
	}
	return compiler.NotSatisfied, nil
}

// Plan returns the diff for this step.
func (s *ShellStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeModify, "script", s.def.Name, "", ""), nil
}

// Apply runs the script.
func (s *ShellStep) Apply(ctx compiler.RunContext) error {
	if _, err := commandutil.Run(ctx.Context(), s.runner, s.command(s.def.Run)); err != nil {
		return fmt.Errorf("custom step %s: %w", s.def.Name, err)
	}
	return nil
}

// Verify runs the verify script when there is one.
func (s *ShellStep) Verify(ctx compiler.RunContext) error {
	if s.def.Verify == "" {
		return nil
	}
	if _, err := commandutil.Run(ctx.Context(), s.runner, s.command(s.def.Verify)); err != nil {
		return fmt.Errorf("verify %s: %w", s.def.Name, err)
	}
	return nil
}

// Explain provides a human-readable explanation.
func (s *ShellStep) Explain() compiler.Explanation {
	detail := fmt.Sprintf("Runs: %s", s.def.Run)
	if s.def.Check != "" {
		detail += fmt.Sprintf("\nSkipped when this exits 0: %s", s.def.Check)
	}
	return compiler.NewExplanation("Custom step "+s.def.Name, detail, nil)
}

func (s *ShellStep) command(script string) ports.Command {
	cmd := ports.Shell(script)
	if s.def.Timeout > 0 {
		cmd = cmd.WithTimeout(s.def.Timeout)
	}
	return cmd
}

// Ensure ShellStep implements compiler.Step.
var _ compiler.Step = (*ShellStep)(nil)
