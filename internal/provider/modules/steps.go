package modules

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/provider/commandutil"
)

// ModuleStep applies a module's manifests and waits for its deployment to
// roll out.
type ModuleStep struct {
	name   string
	id     compiler.StepID
	deps   []compiler.StepID
	cfg    *Config
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewModuleStep creates a new ModuleStep.
func NewModuleStep(name string, cfg *Config, runner ports.CommandRunner, fs ports.FileSystem, deps ...compiler.StepID) *ModuleStep {
	return &ModuleStep{
		name:   name,
		id:     compiler.MustNewStepID("modules:" + name),
		deps:   deps,
		cfg:    cfg,
		runner: runner,
		fs:     fs,
	}
}

// ID returns the step identifier.
func (s *ModuleStep) ID() compiler.StepID {
	return s.id
}

// DependsOn returns the step dependencies.
func (s *ModuleStep) DependsOn() []compiler.StepID {
	return s.deps
}

// Check asks kubectl diff whether the live objects match the manifests.
// kubectl diff exits 0 for no changes and 1 for changes; anything else is a
// failed probe.
func (s *ModuleStep) Check(ctx compiler.RunContext) (compiler.Precondition, error) {
	if !s.fs.Exists(s.cfg.ManifestDir(s.name)) {
		return compiler.NotSatisfied, nil
	}
	cmd := s.kubectl("diff", "-f", s.cfg.ManifestDir(s.name))
	result, err := s.runner.Run(ctx.Context(), cmd)
	if err != nil {
		return compiler.Unknown, err
	}
	switch {
	case result.Success():
		return compiler.Satisfied, nil
	case !result.TimedOut && result.ExitCode == 1:
		return compiler.NotSatisfied, nil
	default:
		return compiler.Unknown, ports.NewCommandError(cmd, result)
	}
}

// Plan returns the diff for this step.
func (s *ModuleStep) Plan(_ compiler.RunContext) (compiler.Diff, error) {
	return compiler.NewDiff(compiler.DiffTypeAdd, "module", s.name, "", s.cfg.Namespace), nil
}

// Apply applies the module manifests.
func (s *ModuleStep) Apply(ctx compiler.RunContext) error {
	dir := s.cfg.ManifestDir(s.name)
	if !s.fs.Exists(dir) {
		return fmt.Errorf("manifests for module %s not found at %s", s.name, dir)
	}
	if _, err := commandutil.Run(ctx.Context(), s.runner, s.kubectl("apply", "-f", dir)); err != nil {
		return fmt.Errorf("apply module %s: %w", s.name, err)
	}
	return nil
}

// Verify waits for the module deployment to finish rolling out.
func (s *ModuleStep) Verify(ctx compiler.RunContext) error {
	return s.rollout(ctx.Context())
}

// Explain provides a human-readable explanation.
func (s *ModuleStep) Explain() compiler.Explanation {
	return compiler.NewExplanation(
		"Deploy module "+s.name,
		fmt.Sprintf("Applies the manifests in %s to namespace %s and waits for deployment/%s to roll out.",
			s.cfg.ManifestDir(s.name), s.cfg.Namespace, s.name),
		nil,
	)
}

func (s *ModuleStep) rollout(ctx context.Context) error {
	cmd := s.kubectl("rollout", "status", "deployment/"+s.name, "--timeout="+s.cfg.VerifyTimeout.String())
	if _, err := commandutil.Run(ctx, s.runner, cmd); err != nil {
		return fmt.Errorf("rollout of %s: %w", s.name, err)
	}
	return nil
}

func (s *ModuleStep) kubectl(args ...string) ports.Command {
	full := make([]string, 0, len(args)+2)
	full = append(full, args...)
	full = append(full, "--namespace", s.cfg.Namespace)
	return commandutil.Kubectl(s.cfg.KubeconfigPath, full...)
}

// Ensure ModuleStep implements compiler.Step.
var _ compiler.Step = (*ModuleStep)(nil)
