// Package custom turns user-declared shell steps into pipeline steps.
package custom

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Provider compiles custom_steps into executable steps.
type Provider struct {
	runner ports.CommandRunner
}

// NewProvider creates a new custom provider.
func NewProvider(runner ports.CommandRunner) *Provider {
	return &Provider{runner: runner}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "custom"
}

// Compile transforms custom_steps into steps, in document order.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	declared := ctx.Config().CustomSteps
	steps := make([]compiler.Step, 0, len(declared))
	for _, def := range declared {
		id, err := compiler.NewStepID("custom:" + def.Name)
		if err != nil {
			return nil, fmt.Errorf("custom step %q: %w", def.Name, err)
		}
		deps, err := ResolveDependencies(def)
		if err != nil {
			return nil, err
		}
		steps = append(steps, NewShellStep(id, def, p.runner, deps...))
	}
	return steps, nil
}

// ResolveDependencies maps depends_on entries to step IDs. An entry with a
// colon names any step ("k3s:kubeconfig"); a bare name refers to another
// custom step.
func ResolveDependencies(def config.CustomStep) ([]compiler.StepID, error) {
	deps := make([]compiler.StepID, 0, len(def.DependsOn))
	for _, raw := range def.DependsOn {
		ref := strings.TrimSpace(raw)
		if !strings.Contains(ref, ":") {
			ref = "custom:" + ref
		}
		id, err := compiler.NewStepID(ref)
		if err != nil {
			return nil, fmt.Errorf("custom step %q: depends_on %q: %w", def.Name, raw, err)
		}
		deps = append(deps, id)
	}
	return deps, nil
}

// Ensure Provider implements compiler.Provider.
var _ compiler.Provider = (*Provider)(nil)
