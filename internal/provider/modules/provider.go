// Package modules deploys the sample workload modules with kubectl.
package modules

import (
	"fmt"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
	"github.com/felixgeelhaar/edgeprov/internal/validation"
)

const (
	kubeconfigStep = "k3s:kubeconfig"
	aioStep        = "azure:aio"
)

// Provider compiles module toggles into executable steps.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new modules provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{runner: runner, fs: fs}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "modules"
}

// Compile transforms the enabled modules into deployment steps.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	cfg := ParseConfig(ctx.Config())
	if len(cfg.Names) == 0 {
		return nil, nil
	}

	var deps []compiler.StepID
	for _, id := range []string{kubeconfigStep, aioStep} {
		if ctx.Has(id) {
			deps = append(deps, compiler.MustNewStepID(id))
		}
	}

	steps := make([]compiler.Step, 0, len(cfg.Names))
	for _, name := range cfg.Names {
		if err := validation.ValidateKubernetesName(name); err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		steps = append(steps, NewModuleStep(name, cfg, p.runner, p.fs, deps...))
	}
	return steps, nil
}

// Ensure Provider implements compiler.Provider.
var _ compiler.Provider = (*Provider)(nil)
