// Package host prepares the operating system: it checks the distribution,
// refreshes apt and installs the packages later steps rely on.
package host

import (
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Provider compiles host configuration into executable steps.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new host provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{runner: runner, fs: fs}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "host"
}

// Compile transforms the configuration into host steps.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	cfg, err := ParseConfig(ctx.Config())
	if err != nil {
		return nil, err
	}

	osCheck := NewOSCheckStep(p.fs, p.runner)
	steps := []compiler.Step{osCheck}

	after := []compiler.StepID{osCheck.ID()}
	if !cfg.SkipSystemUpdate {
		update := NewSystemUpdateStep(p.runner, osCheck.ID())
		steps = append(steps, update)
		after = []compiler.StepID{update.ID()}
	}

	for _, pkg := range cfg.Packages {
		steps = append(steps, NewPackageStep(pkg, p.runner, after...))
	}
	return steps, nil
}

// Ensure Provider implements compiler.Provider.
var _ compiler.Provider = (*Provider)(nil)
