// Package tools installs the optional operator tooling: helm, k9s and the
// SSH service together with the node identity derived from its host key.
package tools

import (
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

const (
	curlStep       = "host:package:curl"
	sshPackageStep = "host:package:openssh-server"
)

// Provider compiles optional tool toggles into executable steps.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new tools provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{runner: runner, fs: fs}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "tools"
}

// Compile transforms the configuration into tool steps.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	cfg := ParseConfig(ctx.Config())

	var steps []compiler.Step
	for _, tool := range cfg.Binaries {
		steps = append(steps, NewToolStep(tool, p.runner, dependsIfPresent(ctx, curlStep)...))
	}

	if cfg.SSH {
		service := NewSSHServiceStep(cfg, p.runner, dependsIfPresent(ctx, sshPackageStep)...)
		identity := NewSSHIdentityStep(p.fs, service.ID())
		steps = append(steps, service, identity)
	}
	return steps, nil
}

func dependsIfPresent(ctx compiler.CompileContext, ids ...string) []compiler.StepID {
	var out []compiler.StepID
	for _, id := range ids {
		if ctx.Has(id) {
			out = append(out, compiler.MustNewStepID(id))
		}
	}
	return out
}

// Ensure Provider implements compiler.Provider.
var _ compiler.Provider = (*Provider)(nil)
