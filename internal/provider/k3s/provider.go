// Package k3s installs the K3s server, exposes its kubeconfig and collects
// the cluster facts later steps and the artifact file need.
package k3s

import (
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// curlStep is the host package the install script is fetched with.
const curlStep = "host:package:curl"

// Provider compiles k3s configuration into executable steps.
type Provider struct {
	runner ports.CommandRunner
	fs     ports.FileSystem
}

// NewProvider creates a new k3s provider.
func NewProvider(runner ports.CommandRunner, fs ports.FileSystem) *Provider {
	return &Provider{runner: runner, fs: fs}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "k3s"
}

// Compile transforms the configuration into k3s steps.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	cfg := ParseConfig(ctx.Config())

	var installDeps []compiler.StepID
	if ctx.Has(curlStep) {
		installDeps = append(installDeps, compiler.MustNewStepID(curlStep))
	}

	install := NewInstallStep(cfg, p.runner, installDeps...)
	kubeconfig := NewKubeconfigStep(cfg, p.fs, p.runner, install.ID())
	info := NewClusterInfoStep(cfg, p.runner, kubeconfig.ID())

	return []compiler.Step{install, kubeconfig, info}, nil
}

// Ensure Provider implements compiler.Provider.
var _ compiler.Provider = (*Provider)(nil)
