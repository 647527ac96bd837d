// Package azure Arc-enables the cluster and layers the Azure features on
// top: custom locations, the Key Vault CSI secret store and Azure IoT
// Operations.
package azure

import (
	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

const (
	curlStep        = "host:package:curl"
	clusterInfoStep = "k3s:cluster-info"

	arcConnectStep      = "azure:arc-connect"
	customLocationsStep = "azure:custom-locations"
	keyVaultCSIStep     = "azure:keyvault-csi"
)

// Feature is an azure toggle layered on the Arc-connected cluster.
type Feature struct {
	Toggle string
	// After lists the azure steps the feature waits for when they are compiled.
	After []string
	New   func(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) compiler.Step
}

// Features lists the Arc features in compile order.
var Features = []Feature{
	{
		Toggle: "azure.custom_locations",
		After:  []string{arcConnectStep},
		New: func(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) compiler.Step {
			return NewCustomLocationsStep(cfg, runner, deps...)
		},
	},
	{
		Toggle: "azure.keyvault_csi",
		After:  []string{arcConnectStep},
		New: func(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) compiler.Step {
			return NewKeyVaultCSIStep(cfg, runner, deps...)
		},
	},
	{
		Toggle: "azure.aio_enabled",
		After:  []string{customLocationsStep, keyVaultCSIStep},
		New: func(cfg *Config, runner ports.CommandRunner, deps ...compiler.StepID) compiler.Step {
			return NewAIOStep(cfg, runner, deps...)
		},
	},
}

// Provider compiles azure configuration into executable steps.
type Provider struct {
	runner ports.CommandRunner
}

// NewProvider creates a new azure provider.
func NewProvider(runner ports.CommandRunner) *Provider {
	return &Provider{runner: runner}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "azure"
}

// Compile transforms the configuration into azure steps. Nothing is
// compiled unless arc_enabled is set.
func (p *Provider) Compile(ctx compiler.CompileContext) ([]compiler.Step, error) {
	cfg := ParseConfig(ctx.Config())
	if !cfg.ArcEnabled {
		return nil, nil
	}

	cli := NewCLIStep(cfg, p.runner, present(ctx, curlStep)...)
	arc := NewArcConnectStep(cfg, p.runner, append([]compiler.StepID{cli.ID()}, present(ctx, clusterInfoStep)...)...)
	steps := []compiler.Step{cli, arc}

	compiled := map[string]bool{cli.ID().String(): true, arc.ID().String(): true}
	for _, f := range Features {
		if !ctx.Config().Toggle(f.Toggle) {
			continue
		}
		var deps []compiler.StepID
		for _, id := range f.After {
			if compiled[id] {
				deps = append(deps, compiler.MustNewStepID(id))
			}
		}
		step := f.New(cfg, p.runner, deps...)
		steps = append(steps, step)
		compiled[step.ID().String()] = true
	}
	return steps, nil
}

func present(ctx compiler.CompileContext, ids ...string) []compiler.StepID {
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
