// Package compiler turns configuration into a validated graph of steps.
// It provides the core pipeline: Configuration → Provider → StepGraph.
package compiler

import (
	"errors"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

// Compiler orchestrates providers to build a StepGraph from configuration.
type Compiler struct {
	providers []Provider
}

// NewCompiler creates a new Compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		providers: make([]Provider, 0),
	}
}

// RegisterProvider adds a provider to the compiler.
// Providers are called in registration order during compilation.
func (c *Compiler) RegisterProvider(provider Provider) {
	c.providers = append(c.providers, provider)
}

// Providers returns all registered providers.
func (c *Compiler) Providers() []Provider {
	return c.providers
}

// Compile transforms configuration into a validated StepGraph.
// Every failure is reported as a CONFIG_PARSE user error before any step
// runs: a provider error, a duplicate step ID, a missing dependency or a
// dependency cycle.
func (c *Compiler) Compile(cfg config.Configuration) (*StepGraph, error) {
	graph, err := c.compile(cfg)
	if err != nil {
		return nil, config.NewConfigParseError(cfg.Source(), err)
	}
	return graph, nil
}

func (c *Compiler) compile(cfg config.Configuration) (*StepGraph, error) {
	graph := NewStepGraph()
	ctx := NewCompileContext(cfg)

	for _, provider := range c.providers {
		steps, err := provider.Compile(ctx)
		if err != nil {
			return nil, NewProviderFailedError(provider.Name(), err)
		}

		for _, step := range steps {
			if err := graph.Add(step); err != nil {
				return nil, NewStepDuplicateError(provider.Name(), step.ID().String())
			}
		}
		ctx = ctx.withSteps(steps)
	}

	if err := graph.Validate(); err != nil {
		var missing *MissingDependencyError
		if errors.As(err, &missing) {
			return nil, NewDependencyMissingError(missing.StepID, missing.DependsOn)
		}
		return nil, err
	}

	if _, err := graph.TopologicalSort(); err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			return nil, NewCyclicDependencyError(cycle.Path)
		}
		return nil, err
	}

	return graph, nil
}
