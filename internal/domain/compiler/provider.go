package compiler

import "github.com/felixgeelhaar/edgeprov/internal/domain/config"

// Provider turns one area of the configuration into steps.
type Provider interface {
	// Name returns the provider's identifier (e.g., "host", "k3s", "azure").
	Name() string

	// Compile returns the steps enabled by the configuration. Cross-provider
	// ordering is expressed through Step.DependsOn().
	Compile(ctx CompileContext) ([]Step, error)
}

// CompileContext provides the configuration and the IDs of steps compiled so
// far to providers during compilation.
type CompileContext struct {
	config config.Configuration
	known  map[string]bool
}

// NewCompileContext creates a new CompileContext for cfg.
func NewCompileContext(cfg config.Configuration) CompileContext {
	return CompileContext{
		config: cfg,
		known:  map[string]bool{},
	}
}

// Config returns the configuration being compiled.
func (c CompileContext) Config() config.Configuration {
	return c.config
}

// Has reports whether an earlier provider produced the step id. Providers use
// it to depend on optional steps only when they exist.
func (c CompileContext) Has(id string) bool {
	return c.known[id]
}

func (c CompileContext) withSteps(steps []Step) CompileContext {
	known := make(map[string]bool, len(c.known)+len(steps))
	for k := range c.known {
		known[k] = true
	}
	for _, s := range steps {
		known[s.ID().String()] = true
	}
	return CompileContext{config: c.config, known: known}
}
