package custom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/provider/custom"
	"github.com/felixgeelhaar/edgeprov/internal/testutil/mocks"
)

func TestResolveDependencies(t *testing.T) {
	t.Parallel()

	deps, err := custom.ResolveDependencies(config.CustomStep{
		Name:      "seed",
		DependsOn: []string{"k3s:kubeconfig", "certs", " tools:helm "},
	})

	require.NoError(t, err)
	assert.Equal(t, []compiler.StepID{
		compiler.MustNewStepID("k3s:kubeconfig"),
		compiler.MustNewStepID("custom:certs"),
		compiler.MustNewStepID("tools:helm"),
	}, deps)
}

func TestResolveDependencies_Invalid(t *testing.T) {
	t.Parallel()

	_, err := custom.ResolveDependencies(config.CustomStep{Name: "seed", DependsOn: []string{"bad name"}})
	assert.ErrorContains(t, err, `depends_on "bad name"`)
}

func TestProvider_Compile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{"custom_steps": [
		{"name": "certs", "run": "make-certs"},
		{"name": "seed", "run": "seed-db", "depends_on": ["certs"]}
	]}`), config.FormatJSON)
	require.NoError(t, err)

	p := custom.NewProvider(mocks.NewCommandRunner())
	assert.Equal(t, "custom", p.Name())

	steps, err := p.Compile(compiler.NewCompileContext(cfg))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "custom:certs", steps[0].ID().String())
	assert.Equal(t, []compiler.StepID{steps[0].ID()}, steps[1].DependsOn())
}

func TestCompiler_RejectsCustomCycle(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{"custom_steps": [
		{"name": "a", "run": "true", "depends_on": ["b"]},
		{"name": "b", "run": "true", "depends_on": ["a"]}
	]}`), config.FormatJSON)
	require.NoError(t, err)

	c := compiler.NewCompiler()
	c.RegisterProvider(custom.NewProvider(mocks.NewCommandRunner()))

	_, err = c.Compile(cfg)

	require.Error(t, err)
	assert.True(t, config.IsUserError(err, config.ErrCodeConfigParse))
	assert.ErrorIs(t, err, &compiler.StepError{Code: compiler.ErrCodeCyclicDependency})
}
