package modules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/provider/modules"
	"github.com/felixgeelhaar/edgeprov/internal/testutil/mocks"
)

func TestProvider_Compile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{"modules": {"sputnik": true, "edgemqttsim": true, "hello-flask": false}}`), config.FormatJSON)
	require.NoError(t, err)

	p := modules.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem())
	assert.Equal(t, "modules", p.Name())

	steps, err := p.Compile(compiler.NewCompileContext(cfg))
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "modules:edgemqttsim", steps[0].ID().String())
	assert.Equal(t, "modules:sputnik", steps[1].ID().String())
	assert.Empty(t, steps[0].DependsOn())
}

func TestProvider_Compile_NoModules(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{}`), config.FormatJSON)
	require.NoError(t, err)

	steps, err := modules.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem()).Compile(compiler.NewCompileContext(cfg))
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestProvider_Compile_InvalidName(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(`{"modules": {"Bad_Name": true}}`), config.FormatJSON)
	require.NoError(t, err)

	_, err = modules.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem()).Compile(compiler.NewCompileContext(cfg))
	assert.ErrorContains(t, err, `module "Bad_Name"`)
}
