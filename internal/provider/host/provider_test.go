package host_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/provider/host"
	"github.com/felixgeelhaar/edgeprov/internal/testutil/mocks"
)

func ids(steps []compiler.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.ID().String()
	}
	return out
}

func deps(step compiler.Step) []string {
	var out []string
	for _, d := range step.DependsOn() {
		out = append(out, d.String())
	}
	return out
}

func TestProvider_Name(t *testing.T) {
	t.Parallel()

	p := host.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem())
	assert.Equal(t, "host", p.Name())
}

func TestProvider_Compile(t *testing.T) {
	t.Parallel()

	p := host.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem())
	ctx := compiler.NewCompileContext(parse(t, `{"optional_tools": {"mqtt-client": true}}`))

	steps, err := p.Compile(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"host:os-check",
		"host:system-update",
		"host:package:curl",
		"host:package:jq",
		"host:package:mosquitto-clients",
	}, ids(steps))
	assert.Empty(t, deps(steps[0]))
	assert.Equal(t, []string{"host:os-check"}, deps(steps[1]))
	assert.Equal(t, []string{"host:system-update"}, deps(steps[2]))
}

func TestProvider_Compile_SkipSystemUpdate(t *testing.T) {
	t.Parallel()

	p := host.NewProvider(mocks.NewCommandRunner(), mocks.NewFileSystem())
	ctx := compiler.NewCompileContext(parse(t, `{"deployment": {"skip_system_update": true}}`))

	steps, err := p.Compile(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"host:os-check", "host:package:curl", "host:package:jq"}, ids(steps))
	assert.Equal(t, []string{"host:os-check"}, deps(steps[1]))
}
