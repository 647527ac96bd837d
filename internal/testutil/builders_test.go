package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

func TestConfigBuilder_JSONLoadsAsConfiguration(t *testing.T) {
	t.Parallel()

	doc := NewConfigBuilder().
		WithArc("edge-01").
		WithTool(config.ToolHelm).
		WithModule("edgemqttsim").
		WithDeployment("skip_system_update", true).
		WithCustomStep("motd", "echo hi", "k3s:install").
		ToJSON(t)

	cfg, err := config.Parse([]byte(doc), config.FormatJSON)
	require.NoError(t, err)

	assert.True(t, cfg.Azure.ArcEnabled)
	assert.Equal(t, "edge-01", cfg.Azure.ClusterName)
	assert.True(t, cfg.ToolEnabled(config.ToolHelm))
	assert.True(t, cfg.ModuleEnabled("edgemqttsim"))
	assert.True(t, cfg.Deployment.SkipSystemUpdate)
	require.Len(t, cfg.CustomSteps, 1)
	assert.Equal(t, []string{"k3s:install"}, cfg.CustomSteps[0].DependsOn)
	assert.Empty(t, cfg.UnknownKeys())
}

func TestConfigBuilder_YAML(t *testing.T) {
	t.Parallel()

	doc := NewConfigBuilder().WithK3s("version", "v1.30.4+k3s1").ToYAML(t)

	cfg, err := config.Parse([]byte(doc), config.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "v1.30.4+k3s1", cfg.K3s.Version)
}

func TestConfigBuilder_EmptySectionsOmitted(t *testing.T) {
	t.Parallel()

	assert.Empty(t, NewConfigBuilder().Build())
}

func TestWriteHelpers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := WriteTempFile(t, dir, "modules/sputnik/deploy.yaml", "kind: Deployment\n")

	AssertFileContains(t, path, "kind: Deployment")
	assert.Equal(t, filepath.Join(dir, "modules", "sputnik", "deploy.yaml"), path)
	AssertFileNotExists(t, filepath.Join(dir, "modules", "sputnik", "missing.yaml"))

	jsonPath := NewConfigBuilder().WithStateDir(dir).WriteJSON(t, dir)
	doc := ReadJSONFile(t, jsonPath)
	assert.Contains(t, doc, "deployment")
}
