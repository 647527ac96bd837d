package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfiguration_Toggle(t *testing.T) {
	cfg, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	assert.True(t, cfg.Toggle("optional_tools.k9s"))
	assert.False(t, cfg.Toggle("optional_tools.helm"))
	assert.True(t, cfg.Toggle("modules.edgemqttsim"))
	assert.True(t, cfg.Toggle("azure.arc_enabled"))
	assert.True(t, cfg.Toggle("deployment.skip_system_update"))
	assert.False(t, cfg.Toggle("azure.aio_enabled"))
	assert.False(t, cfg.Toggle("nonsense"))
	assert.False(t, cfg.Toggle("azure.unknown"))

	toggles := cfg.Toggles()
	assert.True(t, toggles["optional_tools.mqtt-client"])
	assert.False(t, toggles["modules.sputnik"])
	assert.Contains(t, toggles, "deployment.dry_run")
}

func TestConfiguration_WithOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`{"deployment": {"continue_on_error": true, "state_file": "state.json"}}`), FormatJSON)
	require.NoError(t, err)

	out := cfg.WithOverrides(Overrides{DryRun: true, Force: true, ArtifactFile: "out.json"})

	assert.True(t, out.Deployment.DryRun)
	assert.True(t, out.Deployment.ForceReinstall)
	assert.True(t, out.Deployment.ContinueOnError, "document value survives a false flag")
	assert.Equal(t, "state.json", out.Deployment.StateFile, "empty override keeps the document value")
	assert.Equal(t, "out.json", out.Deployment.ArtifactFile)
	assert.False(t, cfg.Deployment.DryRun, "original is unchanged")
}

func TestConfiguration_CloneIsDeep(t *testing.T) {
	cfg, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	clone := cfg.Clone()
	clone.Modules["sputnik"] = true
	clone.OptionalTools["helm"] = true
	clone.K3s.InstallArgs[0] = "--changed"
	clone.CustomSteps[0].DependsOn[0] = "changed"

	assert.False(t, cfg.Modules["sputnik"])
	assert.False(t, cfg.OptionalTools["helm"])
	assert.Equal(t, "--disable=traefik", cfg.K3s.InstallArgs[0])
	assert.Equal(t, "k3s:kubeconfig", cfg.CustomSteps[0].DependsOn[0])
}

func TestConfiguration_InstanceName(t *testing.T) {
	assert.Equal(t, "", Configuration{}.InstanceName())
	assert.Equal(t, "edge-01-ops", Configuration{Azure: AzureConfig{ClusterName: "edge-01"}}.InstanceName())
	assert.Equal(t, "aio", Configuration{Azure: AzureConfig{ClusterName: "edge-01", AIOInstanceName: "aio"}}.InstanceName())
}
