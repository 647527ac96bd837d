package testutil

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ConfigBuilder builds edgeprov configuration documents for tests.
type ConfigBuilder struct {
	azure       map[string]interface{}
	k3s         map[string]interface{}
	tools       map[string]interface{}
	modules     map[string]interface{}
	deployment  map[string]interface{}
	customSteps []interface{}
}

// NewConfigBuilder creates a builder for an empty document.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		azure:      map[string]interface{}{},
		k3s:        map[string]interface{}{},
		tools:      map[string]interface{}{},
		modules:    map[string]interface{}{},
		deployment: map[string]interface{}{},
	}
}

// WithArc enables Azure Arc with a complete set of identifiers.
func (b *ConfigBuilder) WithArc(cluster string) *ConfigBuilder {
	b.azure["arc_enabled"] = true
	b.azure["subscription_id"] = "00000000-0000-0000-0000-000000000001"
	b.azure["resource_group"] = "rg-edge"
	b.azure["location"] = "westeurope"
	b.azure["cluster_name"] = cluster
	return b
}

// WithAzure sets an azure.* key.
func (b *ConfigBuilder) WithAzure(key string, value interface{}) *ConfigBuilder {
	b.azure[key] = value
	return b
}

// WithK3s sets a k3s.* key.
func (b *ConfigBuilder) WithK3s(key string, value interface{}) *ConfigBuilder {
	b.k3s[key] = value
	return b
}

// WithTool enables optional tools.
func (b *ConfigBuilder) WithTool(names ...string) *ConfigBuilder {
	for _, name := range names {
		b.tools[name] = true
	}
	return b
}

// WithModule enables workload modules.
func (b *ConfigBuilder) WithModule(names ...string) *ConfigBuilder {
	for _, name := range names {
		b.modules[name] = true
	}
	return b
}

// WithDeployment sets a deployment.* key.
func (b *ConfigBuilder) WithDeployment(key string, value interface{}) *ConfigBuilder {
	b.deployment[key] = value
	return b
}

// WithStateDir points the state and artifact files into dir.
func (b *ConfigBuilder) WithStateDir(dir string) *ConfigBuilder {
	b.deployment["state_file"] = filepath.Join(dir, "state.json")
	b.deployment["artifact_file"] = filepath.Join(dir, "cluster_info.json")
	return b
}

// WithCustomStep appends a custom shell step.
func (b *ConfigBuilder) WithCustomStep(name, run string, dependsOn ...string) *ConfigBuilder {
	step := map[string]interface{}{"name": name, "run": run}
	if len(dependsOn) > 0 {
		step["depends_on"] = dependsOn
	}
	b.customSteps = append(b.customSteps, step)
	return b
}

// Build returns the document as a raw map.
func (b *ConfigBuilder) Build() map[string]interface{} {
	doc := map[string]interface{}{}
	for key, section := range map[string]map[string]interface{}{
		"azure":          b.azure,
		"k3s":            b.k3s,
		"optional_tools": b.tools,
		"modules":        b.modules,
		"deployment":     b.deployment,
	} {
		if len(section) > 0 {
			doc[key] = section
		}
	}
	if len(b.customSteps) > 0 {
		doc["custom_steps"] = b.customSteps
	}
	return doc
}

// ToJSON renders the document as JSON.
func (b *ConfigBuilder) ToJSON(t testing.TB) string {
	t.Helper()
	data, err := json.MarshalIndent(b.Build(), "", "  ")
	require.NoError(t, err)
	return string(data)
}

// ToYAML renders the document as YAML.
func (b *ConfigBuilder) ToYAML(t testing.TB) string {
	t.Helper()
	data, err := yaml.Marshal(b.Build())
	require.NoError(t, err)
	return string(data)
}

// WriteJSON writes the document to dir/edgeprov.json and returns the path.
func (b *ConfigBuilder) WriteJSON(t *testing.T, dir string) string {
	t.Helper()
	return WriteTempFile(t, dir, "edgeprov.json", b.ToJSON(t))
}
