package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationMessages(t *testing.T, doc string) []string {
	t.Helper()
	cfg, err := Parse([]byte(doc), FormatJSON)
	require.NoError(t, err)

	errs := Validate(cfg)
	messages := make([]string, 0, errs.Len())
	for _, e := range errs.Errors() {
		messages = append(messages, e.Message)
	}
	return messages
}

func TestValidate_Valid(t *testing.T) {
	assert.Empty(t, validationMessages(t, sampleJSON))
	assert.Empty(t, validationMessages(t, `{}`))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "arc requires identifiers",
			doc:  `{"azure": {"arc_enabled": true}}`,
			want: "azure.subscription_id: required when arc_enabled is true",
		},
		{
			name: "custom locations requires arc",
			doc:  `{"azure": {"custom_locations": true, "custom_locations_oid": "0b5f6c4e-8a3d-4c1e-9b7a-2f1e3d4c5b6a"}}`,
			want: "azure.custom_locations: requires azure.arc_enabled",
		},
		{
			name: "keyvault csi requires vault name",
			doc:  `{"azure": {"keyvault_csi": true}}`,
			want: "azure.keyvault_name: required when keyvault_csi is true",
		},
		{
			name: "aio requires custom locations",
			doc:  `{"azure": {"aio_enabled": true}}`,
			want: "azure.aio_enabled: requires azure.custom_locations",
		},
		{
			name: "subscription must be uuid",
			doc:  `{"azure": {"subscription_id": "sub-123"}}`,
			want: "azure.subscription_id",
		},
		{
			name: "location format",
			doc:  `{"azure": {"location": "East US"}}`,
			want: "azure.location",
		},
		{
			name: "k3s version",
			doc:  `{"k3s": {"version": "1.30"}}`,
			want: "k3s.version",
		},
		{
			name: "install args",
			doc:  `{"k3s": {"install_args": ["--flag; reboot"]}}`,
			want: "k3s.install_args[0]: contains shell metacharacters",
		},
		{
			name: "module name",
			doc:  `{"modules": {"Hello_Flask": true}}`,
			want: "modules.Hello_Flask",
		},
		{
			name: "namespace",
			doc:  `{"deployment": {"modules_namespace": "Bad NS"}}`,
			want: "deployment.modules_namespace",
		},
		{
			name: "negative timeout",
			doc:  `{"deployment": {"step_timeout": "-1s"}}`,
			want: "deployment.step_timeout: must not be negative",
		},
		{
			name: "state path traversal",
			doc:  `{"deployment": {"state_file": "../../etc/state.json"}}`,
			want: "deployment.state_file",
		},
		{
			name: "custom step run required",
			doc:  `{"custom_steps": [{"name": "seed"}]}`,
			want: "custom_steps[0].run: is required",
		},
		{
			name: "custom step duplicate",
			doc:  `{"custom_steps": [{"name": "seed", "run": "true"}, {"name": "seed", "run": "true"}]}`,
			want: `custom_steps[1].name: duplicate step name "seed"`,
		},
		{
			name: "custom step name",
			doc:  `{"custom_steps": [{"name": "a:b", "run": "true"}]}`,
			want: "custom_steps[0].name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := validationMessages(t, tt.doc)
			found := false
			for _, m := range messages {
				if strings.HasPrefix(m, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "want a message starting with %q, got %v", tt.want, messages)
		})
	}
}
