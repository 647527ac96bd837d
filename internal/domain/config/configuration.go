// Package config defines the provisioning configuration and loads it from
// JSON, YAML or TOML documents.
package config

import (
	"sort"
	"strings"
	"time"
)

// Default values applied to fields the document leaves empty.
const (
	DefaultStepTimeout      = 15 * time.Minute
	DefaultVerifyTimeout    = 5 * time.Minute
	DefaultPollInterval     = 5 * time.Second
	DefaultStateFile        = ".edgeprov/state.json"
	DefaultArtifactFile     = "cluster_info.json"
	DefaultModulesDir       = "modules"
	DefaultModulesNamespace = "default"
	DefaultKubeconfigPath   = "~/.kube/config"
)

// Known optional tool toggles.
const (
	ToolHelm       = "helm"
	ToolK9s        = "k9s"
	ToolMQTTClient = "mqtt-client"
	ToolSSH        = "ssh"
)

// KnownModules lists the workload modules shipped with the edge samples.
var KnownModules = []string{
	"edgemqttsim",
	"sputnik",
	"demohistorian",
	"hello-flask",
	"spaceshipfactorysim",
	"python-quality-filter",
	"wasm-quality-filter",
	"wasm-quality-filter-python",
}

// AzureConfig identifies the Azure resources the node is attached to.
type AzureConfig struct {
	SubscriptionID     string `json:"subscription_id"`
	ResourceGroup      string `json:"resource_group"`
	Location           string `json:"location"`
	ClusterName        string `json:"cluster_name"`
	KeyVaultName       string `json:"keyvault_name"`
	CustomLocationsOID string `json:"custom_locations_oid"`
	AIOInstanceName    string `json:"aio_instance_name"`

	ArcEnabled      bool `json:"arc_enabled"`
	CustomLocations bool `json:"custom_locations"`
	KeyVaultCSI     bool `json:"keyvault_csi"`
	AIOEnabled      bool `json:"aio_enabled"`
}

// K3sConfig describes the local K3s installation.
type K3sConfig struct {
	Version        string   `json:"version"`
	KubeconfigPath string   `json:"kubeconfig_path"`
	InstallArgs    []string `json:"install_args"`
}

// DeploymentConfig holds run-wide behaviour switches.
type DeploymentConfig struct {
	SkipSystemUpdate bool `json:"skip_system_update"`
	ForceReinstall   bool `json:"force_reinstall"`
	DryRun           bool `json:"dry_run"`
	ContinueOnError  bool `json:"continue_on_error"`
	SkipVerification bool `json:"skip_verification"`

	StepTimeout   time.Duration `json:"step_timeout"`
	VerifyTimeout time.Duration `json:"verify_timeout"`
	PollInterval  time.Duration `json:"poll_interval"`

	StateFile        string `json:"state_file"`
	ArtifactFile     string `json:"artifact_file"`
	ModulesDir       string `json:"modules_dir"`
	ModulesNamespace string `json:"modules_namespace"`
}

// CustomStep is a user-declared shell step.
type CustomStep struct {
	Name      string        `json:"name"`
	Run       string        `json:"run"`
	Check     string        `json:"check"`
	Verify    string        `json:"verify"`
	DependsOn []string      `json:"depends_on"`
	Timeout   time.Duration `json:"timeout"`
}

// Configuration is the resolved provisioning configuration. It is treated as
// immutable once loaded; methods that change it return a modified copy.
type Configuration struct {
	Azure         AzureConfig      `json:"azure"`
	K3s           K3sConfig        `json:"k3s"`
	OptionalTools map[string]bool  `json:"optional_tools"`
	Modules       map[string]bool  `json:"modules"`
	Deployment    DeploymentConfig `json:"deployment"`
	CustomSteps   []CustomStep     `json:"custom_steps"`

	source      string
	unknownKeys []string
}

// Overrides are command-line values layered over the document.
type Overrides struct {
	DryRun           bool
	Force            bool
	SkipVerification bool
	ContinueOnError  bool
	StateFile        string
	ArtifactFile     string
}

// Source returns the path the configuration was loaded from.
func (c Configuration) Source() string {
	return c.source
}

// UnknownKeys returns document keys that matched no known field, sorted.
func (c Configuration) UnknownKeys() []string {
	return append([]string(nil), c.unknownKeys...)
}

// Clone returns a deep copy.
func (c Configuration) Clone() Configuration {
	out := c
	out.K3s.InstallArgs = append([]string(nil), c.K3s.InstallArgs...)
	out.OptionalTools = cloneToggles(c.OptionalTools)
	out.Modules = cloneToggles(c.Modules)
	out.CustomSteps = make([]CustomStep, len(c.CustomSteps))
	for i, step := range c.CustomSteps {
		step.DependsOn = append([]string(nil), step.DependsOn...)
		out.CustomSteps[i] = step
	}
	out.unknownKeys = append([]string(nil), c.unknownKeys...)
	return out
}

// WithOverrides returns a copy with command-line overrides applied. Booleans
// are OR-ed with the document; non-empty strings replace it.
func (c Configuration) WithOverrides(o Overrides) Configuration {
	out := c.Clone()
	out.Deployment.DryRun = out.Deployment.DryRun || o.DryRun
	out.Deployment.ForceReinstall = out.Deployment.ForceReinstall || o.Force
	out.Deployment.SkipVerification = out.Deployment.SkipVerification || o.SkipVerification
	out.Deployment.ContinueOnError = out.Deployment.ContinueOnError || o.ContinueOnError
	if o.StateFile != "" {
		out.Deployment.StateFile = o.StateFile
	}
	if o.ArtifactFile != "" {
		out.Deployment.ArtifactFile = o.ArtifactFile
	}
	return out
}

// ToolEnabled reports whether an optional tool is switched on.
func (c Configuration) ToolEnabled(name string) bool {
	return c.OptionalTools[name]
}

// ModuleEnabled reports whether a workload module is switched on.
func (c Configuration) ModuleEnabled(name string) bool {
	return c.Modules[name]
}

// EnabledTools returns the enabled optional tools, sorted.
func (c Configuration) EnabledTools() []string {
	return enabledNames(c.OptionalTools)
}

// EnabledModules returns the enabled modules, sorted.
func (c Configuration) EnabledModules() []string {
	return enabledNames(c.Modules)
}

// InstanceName returns the AIO instance name, derived from the cluster name
// when the document does not set one.
func (c Configuration) InstanceName() string {
	if c.Azure.AIOInstanceName != "" {
		return c.Azure.AIOInstanceName
	}
	if c.Azure.ClusterName == "" {
		return ""
	}
	return c.Azure.ClusterName + "-ops"
}

// Toggle looks up a boolean switch by its dotted name, for example
// "optional_tools.k9s" or "azure.arc_enabled". Unknown names are false.
func (c Configuration) Toggle(name string) bool {
	section, key, ok := strings.Cut(name, ".")
	if !ok {
		return false
	}
	switch section {
	case "optional_tools":
		return c.OptionalTools[key]
	case "modules":
		return c.Modules[key]
	}
	return c.toggles()[name]
}

// Toggles returns every boolean switch keyed by its dotted name.
func (c Configuration) Toggles() map[string]bool {
	out := c.toggles()
	for name, on := range c.OptionalTools {
		out["optional_tools."+name] = on
	}
	for name, on := range c.Modules {
		out["modules."+name] = on
	}
	return out
}

func (c Configuration) toggles() map[string]bool {
	return map[string]bool{
		"azure.arc_enabled":             c.Azure.ArcEnabled,
		"azure.custom_locations":        c.Azure.CustomLocations,
		"azure.keyvault_csi":            c.Azure.KeyVaultCSI,
		"azure.aio_enabled":             c.Azure.AIOEnabled,
		"deployment.skip_system_update": c.Deployment.SkipSystemUpdate,
		"deployment.force_reinstall":    c.Deployment.ForceReinstall,
		"deployment.dry_run":            c.Deployment.DryRun,
		"deployment.continue_on_error":  c.Deployment.ContinueOnError,
		"deployment.skip_verification":  c.Deployment.SkipVerification,
	}
}

// applyDefaults fills empty tunables.
func (c *Configuration) applyDefaults() {
	if c.OptionalTools == nil {
		c.OptionalTools = map[string]bool{}
	}
	if c.Modules == nil {
		c.Modules = map[string]bool{}
	}
	d := &c.Deployment
	if d.StepTimeout == 0 {
		d.StepTimeout = DefaultStepTimeout
	}
	if d.VerifyTimeout == 0 {
		d.VerifyTimeout = DefaultVerifyTimeout
	}
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.StateFile == "" {
		d.StateFile = DefaultStateFile
	}
	if d.ArtifactFile == "" {
		d.ArtifactFile = DefaultArtifactFile
	}
	if d.ModulesDir == "" {
		d.ModulesDir = DefaultModulesDir
	}
	if d.ModulesNamespace == "" {
		d.ModulesNamespace = DefaultModulesNamespace
	}
	if c.K3s.KubeconfigPath == "" {
		c.K3s.KubeconfigPath = DefaultKubeconfigPath
	}
}

func cloneToggles(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func enabledNames(toggles map[string]bool) []string {
	names := make([]string, 0, len(toggles))
	for name, on := range toggles {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
