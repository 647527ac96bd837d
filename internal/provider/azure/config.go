package azure

import (
	"time"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Azure CLI extensions by feature.
const (
	ExtensionConnectedK8s   = "connectedk8s"
	ExtensionK8sExtension   = "k8s-extension"
	ExtensionCustomLocation = "customlocation"
	ExtensionIoTOps         = "azure-iot-ops"
)

// CLIInstallScript installs the Azure CLI on Debian-based hosts.
const CLIInstallScript = "curl -sL https://aka.ms/InstallAzureCLIDeb | bash"

// Arc agent workloads on the connected cluster.
const (
	ArcNamespace        = "azure-arc"
	ClusterConnectAgent = "clusterconnect-agent"
)

// KeyVaultExtensionName is the cluster extension that backs the CSI driver.
const KeyVaultExtensionName = "akvsecretsprovider"

// Config is the azure section derived from the configuration.
type Config struct {
	SubscriptionID     string
	ResourceGroup      string
	Location           string
	ClusterName        string
	KeyVaultName       string
	CustomLocationsOID string
	InstanceName       string
	KubeconfigPath     string

	ArcEnabled      bool
	CustomLocations bool
	KeyVaultCSI     bool
	AIOEnabled      bool

	PollInterval  time.Duration
	VerifyTimeout time.Duration
}

// ParseConfig derives the azure configuration.
func ParseConfig(cfg config.Configuration) *Config {
	az := cfg.Azure
	return &Config{
		SubscriptionID:     az.SubscriptionID,
		ResourceGroup:      az.ResourceGroup,
		Location:           az.Location,
		ClusterName:        az.ClusterName,
		KeyVaultName:       az.KeyVaultName,
		CustomLocationsOID: az.CustomLocationsOID,
		InstanceName:       cfg.InstanceName(),
		KubeconfigPath:     ports.ExpandPath(cfg.K3s.KubeconfigPath),
		ArcEnabled:         az.ArcEnabled,
		CustomLocations:    az.CustomLocations,
		KeyVaultCSI:        az.KeyVaultCSI,
		AIOEnabled:         az.AIOEnabled,
		PollInterval:       cfg.Deployment.PollInterval,
		VerifyTimeout:      cfg.Deployment.VerifyTimeout,
	}
}

// Extensions returns the CLI extensions the enabled features need.
func (c *Config) Extensions() []string {
	exts := []string{ExtensionConnectedK8s}
	if c.KeyVaultCSI || c.AIOEnabled {
		exts = append(exts, ExtensionK8sExtension)
	}
	if c.CustomLocations {
		exts = append(exts, ExtensionCustomLocation)
	}
	if c.AIOEnabled {
		exts = append(exts, ExtensionIoTOps)
	}
	return exts
}

func (c *Config) poll(ctx compiler.RunContext) compiler.PollOptions {
	return compiler.PollOptions{Interval: c.PollInterval, Timeout: c.VerifyTimeout, Clock: ctx.Clock()}
}
