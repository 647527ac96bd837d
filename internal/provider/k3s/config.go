package k3s

import (
	"time"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Paths and endpoints used by the K3s installer.
const (
	InstallScriptURL = "https://get.k3s.io"
	ServiceName      = "k3s"
	SourceKubeconfig = "/etc/rancher/k3s/k3s.yaml"
)

// Config is the k3s section derived from the configuration.
type Config struct {
	Version        string
	InstallArgs    []string
	KubeconfigPath string
	ClusterName    string
	PollInterval   time.Duration
	VerifyTimeout  time.Duration
}

// ParseConfig derives the k3s configuration with the kubeconfig path
// expanded. The document has already been validated by the loader.
func ParseConfig(cfg config.Configuration) *Config {
	return &Config{
		Version:        cfg.K3s.Version,
		InstallArgs:    append([]string(nil), cfg.K3s.InstallArgs...),
		KubeconfigPath: ports.ExpandPath(cfg.K3s.KubeconfigPath),
		ClusterName:    cfg.Azure.ClusterName,
		PollInterval:   cfg.Deployment.PollInterval,
		VerifyTimeout:  cfg.Deployment.VerifyTimeout,
	}
}
