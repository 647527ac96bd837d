package tools

import (
	"time"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
)

// HostKeyPath is the public host key the node identity is derived from.
const HostKeyPath = "/etc/ssh/ssh_host_ed25519_key.pub"

// SSHServiceName is the systemd unit of the OpenSSH server on Debian hosts.
const SSHServiceName = "ssh"

// Tool describes a binary installed by script and probed by its version.
type Tool struct {
	Name       string
	VersionCmd []string
	MinVersion string
	Install    string
	DocLink    string
}

// Catalog lists the binary tools the provider installs, keyed by toggle.
var Catalog = map[string]Tool{
	config.ToolHelm: {
		Name:       "helm",
		VersionCmd: []string{"helm", "version", "--short"},
		MinVersion: "v3.0.0",
		Install:    "curl -fsSL https://raw.githubusercontent.com/helm/helm/main/scripts/get-helm-3 | bash",
		DocLink:    "https://helm.sh/docs/intro/install/",
	},
	config.ToolK9s: {
		Name:       "k9s",
		VersionCmd: []string{"k9s", "version", "--short"},
		Install: "arch=$(dpkg --print-architecture) && " +
			"curl -fsSL -o /tmp/k9s.deb https://github.com/derailed/k9s/releases/latest/download/k9s_linux_${arch}.deb && " +
			"apt-get install -y /tmp/k9s.deb && rm -f /tmp/k9s.deb",
		DocLink: "https://k9scli.io/topics/install/",
	},
}

// Config is the tools section derived from the configuration.
type Config struct {
	Binaries      []Tool
	SSH           bool
	PollInterval  time.Duration
	VerifyTimeout time.Duration
}

// ParseConfig derives the tools configuration. Binaries follow sorted
// toggle order.
func ParseConfig(cfg config.Configuration) *Config {
	out := &Config{
		SSH:           cfg.ToolEnabled(config.ToolSSH),
		PollInterval:  cfg.Deployment.PollInterval,
		VerifyTimeout: cfg.Deployment.VerifyTimeout,
	}
	for _, name := range cfg.EnabledTools() {
		if tool, ok := Catalog[name]; ok {
			out.Binaries = append(out.Binaries, tool)
		}
	}
	return out
}
