package host

import (
	"fmt"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/validation"
)

// BasePackages are installed on every node; later steps shell out to them.
var BasePackages = []string{"curl", "jq"}

// toolPackages maps an optional tool toggle to the apt package providing it.
var toolPackages = map[string]string{
	config.ToolMQTTClient: "mosquitto-clients",
	config.ToolSSH:        "openssh-server",
}

// PackageFor returns the apt package installed for an optional tool toggle.
func PackageFor(tool string) (string, bool) {
	pkg, ok := toolPackages[tool]
	return pkg, ok
}

// Config is the host section derived from the configuration.
type Config struct {
	SkipSystemUpdate bool
	Packages         []string
}

// ParseConfig derives the host configuration. Packages are base packages
// first, then tool packages in sorted tool order.
func ParseConfig(cfg config.Configuration) (*Config, error) {
	out := &Config{SkipSystemUpdate: cfg.Deployment.SkipSystemUpdate}

	seen := make(map[string]bool)
	add := func(pkg string) error {
		if seen[pkg] {
			return nil
		}
		if err := validation.ValidatePackageName(pkg); err != nil {
			return fmt.Errorf("package %q: %w", pkg, err)
		}
		seen[pkg] = true
		out.Packages = append(out.Packages, pkg)
		return nil
	}

	for _, pkg := range BasePackages {
		if err := add(pkg); err != nil {
			return nil, err
		}
	}
	for _, tool := range cfg.EnabledTools() {
		pkg, ok := toolPackages[tool]
		if !ok {
			continue
		}
		if err := add(pkg); err != nil {
			return nil, err
		}
	}
	return out, nil
}
