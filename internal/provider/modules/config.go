package modules

import (
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/edgeprov/internal/domain/config"
	"github.com/felixgeelhaar/edgeprov/internal/ports"
)

// Config is the modules section derived from the configuration.
type Config struct {
	Names          []string
	Dir            string
	Namespace      string
	KubeconfigPath string
	VerifyTimeout  time.Duration
}

// ParseConfig derives the modules configuration.
func ParseConfig(cfg config.Configuration) *Config {
	return &Config{
		Names:          cfg.EnabledModules(),
		Dir:            ports.ExpandPath(cfg.Deployment.ModulesDir),
		Namespace:      cfg.Deployment.ModulesNamespace,
		KubeconfigPath: ports.ExpandPath(cfg.K3s.KubeconfigPath),
		VerifyTimeout:  cfg.Deployment.VerifyTimeout,
	}
}

// ManifestDir returns the directory holding a module's manifests.
func (c *Config) ManifestDir(name string) string {
	return filepath.Join(c.Dir, name)
}
