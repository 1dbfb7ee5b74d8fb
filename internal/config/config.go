package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rzbill/rollq/internal/rollcycle"
)

// Backend names for segment storage.
const (
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// DataDir holds segments (file backend) or the pebble database.
	// Empty means the OS-appropriate default, see DefaultDataDir.
	DataDir string `json:"dataDir" yaml:"dataDir"`

	// Backend selects segment storage: "file" or "pebble".
	Backend string `json:"backend" yaml:"backend"`

	// Policy is the roll policy name from the catalog.
	Policy string `json:"policy" yaml:"policy"`

	// EpochMillis offsets cycle numbering from the Unix epoch.
	EpochMillis int64 `json:"epochMillis" yaml:"epochMillis"`

	// Codec transforms payloads: "plain" or "snappy".
	Codec string `json:"codec" yaml:"codec"`

	// Fsync controls durability for the pebble backend: "always",
	// "interval" or "never".
	Fsync string `json:"fsync" yaml:"fsync"`

	// HTTPAddr is the listen address for the HTTP API.
	HTTPAddr string `json:"httpAddr" yaml:"httpAddr"`

	// ReadOnly opens the store without taking the writer lock; appends
	// are refused.
	ReadOnly bool `json:"readOnly" yaml:"readOnly"`

	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Backend:   BackendFile,
		Policy:    rollcycle.DefaultPolicyName,
		Codec:     "plain",
		Fsync:     "always",
		HTTPAddr:  ":8487",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads configuration from a JSON or YAML file (by extension), layered
// over the defaults. An empty path returns the defaults untouched.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate rejects unknown backend, policy, codec and fsync names.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendPebble:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if _, ok := rollcycle.NewCatalog().ByName(c.Policy); !ok {
		return fmt.Errorf("config: unknown policy %q", c.Policy)
	}
	switch c.Codec {
	case "", "plain", "snappy":
	default:
		return fmt.Errorf("config: unknown codec %q", c.Codec)
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		return fmt.Errorf("config: unknown fsync mode %q", c.Fsync)
	}
	return nil
}
