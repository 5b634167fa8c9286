// Package appconfig loads and validates the sessiond configuration file.
package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/sessiond/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	Listen        ListenConfig  `mapstructure:"listen" yaml:"listen"`
	Service       ServiceConfig `mapstructure:"service" yaml:"service"`
	Plugins       PluginsConfig `mapstructure:"plugins" yaml:"plugins"`
	Sandbox       SandboxConfig `mapstructure:"sandbox" yaml:"sandbox"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ListenConfig configures the event bridge listener.
type ListenConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ServiceConfig controls the session runtime.
type ServiceConfig struct {
	Shell           string `mapstructure:"shell" yaml:"shell"`
	BacklogCapacity int    `mapstructure:"backlog_capacity" yaml:"backlog_capacity"`
	ReadChunkSize   int    `mapstructure:"read_chunk_size" yaml:"read_chunk_size"`
	DefaultCols     int    `mapstructure:"default_cols" yaml:"default_cols"`
	DefaultRows     int    `mapstructure:"default_rows" yaml:"default_rows"`
}

// PluginsConfig configures the plugin directories.
type PluginsConfig struct {
	UserDirs    []string `mapstructure:"user_dirs" yaml:"user_dirs"`
	BuiltInDirs []string `mapstructure:"builtin_dirs" yaml:"builtin_dirs"`
	Watch       bool     `mapstructure:"watch" yaml:"watch"`
}

// SandboxConfig configures the launch sandbox.
type SandboxConfig struct {
	Policy  string `mapstructure:"policy" yaml:"policy"`
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	base := filepath.Join(home, ".sessiond")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Listen: ListenConfig{
			Addr: "127.0.0.1:7820",
		},
		Service: ServiceConfig{
			BacklogCapacity: schema.DefaultBacklogCapacity,
			ReadChunkSize:   schema.DefaultReadChunkSize,
			DefaultCols:     80,
			DefaultRows:     24,
		},
		Plugins: PluginsConfig{
			UserDirs:    []string{filepath.Join(base, "plugins")},
			BuiltInDirs: []string{"/usr/share/sessiond/plugins"},
			Watch:       true,
		},
		Sandbox: SandboxConfig{
			Policy:  string(schema.SandboxNever),
			BaseDir: filepath.Join(base, "sandbox"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}, nil
}

// DefaultConfigPath returns the conventional config location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sessiond", "config.yaml"), nil
}
