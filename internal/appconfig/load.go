package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/sessiond/schema"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("listen.addr", cfg.Listen.Addr)
	v.SetDefault("service.shell", cfg.Service.Shell)
	v.SetDefault("service.backlog_capacity", cfg.Service.BacklogCapacity)
	v.SetDefault("service.read_chunk_size", cfg.Service.ReadChunkSize)
	v.SetDefault("service.default_cols", cfg.Service.DefaultCols)
	v.SetDefault("service.default_rows", cfg.Service.DefaultRows)
	v.SetDefault("plugins.user_dirs", cfg.Plugins.UserDirs)
	v.SetDefault("plugins.builtin_dirs", cfg.Plugins.BuiltInDirs)
	v.SetDefault("plugins.watch", cfg.Plugins.Watch)
	v.SetDefault("sandbox.policy", cfg.Sandbox.Policy)
	v.SetDefault("sandbox.base_dir", cfg.Sandbox.BaseDir)
	v.SetDefault("logging.level", cfg.Logging.Level)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch schema.SandboxPolicy(cfg.Sandbox.Policy) {
	case schema.SandboxNever, schema.SandboxAlways:
	default:
		return fmt.Errorf("sandbox.policy must be %q or %q", schema.SandboxNever, schema.SandboxAlways)
	}
	if cfg.Service.BacklogCapacity < 0 {
		return fmt.Errorf("service.backlog_capacity must not be negative")
	}
	if cfg.Service.DefaultCols < 0 || cfg.Service.DefaultCols > 65535 ||
		cfg.Service.DefaultRows < 0 || cfg.Service.DefaultRows > 65535 {
		return fmt.Errorf("service.default_cols/default_rows must fit a terminal dimension")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Service.Shell = expandEnv(cfg.Service.Shell)
	cfg.Sandbox.BaseDir = expandEnv(cfg.Sandbox.BaseDir)
	for i, dir := range cfg.Plugins.UserDirs {
		cfg.Plugins.UserDirs[i] = expandEnv(dir)
	}
	for i, dir := range cfg.Plugins.BuiltInDirs {
		cfg.Plugins.BuiltInDirs[i] = expandEnv(dir)
	}
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// ServiceSchema converts the file-level service and sandbox sections into
// the runtime config.
func (c Config) ServiceSchema() schema.ServiceConfig {
	return schema.ServiceConfig{
		Shell:           c.Service.Shell,
		BacklogCapacity: c.Service.BacklogCapacity,
		ReadChunkSize:   c.Service.ReadChunkSize,
		DefaultCols:     uint16(c.Service.DefaultCols),
		DefaultRows:     uint16(c.Service.DefaultRows),
		Sandbox:         schema.SandboxPolicy(c.Sandbox.Policy),
	}
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
