package schema

import "errors"

// SandboxPolicy selects how sessions are launched.
type SandboxPolicy string

const (
	// SandboxNever launches children directly on the host. A manifest with
	// forceSandbox still uses the sandbox.
	SandboxNever SandboxPolicy = "never"
	// SandboxAlways wraps every launch in the sandbox supervisor. Used on
	// platforms that forbid direct process execution.
	SandboxAlways SandboxPolicy = "always"
)

// DefaultBacklogCapacity is the default per-session output backlog, in
// records.
const DefaultBacklogCapacity = 1000

// DefaultReadChunkSize is the default shell output read size, in bytes.
const DefaultReadChunkSize = 4096

// ServiceConfig defines defaults and limits for the session runtime.
type ServiceConfig struct {
	// Shell is the program spawned for shell sessions. Empty means $SHELL,
	// falling back to /bin/sh.
	Shell string
	// BacklogCapacity bounds the per-session output backlog retained for
	// replay; the oldest records are evicted.
	BacklogCapacity int
	// ReadChunkSize is the shell reader pump's chunk size.
	ReadChunkSize int
	// DefaultCols and DefaultRows size a new pseudo-terminal before the
	// first resize request.
	DefaultCols uint16
	DefaultRows uint16
	// Sandbox selects the launch strategy.
	Sandbox SandboxPolicy
}

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.BacklogCapacity <= 0 {
		cfg.BacklogCapacity = DefaultBacklogCapacity
	}
	if cfg.ReadChunkSize <= 0 {
		cfg.ReadChunkSize = DefaultReadChunkSize
	}
	if cfg.DefaultCols == 0 {
		cfg.DefaultCols = 80
	}
	if cfg.DefaultRows == 0 {
		cfg.DefaultRows = 24
	}
	switch cfg.Sandbox {
	case "":
		cfg.Sandbox = SandboxNever
	case SandboxNever, SandboxAlways:
	default:
		return ServiceConfig{}, errors.New("sandbox policy must be never or always")
	}
	return cfg, nil
}
