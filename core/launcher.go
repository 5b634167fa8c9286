package core

import (
	"context"
	"io"

	"pkt.systems/sessiond/schema"
)

// ShellLauncher spawns interactive shells behind a pseudo-terminal.
type ShellLauncher interface {
	Launch(ctx context.Context, req ShellLaunchRequest) (ShellHandle, error)
}

// ShellLaunchRequest describes one shell launch.
type ShellLaunchRequest struct {
	SessionID schema.SessionID
	Cwd       string
	Cols      uint16
	Rows      uint16
}

// ShellHandle exposes a running shell's terminal and lifecycle controls.
// Output and Input may be used concurrently; each is owned by a single
// pump goroutine.
type ShellHandle interface {
	Output() io.Reader
	Input() io.Writer
	Resize(cols, rows uint16) error
	Kill() error
	Wait() (ExitStatus, error)
	Close() error
}

// LangLauncher spawns language-server processes with piped standard streams.
type LangLauncher interface {
	Launch(ctx context.Context, req LangLaunchRequest) (LangLaunchResult, error)
}

// LangLaunchRequest describes one language-server launch.
type LangLaunchRequest struct {
	SessionID     schema.SessionID
	Spec          schema.LaunchSpec
	WorkspacePath string
}

// LangLaunchResult pairs a handle with the path mapping of a sandboxed
// launch. Mapping is nil for direct launches.
type LangLaunchResult struct {
	Handle  LangHandle
	Mapping *schema.PathMapping
}

// LangHandle exposes a language server's piped streams and lifecycle
// controls.
type LangHandle interface {
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() error
	Wait() (ExitStatus, error)
	Close() error
}

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	Code     int
	Signal   int
	Signaled bool
}

// PluginCatalog answers launch-spec lookups for installed plugins.
type PluginCatalog interface {
	Resolve(id schema.PluginID) (schema.LaunchSpec, error)
	ResolveForLanguage(language schema.LanguageID) (schema.LaunchSpec, error)
}
