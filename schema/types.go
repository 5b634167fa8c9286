package schema

import "encoding/json"

// SessionID identifies a hosted session (shell or language server).
type SessionID string

// PluginID identifies an installed language-server plugin.
type PluginID string

// LanguageID is a VSCode-style language identifier (e.g. "rust", "go").
type LanguageID string

// SubscriberID identifies a UI surface attached to a shell session.
type SubscriberID string

// SessionKind distinguishes the two session families.
type SessionKind string

const (
	// KindShell is an interactive shell behind a pseudo-terminal.
	KindShell SessionKind = "shell"
	// KindLangServer is a language server speaking framed JSON-RPC over pipes.
	KindLangServer SessionKind = "language-server"
)

// SessionState tracks the lifecycle of a session.
type SessionState string

const (
	// StateStarting means handles are obtained but pumps are not yet live.
	StateStarting SessionState = "starting"
	// StateRunning means the I/O pumps are active.
	StateRunning SessionState = "running"
	// StateStopping means a stop was requested and the process is being killed.
	StateStopping SessionState = "stopping"
	// StateTerminated means the session has been removed from the table.
	StateTerminated SessionState = "terminated"
)

// OutputRecord is one chunk of shell output with its sequence number.
// Sequence numbers are strictly increasing per session with no gaps.
type OutputRecord struct {
	Seq  uint64 `json:"seq"`
	Data string `json:"data"`
}

// ShellSessionInfo describes a live shell session.
type ShellSessionInfo struct {
	SessionID SessionID `json:"sessionId"`
	Cwd       string    `json:"cwd"`
	Title     string    `json:"title,omitempty"`
}

// PathMapping records host/guest path pairs for a sandboxed launch. It is
// consumed by callers to translate paths the remote process reports back.
type PathMapping struct {
	HostWorkspace  string `json:"hostWorkspace"`
	GuestWorkspace string `json:"guestWorkspace"`
	HostPlugin     string `json:"hostPlugin"`
	GuestPlugin    string `json:"guestPlugin"`
}

// LaunchSpec is the manifest-derived description of how to start a
// language-server process. It is read-only configuration owned by the
// plugin catalog, not by the session runtime.
type LaunchSpec struct {
	PluginID              PluginID
	RootDir               string
	Command               string
	Args                  []string
	Env                   map[string]string
	WorkingDir            string
	LanguageIDs           []LanguageID
	InitializationOptions json.RawMessage
	Enabled               bool
	ForceSandbox          bool
	PluginMountPath       string
	WorkspaceMountPath    string
}

// FileNodeKind classifies a file-tree entry.
type FileNodeKind string

const (
	// NodeFile is a regular file.
	NodeFile FileNodeKind = "file"
	// NodeFolder is a directory.
	NodeFolder FileNodeKind = "folder"
)

// FileNode is one entry of a tree-shaped directory listing. Paths are host
// paths until translated for a sandboxed consumer.
type FileNode struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	Kind     FileNodeKind `json:"type"`
	Children []FileNode   `json:"children,omitempty"`
}
