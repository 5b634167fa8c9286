package schema

import "encoding/json"

// Shell sessions.

// StartShellRequest describes a request to start (or reuse) a shell session.
type StartShellRequest struct {
	Cwd      string `json:"cwd"`
	ForceNew bool   `json:"forceNew"`
}

// StartShellResponse reports the started or reused session id.
type StartShellResponse struct {
	SessionID SessionID `json:"sessionId"`
}

// ListShellRequest describes a request to list shell sessions for a
// working directory.
type ListShellRequest struct {
	Cwd string `json:"cwd"`
}

// ListShellResponse reports the live sessions for the directory.
type ListShellResponse struct {
	Sessions []ShellSessionInfo `json:"sessions"`
}

// SendInputRequest carries bytes for a shell session's input stream.
type SendInputRequest struct {
	SessionID SessionID `json:"sessionId"`
	Input     string    `json:"input"`
}

// AttachRequest registers a subscriber on a shell session.
type AttachRequest struct {
	SessionID  SessionID    `json:"sessionId"`
	Subscriber SubscriberID `json:"subscriber"`
}

// AttachResponse returns the backlog snapshot for replay.
type AttachResponse struct {
	Backlog []OutputRecord `json:"backlog"`
}

// DetachRequest removes a subscriber from a shell session.
type DetachRequest struct {
	SessionID  SessionID    `json:"sessionId"`
	Subscriber SubscriberID `json:"subscriber"`
}

// ResizeRequest resizes a shell session's pseudo-terminal.
type ResizeRequest struct {
	SessionID SessionID `json:"sessionId"`
	Cols      uint16    `json:"cols"`
	Rows      uint16    `json:"rows"`
}

// SetTitleRequest sets or clears the human title of a shell session.
type SetTitleRequest struct {
	SessionID SessionID `json:"sessionId"`
	Title     string    `json:"title"`
}

// StopSessionRequest stops a session of either kind. Stopping an unknown or
// already-stopped session is a no-op.
type StopSessionRequest struct {
	SessionID SessionID `json:"sessionId"`
}

// Language-server sessions.

// StartLangServerRequest describes a request to start a language-server
// session from an installed plugin.
type StartLangServerRequest struct {
	PluginID              PluginID        `json:"pluginId"`
	LanguageID            LanguageID      `json:"languageId,omitempty"`
	WorkspacePath         string          `json:"workspacePath"`
	ClientCapabilities    json.RawMessage `json:"clientCapabilities,omitempty"`
	WorkspaceFolders      json.RawMessage `json:"workspaceFolders,omitempty"`
	InitializationOptions json.RawMessage `json:"initializationOptions,omitempty"`
}

// StartLangServerResponse echoes the negotiated session parameters back to
// the caller. InitializationOptions falls back to the manifest's when the
// request carried none. PathMapping is present only for sandboxed launches.
type StartLangServerResponse struct {
	SessionID             SessionID       `json:"sessionId"`
	PluginID              PluginID        `json:"pluginId"`
	LanguageID            LanguageID      `json:"languageId"`
	InitializationOptions json.RawMessage `json:"initializationOptions,omitempty"`
	ClientCapabilities    json.RawMessage `json:"clientCapabilities,omitempty"`
	WorkspaceFolders      json.RawMessage `json:"workspaceFolders,omitempty"`
	PathMapping           *PathMapping    `json:"pathMapping,omitempty"`
}

// SendPayloadRequest carries one JSON-RPC value to a language-server session.
type SendPayloadRequest struct {
	SessionID SessionID       `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}
