package wsbridge

import "encoding/json"

// Message type tags on the wire.
const (
	// TypeHello is sent once per connection and carries the subscriber id
	// the bridge assigned to this client.
	TypeHello = "hello"
	// TypeResult answers one request.
	TypeResult = "result"
	// TypeEvent pushes a session event.
	TypeEvent = "event"
)

// Request operations.
const (
	OpShellStart  = "shell.start"
	OpShellList   = "shell.list"
	OpShellInput  = "shell.input"
	OpShellAttach = "shell.attach"
	OpShellDetach = "shell.detach"
	OpShellResize = "shell.resize"
	OpShellTitle  = "shell.set_title"
	OpSessionStop = "session.stop"
	OpLangStart   = "lsp.start"
	OpLangPayload = "lsp.payload"
)

// Event names pushed by the bridge.
const (
	EventShellOutput    = "shell.output"
	EventLangMessage    = "lsp.message"
	EventLangDiagnostic = "lsp.diagnostic"
	EventLangExit       = "lsp.exit"
	EventPluginsUpdated = "plugins.updated"
)

// Request is one client request.
type Request struct {
	ID      string          `json:"id,omitempty"`
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers one request. Result is set on success, Error otherwise.
type Response struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Hello announces the connection's subscriber id.
type Hello struct {
	Type       string `json:"type"`
	Subscriber string `json:"subscriber"`
}

// Event pushes one session event to the client.
type Event struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}
