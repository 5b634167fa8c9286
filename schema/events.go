package schema

import "encoding/json"

// ShellOutputEvent carries one output record to a single subscriber of a
// shell session. Delivery is fire-and-forget.
type ShellOutputEvent struct {
	SessionID  SessionID    `json:"sessionId"`
	Subscriber SubscriberID `json:"-"`
	Record     OutputRecord `json:"record"`
}

// LangServerMessageEvent is one decoded JSON-RPC message from a language
// server, broadcast to the originating caller.
type LangServerMessageEvent struct {
	SessionID  SessionID       `json:"sessionId"`
	PluginID   PluginID        `json:"pluginId"`
	LanguageID LanguageID      `json:"languageId"`
	Body       json.RawMessage `json:"body"`
}

// LangServerDiagnosticEvent is one line of a language server's diagnostic
// stream.
type LangServerDiagnosticEvent struct {
	SessionID  SessionID  `json:"sessionId"`
	PluginID   PluginID   `json:"pluginId"`
	LanguageID LanguageID `json:"languageId"`
	Data       string     `json:"data"`
}

// LangServerExitEvent reports the terminal status of a language-server
// session. StatusCode is nil when the process was killed by a signal on
// platforms that expose it.
type LangServerExitEvent struct {
	SessionID  SessionID  `json:"sessionId"`
	PluginID   PluginID   `json:"pluginId"`
	LanguageID LanguageID `json:"languageId"`
	StatusCode *int       `json:"statusCode"`
	Signal     *int       `json:"signal"`
}

// PluginsUpdatedEvent reports a refreshed plugin catalog.
type PluginsUpdatedEvent struct {
	Plugins []PluginInfo `json:"plugins"`
}

// PluginInfo is a transport-friendly description of an installed plugin.
type PluginInfo struct {
	ID          PluginID     `json:"id"`
	Name        string       `json:"name"`
	Version     string       `json:"version"`
	Enabled     bool         `json:"enabled"`
	LanguageIDs []LanguageID `json:"languageIds"`
}
