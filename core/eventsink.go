package core

import "pkt.systems/sessiond/schema"

// EventSink receives session events from the runtime. Implementations must
// not block; delivery happens on session pump goroutines.
type EventSink interface {
	OnShellOutput(event schema.ShellOutputEvent)
	OnLangServerMessage(event schema.LangServerMessageEvent)
	OnLangServerDiagnostic(event schema.LangServerDiagnosticEvent)
	OnLangServerExit(event schema.LangServerExitEvent)
	OnPluginsUpdated(event schema.PluginsUpdatedEvent)
}
