package sessiond

import (
	"sync"

	"pkt.systems/sessiond/core"
	"pkt.systems/sessiond/schema"
)

// eventFanout multiplies session events over several sinks. Sinks may be
// added after the runtime is constructed, which breaks the construction
// cycle between the service and the bridge that subscribes to it.
type eventFanout struct {
	mu    sync.RWMutex
	sinks []core.EventSink
}

func (f *eventFanout) add(sink core.EventSink) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

func (f *eventFanout) snapshot() []core.EventSink {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]core.EventSink(nil), f.sinks...)
}

func (f *eventFanout) OnShellOutput(event schema.ShellOutputEvent) {
	for _, sink := range f.snapshot() {
		sink.OnShellOutput(event)
	}
}

func (f *eventFanout) OnLangServerMessage(event schema.LangServerMessageEvent) {
	for _, sink := range f.snapshot() {
		sink.OnLangServerMessage(event)
	}
}

func (f *eventFanout) OnLangServerDiagnostic(event schema.LangServerDiagnosticEvent) {
	for _, sink := range f.snapshot() {
		sink.OnLangServerDiagnostic(event)
	}
}

func (f *eventFanout) OnLangServerExit(event schema.LangServerExitEvent) {
	for _, sink := range f.snapshot() {
		sink.OnLangServerExit(event)
	}
}

func (f *eventFanout) OnPluginsUpdated(event schema.PluginsUpdatedEvent) {
	for _, sink := range f.snapshot() {
		sink.OnPluginsUpdated(event)
	}
}
