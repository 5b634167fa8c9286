package core

import "pkt.systems/pslog"

// ServiceDeps captures the dependencies of the session runtime. ShellLauncher
// and LangLauncher are required; the rest are optional.
type ServiceDeps struct {
	ShellLauncher ShellLauncher
	LangLauncher  LangLauncher
	Catalog       PluginCatalog
	EventSink     EventSink
	Logger        pslog.Logger
}
