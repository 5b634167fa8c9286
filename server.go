// Package sessiond composes the session runtime, the plugin registry, and
// the WebSocket bridge into a runnable server.
package sessiond

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/core"
	"pkt.systems/sessiond/internal/langproc"
	"pkt.systems/sessiond/internal/plugin"
	"pkt.systems/sessiond/internal/sandbox"
	"pkt.systems/sessiond/internal/shellpty"
	"pkt.systems/sessiond/schema"
	"pkt.systems/sessiond/wsbridge"
)

// Server runs the session runtime behind its WebSocket bridge.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	// Addr is the bridge listen address.
	Addr string
	// Service configures the session runtime.
	Service schema.ServiceConfig
	// PluginDirs are the scan roots for installed plugins.
	PluginDirs plugin.Directories
	// WatchPlugins keeps the registry in sync with the directories.
	WatchPlugins bool
	// SandboxBaseDir is the root of the provisioned sandbox layout.
	SandboxBaseDir string
}

// ServerDeps captures optional dependencies.
type ServerDeps struct {
	// EventSink receives session events in addition to the bridge.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// New constructs a sessiond server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("listen address is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	registry := plugin.NewRegistry(cfg.PluginDirs, logger)
	if err := registry.Refresh(); err != nil {
		return nil, err
	}

	resolver := sandbox.DirResolver{BaseDir: cfg.SandboxBaseDir}
	fan := &eventFanout{}

	svc, err := core.NewService(cfg.Service, core.ServiceDeps{
		ShellLauncher: shellpty.NewLauncher(shellpty.Config{
			Shell:    cfg.Service.Shell,
			Policy:   cfg.Service.Sandbox,
			Resolver: resolver,
		}),
		LangLauncher: langproc.NewLauncher(langproc.Config{
			Policy:   cfg.Service.Sandbox,
			Resolver: resolver,
		}),
		Catalog:   registry,
		EventSink: fan,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	bridge := wsbridge.NewServer(svc, logger)
	fan.add(bridge)
	fan.add(deps.EventSink)

	return &compositeServer{
		cfg:      cfg,
		svc:      svc,
		bridge:   bridge,
		registry: registry,
		fan:      fan,
		logger:   logger,
	}, nil
}

type compositeServer struct {
	cfg      ServerConfig
	svc      core.Service
	bridge   *wsbridge.Server
	registry *plugin.Registry
	fan      *eventFanout
	logger   pslog.Logger
	watcher  *plugin.Watcher

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.logger.Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.mu.Unlock()

	s.logger.Info("server start",
		"addr", s.cfg.Addr,
		"sandbox", s.cfg.Service.Sandbox,
		"plugins", len(s.registry.All()),
		"watch_plugins", s.cfg.WatchPlugins,
	)

	if s.cfg.WatchPlugins {
		watcher, err := plugin.NewWatcher(s.cfg.PluginDirs, s.refreshPlugins, s.logger)
		if err != nil {
			s.logger.Warn("plugin watcher unavailable", "err", err)
		} else {
			s.watcher = watcher
		}
	}

	go func() {
		if err := wsbridge.ListenAndServe(s.ctx, s.cfg.Addr, s.bridge.Handler()); err != nil {
			s.logger.Error("bridge server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

// refreshPlugins rescans the directories and announces the new catalog.
func (s *compositeServer) refreshPlugins() {
	if err := s.registry.Refresh(); err != nil {
		s.logger.Warn("plugin refresh failed", "err", err)
		return
	}
	s.logger.Info("plugin catalog refreshed", "plugins", len(s.registry.All()))
	s.fan.OnPluginsUpdated(schema.PluginsUpdatedEvent{Plugins: s.registry.Infos()})
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			s.logger.Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	s.logger.Info("server stop requested")
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.svc.Close(ctx); err != nil {
		s.logger.Warn("session shutdown incomplete", "err", err)
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
