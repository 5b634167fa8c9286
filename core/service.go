package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/schema"
)

type service struct {
	cfg    schema.ServiceConfig
	deps   ServiceDeps
	logger pslog.Logger
	ids    shellIDs

	// mu guards the session tables and the closed flag. It is never held
	// across blocking I/O or child-process calls.
	mu     sync.Mutex
	shells map[schema.SessionID]*shellSession
	langs  map[schema.SessionID]*langSession
	closed bool

	// cwdMu guards the working-directory index used for session reuse.
	cwdMu    sync.Mutex
	cwdIndex map[string][]schema.SessionID

	pumps sync.WaitGroup
}

// NewService constructs the session runtime.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	cfg, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.ShellLauncher == nil {
		return nil, errors.New("shell launcher is required")
	}
	if deps.LangLauncher == nil {
		return nil, errors.New("language-server launcher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		shells:   make(map[schema.SessionID]*shellSession),
		langs:    make(map[schema.SessionID]*langSession),
		cwdIndex: make(map[string][]schema.SessionID),
	}, nil
}

// canonicalDir validates that dir exists, is a directory, and returns its
// symlink-resolved form so differently spelled paths index the same entry.
func canonicalDir(dir string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", schema.ErrWorkingDirNotFound
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return filepath.Clean(dir), nil
	}
	return resolved, nil
}

func (s *service) emit(fn func(EventSink)) {
	if s.deps.EventSink != nil {
		fn(s.deps.EventSink)
	}
}

// StopSession stops a shell or language-server session. Unknown ids succeed.
func (s *service) StopSession(_ context.Context, req schema.StopSessionRequest) error {
	s.mu.Lock()
	shell := s.shells[req.SessionID]
	lang := s.langs[req.SessionID]
	s.mu.Unlock()

	switch {
	case shell != nil:
		shell.stop()
	case lang != nil:
		lang.stop()
	}
	return nil
}

// Close stops every session and waits for the pumps, bounded by ctx.
func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	shells := make([]*shellSession, 0, len(s.shells))
	for _, sess := range s.shells {
		shells = append(shells, sess)
	}
	langs := make([]*langSession, 0, len(s.langs))
	for _, sess := range s.langs {
		langs = append(langs, sess)
	}
	s.mu.Unlock()

	for _, sess := range shells {
		sess.stop()
	}
	for _, sess := range langs {
		sess.stop()
	}

	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
