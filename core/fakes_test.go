package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"pkt.systems/sessiond/schema"
)

// captureSink buffers events on channels so tests can wait for async
// delivery from the pump goroutines.
type captureSink struct {
	shellOut chan schema.ShellOutputEvent
	messages chan schema.LangServerMessageEvent
	diags    chan schema.LangServerDiagnosticEvent
	exits    chan schema.LangServerExitEvent
	plugins  chan schema.PluginsUpdatedEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{
		shellOut: make(chan schema.ShellOutputEvent, 256),
		messages: make(chan schema.LangServerMessageEvent, 256),
		diags:    make(chan schema.LangServerDiagnosticEvent, 256),
		exits:    make(chan schema.LangServerExitEvent, 16),
		plugins:  make(chan schema.PluginsUpdatedEvent, 16),
	}
}

func (s *captureSink) OnShellOutput(e schema.ShellOutputEvent)             { s.shellOut <- e }
func (s *captureSink) OnLangServerMessage(e schema.LangServerMessageEvent) { s.messages <- e }
func (s *captureSink) OnLangServerDiagnostic(e schema.LangServerDiagnosticEvent) {
	s.diags <- e
}
func (s *captureSink) OnLangServerExit(e schema.LangServerExitEvent) { s.exits <- e }
func (s *captureSink) OnPluginsUpdated(e schema.PluginsUpdatedEvent) { s.plugins <- e }

func waitShellOutput(t *testing.T, sink *captureSink) schema.ShellOutputEvent {
	t.Helper()
	select {
	case e := <-sink.shellOut:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for shell output event")
		return schema.ShellOutputEvent{}
	}
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// fakeShellHandle emulates a PTY-backed shell. Output chunks arrive exactly
// as queued by emit, so tests control record boundaries.
type fakeShellHandle struct {
	outCh    chan []byte
	killed   chan struct{}
	killOnce sync.Once

	mu      sync.Mutex
	input   bytes.Buffer
	cols    uint16
	rows    uint16
	resizes int
}

func newFakeShellHandle() *fakeShellHandle {
	return &fakeShellHandle{
		outCh:  make(chan []byte, 64),
		killed: make(chan struct{}),
	}
}

func (h *fakeShellHandle) emit(data string) { h.outCh <- []byte(data) }

func (h *fakeShellHandle) Output() io.Reader { return fakeShellOutput{h} }

type fakeShellOutput struct{ h *fakeShellHandle }

func (o fakeShellOutput) Read(p []byte) (int, error) {
	select {
	case chunk := <-o.h.outCh:
		return copy(p, chunk), nil
	case <-o.h.killed:
		// Drain chunks queued before the kill.
		select {
		case chunk := <-o.h.outCh:
			return copy(p, chunk), nil
		default:
			return 0, io.EOF
		}
	}
}

func (h *fakeShellHandle) Input() io.Writer { return fakeShellInput{h} }

type fakeShellInput struct{ h *fakeShellHandle }

func (i fakeShellInput) Write(p []byte) (int, error) {
	i.h.mu.Lock()
	defer i.h.mu.Unlock()
	return i.h.input.Write(p)
}

func (h *fakeShellHandle) inputString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.input.String()
}

func (h *fakeShellHandle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cols, h.rows = cols, rows
	h.resizes++
	return nil
}

func (h *fakeShellHandle) Kill() error {
	h.killOnce.Do(func() { close(h.killed) })
	return nil
}

func (h *fakeShellHandle) Wait() (ExitStatus, error) {
	<-h.killed
	return ExitStatus{Code: 0}, nil
}

func (h *fakeShellHandle) Close() error { return nil }

type fakeShellLauncher struct {
	mu       sync.Mutex
	launches int
	handles  []*fakeShellHandle
	requests []ShellLaunchRequest
}

func (l *fakeShellLauncher) Launch(_ context.Context, req ShellLaunchRequest) (ShellHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := newFakeShellHandle()
	l.launches++
	l.handles = append(l.handles, h)
	l.requests = append(l.requests, req)
	return h, nil
}

func (l *fakeShellLauncher) launchCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

func (l *fakeShellLauncher) handle(i int) *fakeShellHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

// fakeLangHandle emulates a piped language-server child.
type fakeLangHandle struct {
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	killed   chan struct{}
	killOnce sync.Once
	status   ExitStatus

	mu    sync.Mutex
	stdin bytes.Buffer
}

func newFakeLangHandle() *fakeLangHandle {
	h := &fakeLangHandle{killed: make(chan struct{})}
	h.stdoutR, h.stdoutW = io.Pipe()
	h.stderrR, h.stderrW = io.Pipe()
	return h
}

func (h *fakeLangHandle) Stdin() io.Writer { return fakeLangStdin{h} }

type fakeLangStdin struct{ h *fakeLangHandle }

func (w fakeLangStdin) Write(p []byte) (int, error) {
	w.h.mu.Lock()
	defer w.h.mu.Unlock()
	return w.h.stdin.Write(p)
}

func (h *fakeLangHandle) stdinString() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stdin.String()
}

func (h *fakeLangHandle) Stdout() io.Reader { return h.stdoutR }
func (h *fakeLangHandle) Stderr() io.Reader { return h.stderrR }

func (h *fakeLangHandle) Kill() error {
	h.killOnce.Do(func() {
		close(h.killed)
		h.stdoutW.Close()
		h.stderrW.Close()
	})
	return nil
}

func (h *fakeLangHandle) Wait() (ExitStatus, error) {
	<-h.killed
	return h.status, nil
}

func (h *fakeLangHandle) Close() error { return nil }

type fakeLangLauncher struct {
	mu       sync.Mutex
	handles  []*fakeLangHandle
	requests []LangLaunchRequest
	mapping  *schema.PathMapping
	err      error
}

func (l *fakeLangLauncher) Launch(_ context.Context, req LangLaunchRequest) (LangLaunchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return LangLaunchResult{}, l.err
	}
	h := newFakeLangHandle()
	l.handles = append(l.handles, h)
	l.requests = append(l.requests, req)
	return LangLaunchResult{Handle: h, Mapping: l.mapping}, nil
}

func (l *fakeLangLauncher) handle(i int) *fakeLangHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handles[i]
}

type fakeCatalog struct {
	specs map[schema.PluginID]schema.LaunchSpec
}

func (c *fakeCatalog) Resolve(id schema.PluginID) (schema.LaunchSpec, error) {
	spec, ok := c.specs[id]
	if !ok {
		return schema.LaunchSpec{}, fmt.Errorf("%w: %s", schema.ErrPluginNotFound, id)
	}
	return spec, nil
}

func (c *fakeCatalog) ResolveForLanguage(language schema.LanguageID) (schema.LaunchSpec, error) {
	for _, spec := range c.specs {
		for _, id := range spec.LanguageIDs {
			if id == language {
				return spec, nil
			}
		}
	}
	return schema.LaunchSpec{}, fmt.Errorf("%w: no plugin for language %s", schema.ErrPluginNotFound, language)
}
