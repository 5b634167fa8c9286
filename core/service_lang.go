package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pkt.systems/sessiond/internal/logx"
	"pkt.systems/sessiond/internal/lsframe"
	"pkt.systems/sessiond/schema"
)

// StartLangServerSession resolves the plugin, launches the server process,
// and starts the framing pumps.
func (s *service) StartLangServerSession(ctx context.Context, req schema.StartLangServerRequest) (schema.StartLangServerResponse, error) {
	if s.deps.Catalog == nil {
		return schema.StartLangServerResponse{}, errors.New("no plugin catalog configured")
	}

	var (
		spec schema.LaunchSpec
		err  error
	)
	switch {
	case req.PluginID != "":
		spec, err = s.deps.Catalog.Resolve(req.PluginID)
	case req.LanguageID != "":
		spec, err = s.deps.Catalog.ResolveForLanguage(req.LanguageID)
	default:
		err = fmt.Errorf("%w: plugin id or language id is required", schema.ErrInvalidRequest)
	}
	if err != nil {
		return schema.StartLangServerResponse{}, err
	}
	if !spec.Enabled {
		return schema.StartLangServerResponse{}, fmt.Errorf("%w: %s", schema.ErrPluginDisabled, spec.PluginID)
	}

	language := req.LanguageID
	if language == "" {
		if len(spec.LanguageIDs) == 0 {
			return schema.StartLangServerResponse{}, fmt.Errorf("%w: %s", schema.ErrNoLanguage, spec.PluginID)
		}
		language = spec.LanguageIDs[0]
	}

	workspace, err := canonicalWorkspace(req.WorkspacePath)
	if err != nil {
		return schema.StartLangServerResponse{}, err
	}

	id := newLangServerID()
	result, err := s.deps.LangLauncher.Launch(ctx, LangLaunchRequest{
		SessionID:     id,
		Spec:          spec,
		WorkspacePath: workspace,
	})
	if err != nil {
		return schema.StartLangServerResponse{}, fmt.Errorf("launch language server: %w", err)
	}

	log := logx.WithSessionPlugin(ctx, id, spec.PluginID)
	sess := newLangSession(id, spec.PluginID, language, result, log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = result.Handle.Kill()
		_ = result.Handle.Close()
		return schema.StartLangServerResponse{}, errors.New("service is closed")
	}
	s.langs[id] = sess
	s.mu.Unlock()

	s.pumps.Add(3)
	go func() {
		defer s.pumps.Done()
		s.langWriteLoop(sess)
	}()
	go func() {
		defer s.pumps.Done()
		s.langDiagnosticLoop(sess)
	}()
	go func() {
		defer s.pumps.Done()
		s.langReadLoop(sess)
		s.finishLang(sess)
	}()

	initOptions := req.InitializationOptions
	if len(initOptions) == 0 {
		initOptions = spec.InitializationOptions
	}

	log.Info("language server started", "language", language, "workspace", workspace,
		"sandboxed", result.Mapping != nil)
	return schema.StartLangServerResponse{
		SessionID:             id,
		PluginID:              spec.PluginID,
		LanguageID:            language,
		InitializationOptions: initOptions,
		ClientCapabilities:    req.ClientCapabilities,
		WorkspaceFolders:      req.WorkspaceFolders,
		PathMapping:           result.Mapping,
	}, nil
}

// canonicalWorkspace validates and symlink-resolves the workspace path.
func canonicalWorkspace(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", schema.ErrWorkspaceNotFound
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path), nil
	}
	return resolved, nil
}

// SendPayload validates the payload is a JSON value and queues it for the
// session's writer pump.
func (s *service) SendPayload(_ context.Context, req schema.SendPayloadRequest) error {
	if !json.Valid(req.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", schema.ErrInvalidRequest)
	}
	s.mu.Lock()
	sess, ok := s.langs[req.SessionID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrSessionNotFound, req.SessionID)
	}
	return sess.sendPayload(append([]byte(nil), req.Payload...))
}

// langWriteLoop owns stdin: it frames queued payloads onto the child.
func (s *service) langWriteLoop(sess *langSession) {
	writer := lsframe.NewWriter(sess.handle.Stdin())
	for {
		select {
		case <-sess.done:
			return
		case body := <-sess.writeCh:
			if err := writer.Write(body); err != nil {
				sess.log.Debug("language server stdin closed", "err", err)
				return
			}
		}
	}
}

// langReadLoop owns stdout: it decodes framed messages and broadcasts them.
// A malformed header block is logged and skipped; the reader resynchronizes
// on the next block. End of stream ends the session.
func (s *service) langReadLoop(sess *langSession) {
	reader := lsframe.NewReader(sess.handle.Stdout())
	for {
		body, err := reader.Next()
		if err != nil {
			var malformed *lsframe.MalformedError
			if errors.As(err, &malformed) {
				sess.log.Warn("language server frame skipped", "headers", malformed.Headers)
				continue
			}
			if !errors.Is(err, io.EOF) {
				sess.log.Warn("language server stdout", "err", err)
			}
			return
		}
		event := schema.LangServerMessageEvent{
			SessionID:  sess.id,
			PluginID:   sess.pluginID,
			LanguageID: sess.language,
			Body:       body,
		}
		s.emit(func(sink EventSink) { sink.OnLangServerMessage(event) })
	}
}

// langDiagnosticLoop owns stderr: each line becomes a diagnostic event.
func (s *service) langDiagnosticLoop(sess *langSession) {
	scanner := bufio.NewScanner(sess.handle.Stderr())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		event := schema.LangServerDiagnosticEvent{
			SessionID:  sess.id,
			PluginID:   sess.pluginID,
			LanguageID: sess.language,
			Data:       scanner.Text(),
		}
		s.emit(func(sink EventSink) { sink.OnLangServerDiagnostic(event) })
	}
}

// finishLang reaps the child, removes the session, and emits the exit
// event. Runs exactly once, on the stdout pump, after the stream drains.
func (s *service) finishLang(sess *langSession) {
	sess.stop()
	status, err := sess.handle.Wait()
	_ = sess.handle.Close()

	s.mu.Lock()
	delete(s.langs, sess.id)
	s.mu.Unlock()

	event := schema.LangServerExitEvent{
		SessionID:  sess.id,
		PluginID:   sess.pluginID,
		LanguageID: sess.language,
	}
	switch {
	case status.Signaled:
		sig := status.Signal
		event.Signal = &sig
	case err != nil:
		code := -1
		event.StatusCode = &code
	default:
		code := status.Code
		event.StatusCode = &code
	}
	s.emit(func(sink EventSink) { sink.OnLangServerExit(event) })
	sess.log.Info("language server exited", "code", status.Code, "signaled", status.Signaled)
}
