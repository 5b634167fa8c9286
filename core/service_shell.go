package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/sessiond/internal/logx"
	"pkt.systems/sessiond/schema"
)

// StartShellSession starts a shell in req.Cwd, or returns a live session
// already rooted there unless ForceNew is set.
func (s *service) StartShellSession(ctx context.Context, req schema.StartShellRequest) (schema.StartShellResponse, error) {
	cwd, err := canonicalDir(req.Cwd)
	if err != nil {
		return schema.StartShellResponse{}, err
	}

	if !req.ForceNew {
		if sess := s.liveShellForCwd(cwd); sess != nil {
			logx.WithSession(ctx, sess.id).Debug("shell session reused", "cwd", cwd)
			return schema.StartShellResponse{SessionID: sess.id}, nil
		}
	}

	id := s.ids.Next()
	handle, err := s.deps.ShellLauncher.Launch(ctx, ShellLaunchRequest{
		SessionID: id,
		Cwd:       cwd,
		Cols:      s.cfg.DefaultCols,
		Rows:      s.cfg.DefaultRows,
	})
	if err != nil {
		return schema.StartShellResponse{}, fmt.Errorf("launch shell: %w", err)
	}

	log := logx.WithSession(ctx, id)
	sess := newShellSession(id, cwd, handle, s.cfg.BacklogCapacity, log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = handle.Kill()
		_ = handle.Close()
		return schema.StartShellResponse{}, errors.New("service is closed")
	}
	s.shells[id] = sess
	s.mu.Unlock()

	s.cwdMu.Lock()
	s.cwdIndex[cwd] = append(s.cwdIndex[cwd], id)
	s.cwdMu.Unlock()

	s.pumps.Add(2)
	go func() {
		defer s.pumps.Done()
		sess.writerPump()
	}()
	go func() {
		defer s.pumps.Done()
		s.shellReadLoop(sess)
		s.finishShell(sess)
	}()

	log.Info("shell session started", "cwd", cwd)
	return schema.StartShellResponse{SessionID: id}, nil
}

// liveShellForCwd returns a running session rooted at cwd, pruning dead
// index entries on the way.
func (s *service) liveShellForCwd(cwd string) *shellSession {
	s.cwdMu.Lock()
	ids := append([]schema.SessionID(nil), s.cwdIndex[cwd]...)
	s.cwdMu.Unlock()

	var live *shellSession
	kept := ids[:0]
	s.mu.Lock()
	for _, id := range ids {
		if sess, ok := s.shells[id]; ok {
			kept = append(kept, id)
			if live == nil {
				live = sess
			}
		}
	}
	s.mu.Unlock()

	s.cwdMu.Lock()
	if len(kept) == 0 {
		delete(s.cwdIndex, cwd)
	} else {
		s.cwdIndex[cwd] = append([]schema.SessionID(nil), kept...)
	}
	s.cwdMu.Unlock()
	return live
}

// ListShellSessions lists live sessions rooted at req.Cwd.
func (s *service) ListShellSessions(_ context.Context, req schema.ListShellRequest) (schema.ListShellResponse, error) {
	cwd, err := canonicalDir(req.Cwd)
	if err != nil {
		return schema.ListShellResponse{}, err
	}

	s.cwdMu.Lock()
	ids := append([]schema.SessionID(nil), s.cwdIndex[cwd]...)
	s.cwdMu.Unlock()

	infos := make([]schema.ShellSessionInfo, 0, len(ids))
	s.mu.Lock()
	sessions := make([]*shellSession, 0, len(ids))
	for _, id := range ids {
		if sess, ok := s.shells[id]; ok {
			sessions = append(sessions, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		infos = append(infos, sess.info())
	}
	return schema.ListShellResponse{Sessions: infos}, nil
}

func (s *service) shell(id schema.SessionID) (*shellSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.shells[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrSessionNotFound, id)
	}
	return sess, nil
}

// SendInput queues bytes for the session's input stream.
func (s *service) SendInput(_ context.Context, req schema.SendInputRequest) error {
	sess, err := s.shell(req.SessionID)
	if err != nil {
		return err
	}
	return sess.sendInput([]byte(req.Input))
}

// Attach registers the subscriber and returns the backlog snapshot.
func (s *service) Attach(_ context.Context, req schema.AttachRequest) (schema.AttachResponse, error) {
	sess, err := s.shell(req.SessionID)
	if err != nil {
		return schema.AttachResponse{}, err
	}
	return schema.AttachResponse{Backlog: sess.attach(req.Subscriber)}, nil
}

// Detach removes the subscriber. Unknown sessions and subscribers are
// no-ops.
func (s *service) Detach(_ context.Context, req schema.DetachRequest) error {
	sess, err := s.shell(req.SessionID)
	if err != nil {
		return nil
	}
	sess.detach(req.Subscriber)
	return nil
}

// Resize changes the terminal dimensions.
func (s *service) Resize(_ context.Context, req schema.ResizeRequest) error {
	sess, err := s.shell(req.SessionID)
	if err != nil {
		return err
	}
	return sess.handle.Resize(req.Cols, req.Rows)
}

// SetTitle sets or clears the session title.
func (s *service) SetTitle(_ context.Context, req schema.SetTitleRequest) error {
	sess, err := s.shell(req.SessionID)
	if err != nil {
		return err
	}
	sess.setTitle(req.Title)
	return nil
}

// shellReadLoop owns the output stream: it publishes each chunk and fans it
// out to the subscribers captured with the record's sequence number.
func (s *service) shellReadLoop(sess *shellSession) {
	buf := make([]byte, s.cfg.ReadChunkSize)
	out := sess.handle.Output()
	for {
		n, err := out.Read(buf)
		if n > 0 {
			record, subs := sess.publish(string(buf[:n]))
			for _, sub := range subs {
				event := schema.ShellOutputEvent{SessionID: sess.id, Subscriber: sub, Record: record}
				s.emit(func(sink EventSink) { sink.OnShellOutput(event) })
			}
		}
		if err != nil {
			return
		}
	}
}

// finishShell reaps the child and removes the session. Runs exactly once,
// on the reader pump goroutine, after the output stream drains.
func (s *service) finishShell(sess *shellSession) {
	sess.stop()
	status, err := sess.handle.Wait()
	if err != nil {
		sess.log.Debug("shell wait", "err", err)
	}
	_ = sess.handle.Close()

	s.mu.Lock()
	delete(s.shells, sess.id)
	s.mu.Unlock()

	s.cwdMu.Lock()
	ids := s.cwdIndex[sess.cwd]
	kept := ids[:0]
	for _, id := range ids {
		if id != sess.id {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(s.cwdIndex, sess.cwd)
	} else {
		s.cwdIndex[sess.cwd] = kept
	}
	s.cwdMu.Unlock()

	sess.mu.Lock()
	sess.state = schema.StateTerminated
	sess.mu.Unlock()

	sess.log.Info("shell session ended", "code", status.Code, "signaled", status.Signaled)
}
