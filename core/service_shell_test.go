package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/sessiond/schema"
)

func newShellTestService(t *testing.T, cfg schema.ServiceConfig) (Service, *fakeShellLauncher, *captureSink) {
	t.Helper()
	launcher := &fakeShellLauncher{}
	sink := newCaptureSink()
	svc, err := NewService(cfg, ServiceDeps{
		ShellLauncher: launcher,
		LangLauncher:  &fakeLangLauncher{},
		EventSink:     sink,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc, launcher, sink
}

func TestStartShellValidatesCwd(t *testing.T) {
	svc, _, _ := newShellTestService(t, schema.ServiceConfig{})
	_, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{
		Cwd: filepath.Join(t.TempDir(), "absent"),
	})
	if !errors.Is(err, schema.ErrWorkingDirNotFound) {
		t.Fatalf("expected ErrWorkingDirNotFound, got %v", err)
	}
}

func TestStartShellReusesSessionForCwd(t *testing.T) {
	svc, launcher, _ := newShellTestService(t, schema.ServiceConfig{})
	dir := t.TempDir()

	first, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("expected reuse, got %s and %s", first.SessionID, second.SessionID)
	}
	if launcher.launchCount() != 1 {
		t.Fatalf("expected a single launch, got %d", launcher.launchCount())
	}

	forced, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir, ForceNew: true})
	if err != nil {
		t.Fatalf("force new: %v", err)
	}
	if forced.SessionID == first.SessionID {
		t.Fatalf("forceNew must not reuse")
	}
	if launcher.launchCount() != 2 {
		t.Fatalf("expected two launches, got %d", launcher.launchCount())
	}
}

func TestStartShellDoesNotReuseAcrossDirectories(t *testing.T) {
	svc, launcher, _ := newShellTestService(t, schema.ServiceConfig{})

	a, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	b, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	if a.SessionID == b.SessionID || launcher.launchCount() != 2 {
		t.Fatalf("different directories must get different sessions")
	}
}

func TestSendInputReachesShell(t *testing.T) {
	svc, launcher, _ := newShellTestService(t, schema.ServiceConfig{})
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SendInput(context.Background(), schema.SendInputRequest{
		SessionID: resp.SessionID, Input: "ls -la\n",
	}); err != nil {
		t.Fatalf("send input: %v", err)
	}
	handle := launcher.handle(0)
	waitFor(t, "input to reach the pty", func() bool { return handle.inputString() == "ls -la\n" })
}

func TestSendInputUnknownSession(t *testing.T) {
	svc, _, _ := newShellTestService(t, schema.ServiceConfig{})
	err := svc.SendInput(context.Background(), schema.SendInputRequest{SessionID: "s99", Input: "x"})
	if !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAttachReplaysBacklogThenLiveContinues(t *testing.T) {
	svc, launcher, sink := newShellTestService(t, schema.ServiceConfig{})
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	handle := launcher.handle(0)

	handle.emit("one")
	handle.emit("two")
	handle.emit("three")
	waitFor(t, "backlog to fill", func() bool {
		attach, err := svc.Attach(context.Background(), schema.AttachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		_ = svc.Detach(context.Background(), schema.DetachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		return err == nil && len(attach.Backlog) == 3
	})

	attach, err := svc.Attach(context.Background(), schema.AttachRequest{
		SessionID: resp.SessionID, Subscriber: "ui-1",
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(attach.Backlog) != 3 {
		t.Fatalf("expected 3 backlog records, got %d", len(attach.Backlog))
	}
	for i, rec := range attach.Backlog {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("backlog seq gap at %d: %d", i, rec.Seq)
		}
	}

	handle.emit("four")
	event := waitShellOutput(t, sink)
	if event.Subscriber != "ui-1" || event.Record.Seq != 4 || event.Record.Data != "four" {
		t.Fatalf("unexpected live event %+v", event)
	}
}

func TestAttachUnknownSession(t *testing.T) {
	svc, _, _ := newShellTestService(t, schema.ServiceConfig{})
	_, err := svc.Attach(context.Background(), schema.AttachRequest{SessionID: "s404", Subscriber: "x"})
	if !errors.Is(err, schema.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	svc, launcher, sink := newShellTestService(t, schema.ServiceConfig{})
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	handle := launcher.handle(0)

	if _, err := svc.Attach(context.Background(), schema.AttachRequest{
		SessionID: resp.SessionID, Subscriber: "ui-1",
	}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	handle.emit("a")
	waitShellOutput(t, sink)

	if err := svc.Detach(context.Background(), schema.DetachRequest{
		SessionID: resp.SessionID, Subscriber: "ui-1",
	}); err != nil {
		t.Fatalf("detach: %v", err)
	}
	handle.emit("b")
	waitFor(t, "record b to land in the backlog", func() bool {
		attach, err := svc.Attach(context.Background(), schema.AttachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		_ = svc.Detach(context.Background(), schema.DetachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		return err == nil && len(attach.Backlog) == 2
	})
	select {
	case e := <-sink.shellOut:
		t.Fatalf("unexpected event after detach: %+v", e)
	default:
	}

	// Detaching again, or from an unknown session, is a no-op.
	if err := svc.Detach(context.Background(), schema.DetachRequest{
		SessionID: resp.SessionID, Subscriber: "ui-1",
	}); err != nil {
		t.Fatalf("repeat detach: %v", err)
	}
	if err := svc.Detach(context.Background(), schema.DetachRequest{
		SessionID: "s404", Subscriber: "ui-1",
	}); err != nil {
		t.Fatalf("detach unknown session: %v", err)
	}
}

func TestBacklogCapacityEvictsOldest(t *testing.T) {
	svc, launcher, _ := newShellTestService(t, schema.ServiceConfig{BacklogCapacity: 3})
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	handle := launcher.handle(0)
	for _, chunk := range []string{"1", "2", "3", "4", "5"} {
		handle.emit(chunk)
	}

	waitFor(t, "eviction to settle", func() bool {
		attach, err := svc.Attach(context.Background(), schema.AttachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		_ = svc.Detach(context.Background(), schema.DetachRequest{
			SessionID: resp.SessionID, Subscriber: "probe",
		})
		if err != nil || len(attach.Backlog) != 3 {
			return false
		}
		return attach.Backlog[0].Seq == 3 && attach.Backlog[2].Seq == 5
	})
}

func TestResizeForwardsToHandle(t *testing.T) {
	svc, launcher, _ := newShellTestService(t, schema.ServiceConfig{})
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: t.TempDir()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Resize(context.Background(), schema.ResizeRequest{
		SessionID: resp.SessionID, Cols: 132, Rows: 50,
	}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	handle := launcher.handle(0)
	handle.mu.Lock()
	cols, rows := handle.cols, handle.rows
	handle.mu.Unlock()
	if cols != 132 || rows != 50 {
		t.Fatalf("expected 132x50, got %dx%d", cols, rows)
	}
}

func TestSetTitleAndList(t *testing.T) {
	svc, _, _ := newShellTestService(t, schema.ServiceConfig{})
	dir := t.TempDir()
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.SetTitle(context.Background(), schema.SetTitleRequest{
		SessionID: resp.SessionID, Title: "  build window  ",
	}); err != nil {
		t.Fatalf("set title: %v", err)
	}
	list, err := svc.ListShellSessions(context.Background(), schema.ListShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(list.Sessions))
	}
	if list.Sessions[0].Title != "build window" {
		t.Fatalf("title must be trimmed, got %q", list.Sessions[0].Title)
	}
	if list.Sessions[0].SessionID != resp.SessionID {
		t.Fatalf("unexpected session %+v", list.Sessions[0])
	}
}

func TestStopSessionIsIdempotent(t *testing.T) {
	svc, _, _ := newShellTestService(t, schema.ServiceConfig{})
	dir := t.TempDir()
	resp, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.StopSession(context.Background(), schema.StopSessionRequest{SessionID: resp.SessionID}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, "session removal", func() bool {
		err := svc.SendInput(context.Background(), schema.SendInputRequest{SessionID: resp.SessionID, Input: "x"})
		return errors.Is(err, schema.ErrSessionNotFound)
	})

	if err := svc.StopSession(context.Background(), schema.StopSessionRequest{SessionID: resp.SessionID}); err != nil {
		t.Fatalf("second stop must succeed: %v", err)
	}
	if err := svc.StopSession(context.Background(), schema.StopSessionRequest{SessionID: "s404"}); err != nil {
		t.Fatalf("stopping an unknown session must succeed: %v", err)
	}

	// A stopped session no longer occupies the cwd index, so a new start
	// launches fresh.
	again, err := svc.StartShellSession(context.Background(), schema.StartShellRequest{Cwd: dir})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if again.SessionID == resp.SessionID {
		t.Fatalf("stopped session must not be reused")
	}
}
