package sessiond

import (
	"context"
	"errors"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/schema"
)

func TestServerStopClosesSessions(t *testing.T) {
	svc := &trackingService{}
	ctx, cancel := context.WithCancel(context.Background())
	server := &compositeServer{
		svc:     svc,
		logger:  pslog.Ctx(context.Background()),
		ctx:     ctx,
		cancel:  cancel,
		started: true,
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if svc.closed != 1 {
		t.Fatalf("expected Close to be called once, got %d", svc.closed)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected server context to be canceled")
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	svc := &trackingService{}
	server := &compositeServer{svc: svc, logger: pslog.Ctx(context.Background())}
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if svc.closed != 0 {
		t.Fatalf("expected no Close before start, got %d", svc.closed)
	}
}

type trackingService struct {
	closed int
}

func (s *trackingService) StartShellSession(context.Context, schema.StartShellRequest) (schema.StartShellResponse, error) {
	return schema.StartShellResponse{}, errors.New("not implemented")
}

func (s *trackingService) ListShellSessions(context.Context, schema.ListShellRequest) (schema.ListShellResponse, error) {
	return schema.ListShellResponse{}, nil
}

func (s *trackingService) SendInput(context.Context, schema.SendInputRequest) error { return nil }

func (s *trackingService) Attach(context.Context, schema.AttachRequest) (schema.AttachResponse, error) {
	return schema.AttachResponse{}, errors.New("not implemented")
}

func (s *trackingService) Detach(context.Context, schema.DetachRequest) error { return nil }

func (s *trackingService) Resize(context.Context, schema.ResizeRequest) error { return nil }

func (s *trackingService) SetTitle(context.Context, schema.SetTitleRequest) error { return nil }

func (s *trackingService) StopSession(context.Context, schema.StopSessionRequest) error { return nil }

func (s *trackingService) StartLangServerSession(context.Context, schema.StartLangServerRequest) (schema.StartLangServerResponse, error) {
	return schema.StartLangServerResponse{}, errors.New("not implemented")
}

func (s *trackingService) SendPayload(context.Context, schema.SendPayloadRequest) error { return nil }

func (s *trackingService) Close(context.Context) error {
	s.closed++
	return nil
}
