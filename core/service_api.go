package core

import (
	"context"

	"pkt.systems/sessiond/schema"
)

// Service is the session runtime: it hosts interactive shell sessions and
// language-server sessions, multiplexes their output, and owns their
// lifecycle.
type Service interface {
	// StartShellSession starts a shell in the requested working directory,
	// or reuses a live one for the same directory unless ForceNew is set.
	StartShellSession(ctx context.Context, req schema.StartShellRequest) (schema.StartShellResponse, error)
	// ListShellSessions lists the live shell sessions whose working
	// directory matches the request.
	ListShellSessions(ctx context.Context, req schema.ListShellRequest) (schema.ListShellResponse, error)
	// SendInput writes bytes to a shell session's input stream.
	SendInput(ctx context.Context, req schema.SendInputRequest) error
	// Attach registers a subscriber and returns the backlog for replay.
	// Output produced after the snapshot is delivered through the sink.
	Attach(ctx context.Context, req schema.AttachRequest) (schema.AttachResponse, error)
	// Detach removes a subscriber. Detaching from an unknown session or an
	// unknown subscriber is a no-op.
	Detach(ctx context.Context, req schema.DetachRequest) error
	// Resize changes a shell session's terminal dimensions.
	Resize(ctx context.Context, req schema.ResizeRequest) error
	// SetTitle sets or clears the human-readable title of a shell session.
	SetTitle(ctx context.Context, req schema.SetTitleRequest) error
	// StopSession stops a session of either kind. Idempotent: stopping an
	// unknown or already-stopped session succeeds without effect.
	StopSession(ctx context.Context, req schema.StopSessionRequest) error

	// StartLangServerSession starts a language server from an installed
	// plugin, selected by plugin id or by language id.
	StartLangServerSession(ctx context.Context, req schema.StartLangServerRequest) (schema.StartLangServerResponse, error)
	// SendPayload frames and writes one JSON-RPC value to a language-server
	// session's stdin.
	SendPayload(ctx context.Context, req schema.SendPayloadRequest) error

	// Close stops every session and waits for their pumps to drain, or until
	// the context is done.
	Close(ctx context.Context) error
}
