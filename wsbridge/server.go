// Package wsbridge exposes the session runtime over a WebSocket: clients
// issue control requests and receive session events on the same connection.
package wsbridge

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/core"
	"pkt.systems/sessiond/internal/logx"
	"pkt.systems/sessiond/schema"
)

// Subprotocol identifies the bridge wire protocol.
const Subprotocol = "sessiond-v1"

// sendBuffer bounds the per-connection outbound queue. Delivery is
// fire-and-forget: a slow client drops events instead of stalling pumps.
const sendBuffer = 256

// Server bridges WebSocket clients to the session runtime. It implements
// core.EventSink so session events reach the connected clients.
type Server struct {
	svc    core.Service
	logger pslog.Logger

	mu    sync.RWMutex
	conns map[schema.SubscriberID]*connection
}

// NewServer constructs a bridge for svc.
func NewServer(svc core.Service, logger pslog.Logger) *Server {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Server{
		svc:    svc,
		logger: logger,
		conns:  make(map[schema.SubscriberID]*connection),
	}
}

// Handler returns the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			s.logger.Warn("websocket accept failed", "err", err)
			return
		}
		s.handleConnection(r.Context(), conn)
	})
}

// ListenAndServe serves the bridge on addr until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// connection is one WebSocket client with its assigned subscriber id and a
// bounded outbound queue.
type connection struct {
	id     schema.SubscriberID
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	attached map[schema.SessionID]struct{}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue queues data for the writer; full queues drop.
func (c *connection) enqueue(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *connection) trackAttach(id schema.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached[id] = struct{}{}
}

func (c *connection) trackDetach(id schema.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attached, id)
}

func (c *connection) attachedSessions() []schema.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.SessionID, 0, len(c.attached))
	for id := range c.attached {
		out = append(out, id)
	}
	return out
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	c := &connection{
		id:       schema.SubscriberID(uuid.NewString()),
		sendCh:   make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		attached: make(map[schema.SessionID]struct{}),
	}
	log := logx.WithSubscriber(s.logger, c.id)

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		c.close()
		for _, id := range c.attachedSessions() {
			_ = s.svc.Detach(context.Background(), schema.DetachRequest{
				SessionID: id, Subscriber: c.id,
			})
		}
		conn.Close(websocket.StatusNormalClosure, "connection closed")
		log.Info("client disconnected")
	}()

	go s.writeLoop(ctx, conn, c, log)

	hello, _ := json.Marshal(Hello{Type: TypeHello, Subscriber: string(c.id)})
	if !c.enqueue(hello) {
		return
	}
	log.Info("client connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Debug("client read ended", "err", err)
			}
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			c.enqueue(marshalResponse(Response{Type: TypeResult, OK: false, Error: "malformed request"}))
			continue
		}
		c.enqueue(marshalResponse(s.dispatch(ctx, c, req)))
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, c *connection, log pslog.Logger) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case data := <-c.sendCh:
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				log.Debug("client write failed", "err", err)
				c.close()
				return
			}
		}
	}
}

func marshalResponse(resp Response) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(Response{Type: TypeResult, OK: false, Error: "internal encoding error"})
	}
	return data
}

// dispatch routes one request to the runtime.
func (s *Server) dispatch(ctx context.Context, c *connection, req Request) Response {
	result, err := s.invoke(ctx, c, req)
	if err != nil {
		return Response{Type: TypeResult, ID: req.ID, OK: false, Error: err.Error()}
	}
	var payload json.RawMessage
	if result != nil {
		payload, err = json.Marshal(result)
		if err != nil {
			return Response{Type: TypeResult, ID: req.ID, OK: false, Error: err.Error()}
		}
	}
	return Response{Type: TypeResult, ID: req.ID, OK: true, Result: payload}
}

func (s *Server) invoke(ctx context.Context, c *connection, req Request) (any, error) {
	switch req.Op {
	case OpShellStart:
		var r schema.StartShellRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return s.svc.StartShellSession(ctx, r)
	case OpShellList:
		var r schema.ListShellRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return s.svc.ListShellSessions(ctx, r)
	case OpShellInput:
		var r schema.SendInputRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return nil, s.svc.SendInput(ctx, r)
	case OpShellAttach:
		var r schema.AttachRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		// The bridge owns subscriber identity; clients cannot attach on
		// behalf of another connection.
		r.Subscriber = c.id
		resp, err := s.svc.Attach(ctx, r)
		if err != nil {
			return nil, err
		}
		c.trackAttach(r.SessionID)
		return resp, nil
	case OpShellDetach:
		var r schema.DetachRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		r.Subscriber = c.id
		if err := s.svc.Detach(ctx, r); err != nil {
			return nil, err
		}
		c.trackDetach(r.SessionID)
		return nil, nil
	case OpShellResize:
		var r schema.ResizeRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return nil, s.svc.Resize(ctx, r)
	case OpShellTitle:
		var r schema.SetTitleRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return nil, s.svc.SetTitle(ctx, r)
	case OpSessionStop:
		var r schema.StopSessionRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return nil, s.svc.StopSession(ctx, r)
	case OpLangStart:
		var r schema.StartLangServerRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return s.svc.StartLangServerSession(ctx, r)
	case OpLangPayload:
		var r schema.SendPayloadRequest
		if err := json.Unmarshal(req.Payload, &r); err != nil {
			return nil, schema.ErrInvalidRequest
		}
		return nil, s.svc.SendPayload(ctx, r)
	default:
		return nil, schema.ErrInvalidRequest
	}
}

// pushEvent fans an event out to the given connections.
func pushEvent(name string, payload any, conns []*connection) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(Event{Type: TypeEvent, Event: name, Payload: body})
	if err != nil {
		return
	}
	for _, c := range conns {
		c.enqueue(data)
	}
}

func (s *Server) allConns() []*connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// OnShellOutput delivers a record to the one connection it addresses.
func (s *Server) OnShellOutput(event schema.ShellOutputEvent) {
	s.mu.RLock()
	c, ok := s.conns[event.Subscriber]
	s.mu.RUnlock()
	if !ok {
		return
	}
	pushEvent(EventShellOutput, event, []*connection{c})
}

// OnLangServerMessage broadcasts a decoded server message.
func (s *Server) OnLangServerMessage(event schema.LangServerMessageEvent) {
	pushEvent(EventLangMessage, event, s.allConns())
}

// OnLangServerDiagnostic broadcasts one diagnostic line.
func (s *Server) OnLangServerDiagnostic(event schema.LangServerDiagnosticEvent) {
	pushEvent(EventLangDiagnostic, event, s.allConns())
}

// OnLangServerExit broadcasts the terminal status of a session.
func (s *Server) OnLangServerExit(event schema.LangServerExitEvent) {
	pushEvent(EventLangExit, event, s.allConns())
}

// OnPluginsUpdated broadcasts the refreshed plugin catalog.
func (s *Server) OnPluginsUpdated(event schema.PluginsUpdatedEvent) {
	pushEvent(EventPluginsUpdated, event, s.allConns())
}
