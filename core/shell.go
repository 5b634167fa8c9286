package core

import (
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/schema"
)

// shellSession is one live shell behind a pseudo-terminal. The reader pump
// owns the output stream, the writer pump owns the input stream; everything
// else goes through the session lock.
type shellSession struct {
	id     schema.SessionID
	cwd    string
	handle ShellHandle
	log    pslog.Logger

	// writeCh hands input bytes to the writer pump. done closes exactly
	// once when the session is stopping; writeCh is never closed.
	writeCh  chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	title       string
	seq         uint64
	backlog     *backlog
	subscribers map[schema.SubscriberID]struct{}
	state       schema.SessionState
}

func newShellSession(id schema.SessionID, cwd string, handle ShellHandle, capacity int, log pslog.Logger) *shellSession {
	return &shellSession{
		id:          id,
		cwd:         cwd,
		handle:      handle,
		log:         log,
		writeCh:     make(chan []byte, 64),
		done:        make(chan struct{}),
		backlog:     newBacklog(capacity),
		subscribers: make(map[schema.SubscriberID]struct{}),
		state:       schema.StateRunning,
	}
}

// stop requests termination. Safe to call any number of times from any
// goroutine; the reader pump performs the actual cleanup when the output
// stream drains.
func (sess *shellSession) stop() {
	sess.stopOnce.Do(func() {
		sess.mu.Lock()
		sess.state = schema.StateStopping
		sess.mu.Unlock()
		close(sess.done)
		if err := sess.handle.Kill(); err != nil {
			sess.log.Debug("shell kill", "err", err)
		}
	})
}

// sendInput queues bytes for the writer pump without blocking past a stop.
func (sess *shellSession) sendInput(data []byte) error {
	select {
	case <-sess.done:
		return schema.ErrSessionClosing
	case sess.writeCh <- data:
		return nil
	}
}

// publish assigns the next sequence number, appends to the backlog, and
// returns the record together with the current subscriber set. Assignment
// and append are atomic so replay plus live delivery never gaps or reorders.
func (sess *shellSession) publish(data string) (schema.OutputRecord, []schema.SubscriberID) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.seq++
	record := schema.OutputRecord{Seq: sess.seq, Data: data}
	sess.backlog.Append(record)
	subs := make([]schema.SubscriberID, 0, len(sess.subscribers))
	for sub := range sess.subscribers {
		subs = append(subs, sub)
	}
	return record, subs
}

// attach registers a subscriber and snapshots the backlog in the same
// critical section, so the subscriber sees every record exactly once.
func (sess *shellSession) attach(sub schema.SubscriberID) []schema.OutputRecord {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.subscribers[sub] = struct{}{}
	return sess.backlog.Snapshot()
}

func (sess *shellSession) detach(sub schema.SubscriberID) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	delete(sess.subscribers, sub)
}

func (sess *shellSession) setTitle(title string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.title = strings.TrimSpace(title)
}

func (sess *shellSession) info() schema.ShellSessionInfo {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return schema.ShellSessionInfo{SessionID: sess.id, Cwd: sess.cwd, Title: sess.title}
}

// writerPump owns the input stream. It exits when the session stops or the
// stream breaks.
func (sess *shellSession) writerPump() {
	in := sess.handle.Input()
	for {
		select {
		case <-sess.done:
			return
		case data := <-sess.writeCh:
			if _, err := in.Write(data); err != nil {
				sess.log.Debug("shell input closed", "err", err)
				return
			}
		}
	}
}
