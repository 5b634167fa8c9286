package core

import (
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/sessiond/schema"
)

// langSession is one live language-server child with piped streams. The
// writer pump owns stdin framing; stdout and stderr each have a dedicated
// reader pump.
type langSession struct {
	id       schema.SessionID
	pluginID schema.PluginID
	language schema.LanguageID
	handle   LangHandle
	mapping  *schema.PathMapping
	log      pslog.Logger

	writeCh  chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func newLangSession(id schema.SessionID, pluginID schema.PluginID, language schema.LanguageID, result LangLaunchResult, log pslog.Logger) *langSession {
	return &langSession{
		id:       id,
		pluginID: pluginID,
		language: language,
		handle:   result.Handle,
		mapping:  result.Mapping,
		log:      log,
		writeCh:  make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// stop requests termination. Idempotent; cleanup happens on the stdout pump
// when the stream drains.
func (sess *langSession) stop() {
	sess.stopOnce.Do(func() {
		close(sess.done)
		if err := sess.handle.Kill(); err != nil {
			sess.log.Debug("language server kill", "err", err)
		}
	})
}

// sendPayload queues one pre-serialized JSON-RPC value for the writer pump.
func (sess *langSession) sendPayload(body []byte) error {
	select {
	case <-sess.done:
		return schema.ErrSessionClosing
	case sess.writeCh <- body:
		return nil
	}
}
