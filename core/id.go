package core

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"pkt.systems/sessiond/schema"
)

// shellIDs hands out short sequential ids ("s1", "s2", ...) so shell
// sessions stay readable in logs and terminal titles.
type shellIDs struct {
	next atomic.Uint64
}

func (g *shellIDs) Next() schema.SessionID {
	return schema.SessionID(fmt.Sprintf("s%d", g.next.Add(1)))
}

// newLangServerID returns a fresh language-server session id. These ids
// cross process boundaries, so they are globally unique.
func newLangServerID() schema.SessionID {
	return schema.SessionID(uuid.NewString())
}
