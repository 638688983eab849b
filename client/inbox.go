package client

import (
	"strings"

	"github.com/nats-io/nuid"
)

const (
	replySuffixLen = 8
	rdigits        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	base           = 62
)

// IDGenerator produces identifiers that are unique for the life of the
// process. Implementations must be safe for concurrent use.
type IDGenerator interface {
	Next() string
}

// NUIDGenerator is the default IDGenerator, backed by the shared NUID
// sequence.
type NUIDGenerator struct{}

func (NUIDGenerator) Next() string {
	return nuid.Next()
}

// NewInbox returns a unique subject suitable as the reply subject of a
// request.
func (nc *Conn) NewInbox() string {
	return nc.Opts.InboxPrefix + nc.Opts.IDGenerator.Next()
}

// newRespInbox returns a reply subject served by the shared response
// subscription. Must be called with nc.mu held.
func (nc *Conn) newRespInbox() string {
	if nc.respMap == nil {
		nc.initNewResp()
	}

	var sb strings.Builder
	sb.Grow(len(nc.respSubPrefix) + replySuffixLen)
	sb.WriteString(nc.respSubPrefix)

	rn := nc.respRand.Int63()
	for i := 0; i < replySuffixLen; i++ {
		sb.WriteByte(rdigits[rn%base])
		rn /= base
	}

	return sb.String()
}

// NewRespInbox is the public form of newRespInbox.
func (nc *Conn) NewRespInbox() string {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	return nc.newRespInbox()
}

// initNewResp sets up the shared response subject. Must be called with
// nc.mu held.
func (nc *Conn) initNewResp() {
	nc.respSubPrefix = nc.NewInbox() + "."
	nc.respSubLen = len(nc.respSubPrefix)
	nc.respSub = nc.respSubPrefix + "*"
	nc.respMap = make(map[string]chan *Msg)
}
