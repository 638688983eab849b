package client

import (
	"strings"

	"go.uber.org/zap"

	"github.com/luma/herald/protocol"
)

// inbound receives what the parser decodes from the server.
type inbound struct {
	nc *Conn
}

var _ protocol.Handler = (*inbound)(nil)

// ProcessMsg routes a MSG or HMSG to its subscription. The payload is
// copied since the parser reuses its buffers.
func (in *inbound) ProcessMsg(args *protocol.MsgArg, payload []byte) {
	nc := in.nc

	nc.stats.recordIn(len(payload))

	nc.subsMu.RLock()
	sub := nc.subs[args.Sid]
	var filter MsgFilter
	if nc.filters != nil {
		filter = nc.filters[string(args.Subject)]
	}
	nc.subsMu.RUnlock()

	if sub == nil {
		return
	}

	var h Header

	if args.HdrLen > 0 {
		var err error
		if h, err = protocol.DecodeHeader(payload[:args.HdrLen]); err != nil {
			// Delivered without headers.
			nc.log.Debug("Malformed header block",
				zap.ByteString("subject", args.Subject),
				zap.Error(err))
			nc.recordAsyncErr(sub, ErrBadHeaderMsg)
		}

		payload = payload[args.HdrLen:]
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	m := &Msg{
		Subject: string(args.Subject),
		Header:  h,
		Data:    data,
		Sub:     sub,
	}
	if len(args.Reply) > 0 {
		m.Reply = string(args.Reply)
	}

	if filter != nil {
		if m = filter(m); m == nil {
			return
		}
	}

	sub.mu.Lock()

	if sub.closed {
		sub.mu.Unlock()
		return
	}

	ok, maxReached := sub.enqueue(m)

	if !ok {
		sub.dropped++
		wasSlow := sub.sc
		sub.sc = true
		sub.mu.Unlock()

		if !wasSlow {
			nc.log.Warn("Slow consumer, dropping messages",
				zap.String("subject", sub.Subject),
				zap.Int64("sid", sub.sid))
			nc.recordAsyncErr(sub, ErrSlowConsumer)
		}
		return
	}

	sub.sc = false
	sub.mu.Unlock()

	if maxReached {
		nc.mu.Lock()
		nc.removeSub(sub)
		nc.mu.Unlock()
	}
}

func (in *inbound) ProcessInfo(arg []byte) {
	nc := in.nc

	nc.mu.Lock()
	defer nc.mu.Unlock()

	if err := nc.processInfo(arg); err != nil {
		nc.log.Warn("Ignoring malformed INFO", zap.Error(err))
	}
}

// ProcessErr reacts to -ERR. Stale connection errors reconnect, permission
// violations are reported, anything else closes the connection.
func (in *inbound) ProcessErr(arg string) {
	nc := in.nc

	e := strings.ToLower(protocol.NormalizeErr(arg))

	nc.log.Debug("Server sent an error", zap.String("error", e))

	switch {
	case e == staleConnectionErr:
		nc.processOpErr(ErrStaleConnection)

	case strings.HasPrefix(e, permissionsErr):
		nc.reportAsyncErr(nil, &PermissionError{Desc: protocol.NormalizeErr(arg)})

	default:
		if authErr := checkAuthError(e); authErr != nil {
			nc.mu.Lock()
			giveUp := nc.processAuthError(authErr)
			nc.mu.Unlock()

			if giveUp {
				nc.closeImpl(CLOSED, true, nil)
			} else {
				nc.processOpErr(authErr)
			}
			return
		}

		nc.mu.Lock()
		nc.err = &ServerError{Desc: protocol.NormalizeErr(arg)}
		nc.mu.Unlock()

		nc.closeImpl(CLOSED, true, nil)
	}
}

func (in *inbound) ProcessOK() {}

func (in *inbound) ProcessPing() {
	nc := in.nc

	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.isClosed() {
		return
	}

	nc.sendProto(protocol.PongProto)
}

// ProcessPong completes the oldest outstanding PING.
func (in *inbound) ProcessPong() {
	nc := in.nc

	var ch chan struct{}

	nc.mu.Lock()

	if len(nc.pongs) > 0 {
		ch = nc.pongs[0]
		nc.pongs = append(nc.pongs[:0], nc.pongs[1:]...)
	}
	nc.pout = 0

	nc.mu.Unlock()

	if ch != nil {
		ch <- struct{}{}
	}
}
