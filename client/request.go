package client

import (
	"context"
	"errors"
	"time"

	"github.com/luma/herald/protocol"
)

// Request publishes data to subj and waits up to timeout for the first
// reply.
func (nc *Conn) Request(subj string, data []byte, timeout time.Duration) (*Msg, error) {
	return nc.RequestMsg(&Msg{Subject: subj, Data: data}, timeout)
}

// RequestMsg is Request for a message that may carry headers.
func (nc *Conn) RequestMsg(msg *Msg, timeout time.Duration) (*Msg, error) {
	if timeout <= 0 {
		return nil, ErrBadTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m, err := nc.RequestMsgWithContext(ctx, msg)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}

	return m, err
}

// RequestWithContext is Request bounded by ctx.
func (nc *Conn) RequestWithContext(ctx context.Context, subj string, data []byte) (*Msg, error) {
	return nc.RequestMsgWithContext(ctx, &Msg{Subject: subj, Data: data})
}

// RequestMsgWithContext is RequestMsg bounded by ctx.
func (nc *Conn) RequestMsgWithContext(ctx context.Context, msg *Msg) (*Msg, error) {
	if nc == nil {
		return nil, ErrInvalidConnection
	}

	if ctx == nil {
		return nil, ErrInvalidContext
	}

	if msg == nil {
		return nil, ErrInvalidMsg
	}

	hdr, err := msg.headerBytes()
	if err != nil {
		return nil, err
	}

	if nc.Opts.UseOldRequestStyle {
		return nc.oldRequest(ctx, msg.Subject, hdr, msg.Data)
	}

	mch, token, err := nc.createNewRequestAndSend(msg.Subject, hdr, msg.Data)
	if err != nil {
		return nil, err
	}

	var (
		m  *Msg
		ok bool
	)

	select {
	case m, ok = <-mch:
		if !ok {
			return nil, ErrConnectionClosed
		}
	case <-ctx.Done():
		nc.mu.Lock()
		delete(nc.respMap, token)
		nc.mu.Unlock()
		return nil, ctx.Err()
	}

	if protocol.IsNoResponders(m.Header, len(m.Data)) {
		return nil, ErrNoResponders
	}

	return m, nil
}

// createNewRequestAndSend registers a reply token on the shared response
// subscription, creating it on first use, and publishes the request.
func (nc *Conn) createNewRequestAndSend(subj string, hdr, data []byte) (chan *Msg, string, error) {
	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return nil, "", ErrConnectionClosed
	}

	if nc.respMap == nil {
		nc.initNewResp()
	}

	// Buffered so respHandler never blocks on a requester that gave up.
	mch := make(chan *Msg, RequestChanLen)
	respInbox := nc.newRespInbox()
	token := respInbox[nc.respSubLen:]

	nc.respMap[token] = mch

	if nc.respMux == nil {
		s, err := nc.subscribeLocked(nc.respSub, "", nc.respHandler, nil, false)
		if err != nil {
			delete(nc.respMap, token)
			nc.mu.Unlock()
			return nil, "", err
		}

		nc.respMux = s
	}

	nc.mu.Unlock()

	if err := nc.publish(subj, respInbox, hdr, data); err != nil {
		nc.mu.Lock()
		delete(nc.respMap, token)
		nc.mu.Unlock()
		return nil, "", err
	}

	return mch, token, nil
}

// respHandler routes replies arriving on the shared response subscription
// by their last token. Replies nobody waits for are dropped.
func (nc *Conn) respHandler(m *Msg) {
	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return
	}

	var mch chan *Msg

	if len(m.Subject) > nc.respSubLen {
		token := m.Subject[nc.respSubLen:]
		if ch, ok := nc.respMap[token]; ok {
			mch = ch
			delete(nc.respMap, token)
		}
	}

	nc.mu.Unlock()

	if mch == nil {
		return
	}

	select {
	case mch <- m:
	default:
	}
}

// oldRequest serves a request through a dedicated inbox subscription that
// is removed once the reply arrives.
func (nc *Conn) oldRequest(ctx context.Context, subj string, hdr, data []byte) (*Msg, error) {
	inbox := nc.NewInbox()
	ch := make(chan *Msg, RequestChanLen)

	s, err := nc.subscribe(inbox, "", nil, ch, true)
	if err != nil {
		return nil, err
	}
	defer s.Unsubscribe()

	if err := s.AutoUnsubscribe(1); err != nil {
		return nil, err
	}

	if err := nc.publish(subj, inbox, hdr, data); err != nil {
		return nil, err
	}

	return s.NextMsgWithContext(ctx)
}
