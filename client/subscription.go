package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luma/herald/protocol"
)

// SubscriptionType is how a subscription hands messages over.
type SubscriptionType int

const (
	// AsyncSubscription runs a MsgHandler on a goroutine of its own.
	AsyncSubscription SubscriptionType = iota
	// SyncSubscription is read with NextMsg.
	SyncSubscription
	// ChanSubscription writes into a channel owned by the caller.
	ChanSubscription
	NilSubscription
)

const drainPollInterval = 100 * time.Millisecond

// Subscription represents interest in a subject.
type Subscription struct {
	mu  sync.Mutex
	sid int64

	// Subject the subscription is for; it may contain wildcards.
	Subject string

	// Queue is the queue group, if any.
	Queue string

	delivered uint64
	max       uint64
	dropped   int

	conn       *Conn
	mcb        MsgHandler
	mch        chan *Msg
	typ        SubscriptionType
	closed     bool
	connClosed bool
	sc         bool

	pCond  *sync.Cond
	pQueue msgQueue

	pMsgs       int
	pBytes      int
	pMsgsMax    int
	pBytesMax   int
	pMsgsLimit  int
	pBytesLimit int
}

// Subscribe expresses interest in subj; cb runs for every message on a
// goroutine dedicated to the subscription.
func (nc *Conn) Subscribe(subj string, cb MsgHandler) (*Subscription, error) {
	return nc.subscribe(subj, "", cb, nil, false)
}

// QueueSubscribe is Subscribe as a member of queue group queue. Each
// message is delivered to one member of the group only.
func (nc *Conn) QueueSubscribe(subj, queue string, cb MsgHandler) (*Subscription, error) {
	return nc.subscribe(subj, queue, cb, nil, false)
}

// SubscribeSync creates a subscription read with NextMsg.
func (nc *Conn) SubscribeSync(subj string) (*Subscription, error) {
	return nc.QueueSubscribeSync(subj, "")
}

func (nc *Conn) QueueSubscribeSync(subj, queue string) (*Subscription, error) {
	if nc == nil {
		return nil, ErrInvalidConnection
	}

	mch := make(chan *Msg, nc.Opts.SubChanLen)

	return nc.subscribe(subj, queue, nil, mch, true)
}

// ChanSubscribe delivers messages into ch. A full ch counts as a slow
// consumer and the message is dropped.
func (nc *Conn) ChanSubscribe(subj string, ch chan *Msg) (*Subscription, error) {
	return nc.subscribe(subj, "", nil, ch, false)
}

func (nc *Conn) ChanQueueSubscribe(subj, queue string, ch chan *Msg) (*Subscription, error) {
	return nc.subscribe(subj, queue, nil, ch, false)
}

func (nc *Conn) subscribe(subj, queue string, cb MsgHandler, ch chan *Msg, isSync bool) (*Subscription, error) {
	if nc == nil {
		return nil, ErrInvalidConnection
	}

	nc.mu.Lock()
	defer nc.mu.Unlock()

	return nc.subscribeLocked(subj, queue, cb, ch, isSync)
}

// subscribeLocked must be called with nc.mu held.
func (nc *Conn) subscribeLocked(subj, queue string, cb MsgHandler, ch chan *Msg, isSync bool) (*Subscription, error) {
	if badSubject(subj) {
		return nil, ErrBadSubject
	}

	if queue != "" && badQueue(queue) {
		return nil, ErrBadQueueName
	}

	if nc.isClosed() {
		return nil, ErrConnectionClosed
	}

	if nc.isDraining() {
		return nil, ErrConnectionDraining
	}

	if cb == nil && ch == nil {
		return nil, ErrBadSubscription
	}

	sub := &Subscription{
		Subject:     subj,
		Queue:       queue,
		mcb:         cb,
		conn:        nc,
		pMsgsLimit:  DefaultSubPendingMsgsLimit,
		pBytesLimit: DefaultSubPendingBytesLimit,
	}

	switch {
	case cb != nil:
		sub.typ = AsyncSubscription
		sub.pCond = sync.NewCond(&sub.mu)
	case isSync:
		sub.typ = SyncSubscription
		sub.mch = ch
	default:
		sub.typ = ChanSubscription
		sub.mch = ch
	}

	nc.subsMu.Lock()
	nc.ssid++
	sub.sid = nc.ssid
	nc.subs[sub.sid] = sub
	nc.subsMu.Unlock()

	if sub.typ == AsyncSubscription {
		go nc.waitForMsgs(sub)
	}

	// Replayed by resendSubscriptions once reconnected.
	if !nc.isReconnecting() {
		nc.sendProto(protocol.AppendSub(nil, subj, queue, sub.sid))
	}

	return sub, nil
}

// badSubject reports subjects with whitespace or empty tokens.
func badSubject(subj string) bool {
	if strings.ContainsAny(subj, " \t\r\n") {
		return true
	}

	for _, token := range strings.Split(subj, ".") {
		if len(token) == 0 {
			return true
		}
	}

	return false
}

func badQueue(queue string) bool {
	return strings.ContainsAny(queue, " \t\r\n")
}

// removeSub drops s from the registry and wakes whatever waits on it.
// Must be called with nc.mu held.
func (nc *Conn) removeSub(s *Subscription) {
	nc.subsMu.Lock()
	delete(nc.subs, s.sid)
	nc.subsMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mch != nil {
		if s.typ == SyncSubscription {
			close(s.mch)
		}
		s.mch = nil
	}

	s.closed = true

	if s.pCond != nil {
		s.pCond.Broadcast()
	}
}

// waitForMsgs is the delivery loop of an asynchronous subscription.
func (nc *Conn) waitForMsgs(s *Subscription) {
	var (
		closed    bool
		delivered uint64
		max       uint64
	)

	// Pending counters are only released once the callback returned, so
	// a drain observes the subscription as busy until then.
	msgLen := -1

	for {
		s.mu.Lock()

		if msgLen >= 0 {
			s.pMsgs--
			s.pBytes -= msgLen
			msgLen = -1
		}

		for s.pQueue.len() == 0 && !s.closed {
			s.pCond.Wait()
		}

		m := s.pQueue.pop()

		if m != nil && m.barrier != nil {
			s.mu.Unlock()
			releaseBarrier(m.barrier)
			continue
		}

		mcb := s.mcb
		closed = s.closed

		if m != nil && !closed {
			msgLen = len(m.Data)
			s.delivered++
			delivered = s.delivered
			max = s.max
		}

		s.mu.Unlock()

		if closed {
			break
		}

		if max == 0 || delivered <= max {
			mcb(m)
		}

		if max > 0 && delivered >= max {
			nc.mu.Lock()
			nc.removeSub(s)
			nc.mu.Unlock()
			break
		}
	}

	// Barriers still queued must not hold up their callers forever.
	s.mu.Lock()
	for m := s.pQueue.pop(); m != nil; m = s.pQueue.pop() {
		if m.barrier != nil {
			s.mu.Unlock()
			releaseBarrier(m.barrier)
			s.mu.Lock()
		}
	}
	s.mu.Unlock()
}

func releaseBarrier(b *barrierInfo) {
	if atomic.AddInt64(&b.refs, -1) == 0 {
		b.f()
	}
}

// enqueue hands m over according to the subscription type. It reports
// false when m had to be dropped because the consumer is too slow, and
// whether a channel subscription reached its auto-unsubscribe limit.
// Must be called with s.mu held.
func (s *Subscription) enqueue(m *Msg) (ok, maxReached bool) {
	if s.typ != ChanSubscription {
		s.pMsgs++
		if s.pMsgs > s.pMsgsMax {
			s.pMsgsMax = s.pMsgs
		}

		s.pBytes += len(m.Data)
		if s.pBytes > s.pBytesMax {
			s.pBytesMax = s.pBytes
		}

		if (s.pMsgsLimit > 0 && s.pMsgs > s.pMsgsLimit) ||
			(s.pBytesLimit > 0 && s.pBytes > s.pBytesLimit) {
			s.pMsgs--
			s.pBytes -= len(m.Data)
			return false, false
		}
	}

	if s.mch != nil {
		select {
		case s.mch <- m:
		default:
			if s.typ != ChanSubscription {
				s.pMsgs--
				s.pBytes -= len(m.Data)
			}
			return false, false
		}

		if s.typ == ChanSubscription {
			s.delivered++
			maxReached = s.max > 0 && s.delivered >= s.max
		}

		return true, maxReached
	}

	s.pQueue.push(m)
	s.pCond.Signal()

	return true, false
}

// Type returns how the subscription delivers messages.
func (s *Subscription) Type() SubscriptionType {
	if s == nil {
		return NilSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.typ
}

// IsValid reports whether the subscription is still active.
func (s *Subscription) IsValid() bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil && !s.closed
}

func (s *Subscription) QueueName() string {
	return s.Queue
}

// Unsubscribe removes interest in the subject. Calling it again returns
// ErrBadSubscription.
func (s *Subscription) Unsubscribe() error {
	if s == nil {
		return ErrBadSubscription
	}

	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return ErrConnectionClosed
	}

	if closed {
		return ErrBadSubscription
	}

	if conn.IsDraining() {
		return ErrConnectionDraining
	}

	return conn.unsubscribe(s, 0, false)
}

// Drain removes interest but keeps delivering what is pending, then
// removes the subscription.
func (s *Subscription) Drain() error {
	if s == nil {
		return ErrBadSubscription
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrBadSubscription
	}

	return conn.unsubscribe(s, 0, true)
}

// AutoUnsubscribe tells the server to remove interest after max messages
// in total. Messages already delivered count towards max.
func (s *Subscription) AutoUnsubscribe(max int) error {
	if s == nil {
		return ErrBadSubscription
	}

	if max <= 0 {
		return ErrInvalidArg
	}

	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if conn == nil || closed {
		return ErrBadSubscription
	}

	return conn.unsubscribe(s, max, false)
}

func (nc *Conn) unsubscribe(sub *Subscription, max int, drainMode bool) error {
	var maxToSend int

	if max > 0 {
		sub.mu.Lock()
		sub.max = uint64(max)
		if sub.delivered < sub.max {
			maxToSend = max
		}
		sub.mu.Unlock()
	}

	nc.mu.Lock()
	defer nc.mu.Unlock()

	if nc.isClosed() {
		return ErrConnectionClosed
	}

	nc.subsMu.RLock()
	s := nc.subs[sub.sid]
	nc.subsMu.RUnlock()

	if s == nil {
		return nil
	}

	if maxToSend == 0 && !drainMode {
		nc.removeSub(s)
	}

	if drainMode {
		go nc.checkDrained(sub)
	}

	// Nothing to tell a server we are not connected to; removed
	// subscriptions are not replayed.
	if !nc.isReconnecting() {
		nc.sendProto(protocol.AppendUnsub(nil, s.sid, maxToSend))
	}

	return nil
}

// checkDrained waits for a draining subscription to deliver what it has
// pending and then removes it.
func (nc *Conn) checkDrained(sub *Subscription) {
	// Once the PONG is back the server will not send anything more for
	// this subscription.
	nc.Flush()

	for {
		if nc.IsClosed() {
			return
		}

		sub.mu.Lock()
		conn := sub.conn
		closed := sub.closed
		pMsgs := sub.pMsgs
		sub.mu.Unlock()

		if conn == nil || closed || pMsgs == 0 {
			nc.mu.Lock()
			nc.removeSub(sub)
			nc.mu.Unlock()
			return
		}

		time.Sleep(drainPollInterval)
	}
}

// NextMsg returns the next message of a synchronous subscription, waiting
// up to timeout for one to arrive.
func (s *Subscription) NextMsg(timeout time.Duration) (*Msg, error) {
	if timeout <= 0 {
		return nil, ErrBadTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	msg, err := s.NextMsgWithContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrTimeout
	}

	return msg, err
}

// NextMsgWithContext is NextMsg bounded by ctx.
func (s *Subscription) NextMsgWithContext(ctx context.Context) (*Msg, error) {
	if ctx == nil {
		return nil, ErrInvalidContext
	}

	if s == nil {
		return nil, ErrBadSubscription
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.validateNextMsgState(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	mch := s.mch
	s.mu.Unlock()

	var (
		msg *Msg
		ok  bool
	)

	select {
	case msg, ok = <-mch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !ok {
		return nil, s.getNextMsgErr()
	}

	if err := s.processNextMsgDelivered(msg); err != nil {
		return nil, err
	}

	return msg, nil
}

// validateNextMsgState must be called with s.mu held.
func (s *Subscription) validateNextMsgState() error {
	if s.connClosed {
		return ErrConnectionClosed
	}

	if s.mch == nil {
		if s.max > 0 && s.delivered >= s.max {
			return ErrMaxMessages
		}

		if s.closed {
			return ErrBadSubscription
		}
	}

	if s.mcb != nil || s.typ != SyncSubscription {
		return ErrSyncSubRequired
	}

	// Report dropped messages once.
	if s.sc {
		s.sc = false
		return ErrSlowConsumer
	}

	return nil
}

func (s *Subscription) getNextMsgErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connClosed {
		return ErrConnectionClosed
	}

	if s.max > 0 && s.delivered >= s.max {
		return ErrMaxMessages
	}

	return ErrBadSubscription
}

func (s *Subscription) processNextMsgDelivered(msg *Msg) error {
	s.mu.Lock()
	nc := s.conn
	max := s.max

	s.delivered++
	delivered := s.delivered

	s.pMsgs--
	s.pBytes -= len(msg.Data)
	s.mu.Unlock()

	if max > 0 {
		if delivered > max {
			return ErrMaxMessages
		}

		if delivered == max {
			nc.mu.Lock()
			nc.removeSub(s)
			nc.mu.Unlock()
		}
	}

	if protocol.IsNoResponders(msg.Header, len(msg.Data)) {
		return ErrNoResponders
	}

	return nil
}

// Pending returns the number of messages and bytes queued for delivery.
func (s *Subscription) Pending() (int, int, error) {
	if s == nil {
		return -1, -1, ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return -1, -1, ErrBadSubscription
	}

	if s.typ == ChanSubscription {
		return -1, -1, ErrTypeSubscription
	}

	return s.pMsgs, s.pBytes, nil
}

// MaxPending returns the high water marks of Pending.
func (s *Subscription) MaxPending() (int, int, error) {
	if s == nil {
		return -1, -1, ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return -1, -1, ErrBadSubscription
	}

	if s.typ == ChanSubscription {
		return -1, -1, ErrTypeSubscription
	}

	return s.pMsgsMax, s.pBytesMax, nil
}

func (s *Subscription) ClearMaxPending() error {
	if s == nil {
		return ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return ErrBadSubscription
	}

	if s.typ == ChanSubscription {
		return ErrTypeSubscription
	}

	s.pMsgsMax, s.pBytesMax = 0, 0

	return nil
}

// PendingLimits returns the limits past which messages are dropped.
func (s *Subscription) PendingLimits() (int, int, error) {
	if s == nil {
		return -1, -1, ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return -1, -1, ErrBadSubscription
	}

	if s.typ == ChanSubscription {
		return -1, -1, ErrTypeSubscription
	}

	return s.pMsgsLimit, s.pBytesLimit, nil
}

// SetPendingLimits sets the message and byte limits past which messages
// are dropped. Zero is invalid, a negative value means no limit.
func (s *Subscription) SetPendingLimits(msgLimit, bytesLimit int) error {
	if s == nil {
		return ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return ErrBadSubscription
	}

	if s.typ == ChanSubscription {
		return ErrTypeSubscription
	}

	if msgLimit == 0 || bytesLimit == 0 {
		return ErrInvalidArg
	}

	s.pMsgsLimit, s.pBytesLimit = msgLimit, bytesLimit

	return nil
}

// Delivered returns the number of messages handed to the application.
func (s *Subscription) Delivered() (int64, error) {
	if s == nil {
		return -1, ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return -1, ErrBadSubscription
	}

	return int64(s.delivered), nil
}

// Dropped returns the number of messages dropped as a slow consumer.
func (s *Subscription) Dropped() (int, error) {
	if s == nil {
		return -1, ErrBadSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.closed {
		return -1, ErrBadSubscription
	}

	return s.dropped, nil
}
