package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/herald/internal/meta"
	"github.com/luma/herald/protocol"
)

const (
	flushChanSize       = 1
	defaultFlushTimeout = 10 * time.Second
	drainFlushTimeout   = 5 * time.Second
)

// Conn is a connection to a server. A Conn reconnects on its own, replaying
// subscriptions and buffered publishes, until it is closed or runs out of
// servers. All methods are safe for concurrent use.
type Conn struct {
	mu sync.RWMutex

	// Opts holds the configuration of the Conn. Modifying it after
	// Connect has no effect.
	Opts Options

	log *zap.Logger

	// wg tracks the reader and flusher of the current socket.
	wg          sync.WaitGroup
	reconnectWG sync.WaitGroup

	conn net.Conn
	bw   *natsWriter
	br   *bufio.Reader
	fch  chan struct{}
	rqch chan struct{}

	srvPool []*srv
	current *srv
	urls    map[string]struct{}

	info   protocol.ServerInfo
	status Status
	initc  bool
	ar     bool
	err    error

	subsMu sync.RWMutex
	subs   map[int64]*Subscription
	ssid   int64

	// Keyed by exact message subject, guarded by subsMu.
	filters map[string]MsgFilter

	ach *asyncCallbacksHandler

	pongs []chan struct{}
	pout  int
	ptmr  *time.Timer

	respSub       string
	respSubPrefix string
	respSubLen    int
	respMux       *Subscription
	respMap       map[string]chan *Msg
	respRand      *rand.Rand

	scratch []byte
	stats   *statsCollector
}

// Connect attempts a connection with the servers configured in o.
func (o Options) Connect() (*Conn, error) {
	nc := &Conn{Opts: o}

	if nc.Opts.Log == nil {
		nc.Opts.Log = zap.NewNop()
	}
	if nc.Opts.MaxPingsOut == 0 {
		nc.Opts.MaxPingsOut = DefaultMaxPingOut
	}
	if nc.Opts.SubChanLen <= 0 {
		nc.Opts.SubChanLen = DefaultMaxChanLen
	}
	if nc.Opts.ReconnectBufSize == 0 {
		nc.Opts.ReconnectBufSize = DefaultReconnectBufSize
	}
	if nc.Opts.Timeout == 0 {
		nc.Opts.Timeout = DefaultTimeout
	}
	if nc.Opts.InboxPrefix == "" {
		nc.Opts.InboxPrefix = InboxPrefix
	}
	if nc.Opts.IDGenerator == nil {
		nc.Opts.IDGenerator = NUIDGenerator{}
	}

	nc.log = nc.Opts.Log
	nc.stats = &statsCollector{}
	nc.respRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	nc.scratch = make([]byte, 0, 256)
	nc.ach = newAsyncCallbacksHandler()

	if err := nc.setupServerPool(); err != nil {
		return nil, err
	}

	go nc.ach.dispatch()

	if err := nc.connect(); err != nil {
		nc.ach.close()
		return nil, err
	}

	return nc, nil
}

// connect makes a single pass over the server pool. Must not be called with
// nc.mu held.
func (nc *Conn) connect() error {
	var err error

	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.initc = true

	for i := 0; i < len(nc.srvPool); i++ {
		nc.current = nc.srvPool[i]

		if err = nc.createConn(); err != nil {
			if isConnRefused(err) {
				nc.log.Debug("Server refused connection, trying the next one",
					zap.String("server", nc.current.url.Host))
				err = nil
				continue
			}
			break
		}

		nc.setup()

		if err = nc.processConnectInit(); err == nil {
			nc.current.didConnect = true
			nc.current.reconnects = 0
			nc.current.lastErr = nil
			break
		}

		nc.conn.Close()
		nc.conn = nil
		nc.changeConnStatus(DISCONNECTED)
		break
	}

	if err == nil && nc.status != CONNECTED {
		err = ErrNoServers
	}

	switch {
	case err == nil:
		nc.initc = false
		nc.log.Info("Connected", zap.String("server", nc.current.url.Host), zap.String("serverID", nc.info.ID))

	case nc.Opts.RetryOnFailedConnect:
		nc.log.Warn("Initial connect failed, retrying in the background", zap.Error(err))

		nc.setup()
		if nc.bw == nil {
			nc.bw = newNatsWriter(nil, nc.Opts.ReconnectBufSize)
		}
		nc.changeConnStatus(RECONNECTING)
		nc.bw.switchToPending()

		nc.reconnectWG.Add(1)
		go nc.doReconnect(ErrNoServers)
		err = nil

	default:
		nc.current = nil
	}

	return err
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused")
}

// setup resets the per connection state. Must be called with nc.mu held.
func (nc *Conn) setup() {
	nc.subs = make(map[int64]*Subscription)
	nc.pongs = make([]chan struct{}, 0, 8)
	nc.fch = make(chan struct{}, flushChanSize)
	nc.rqch = make(chan struct{})
}

// createConn dials the current server. Must be called with nc.mu held.
func (nc *Conn) createConn() error {
	if nc.Opts.Timeout < 0 {
		return ErrBadTimeout
	}

	if _, cur := nc.currentServer(); cur == nil {
		return ErrNoServers
	}

	dialer := nc.Opts.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: nc.Opts.Timeout}
	}

	conn, err := dialer.Dial("tcp", nc.current.url.Host)
	if err != nil {
		return err
	}

	nc.conn = conn

	if nc.bw == nil {
		nc.bw = newNatsWriter(conn, nc.Opts.ReconnectBufSize)
	} else {
		nc.bw.setWriter(conn)
	}

	nc.br = bufio.NewReaderSize(conn, defaultBufSize)

	return nil
}

// processConnectInit performs the INFO/CONNECT handshake on a fresh socket
// and starts its reader and flusher. Must be called with nc.mu held.
func (nc *Conn) processConnectInit() error {
	nc.conn.SetDeadline(time.Now().Add(nc.Opts.Timeout))
	defer nc.conn.SetDeadline(time.Time{})

	nc.changeConnStatus(CONNECTING)

	if err := nc.processExpectedInfo(); err != nil {
		return err
	}

	if err := nc.sendConnect(); err != nil {
		return err
	}

	nc.pout = 0

	nc.wg.Add(2)
	go nc.readLoop()
	go nc.flusher()

	if nc.Opts.PingInterval > 0 {
		if nc.ptmr == nil {
			nc.ptmr = time.AfterFunc(nc.Opts.PingInterval, nc.processPingTimer)
		} else {
			nc.ptmr.Reset(nc.Opts.PingInterval)
		}
	}

	return nil
}

func (nc *Conn) processExpectedInfo() error {
	line, err := nc.br.ReadString('\n')
	if err != nil {
		return err
	}

	op, args := protocol.ParseControlLine(line)
	if op != string(protocol.INFO) {
		return ErrNoInfoReceived
	}

	return nc.processInfo([]byte(args))
}

// processInfo applies an INFO body. Must be called with nc.mu held.
func (nc *Conn) processInfo(arg []byte) error {
	info, err := protocol.ParseServerInfo(arg)
	if err != nil {
		return err
	}

	nc.info = *info

	if len(info.ConnectURLs) > 0 {
		added := nc.addDiscoveredServers(info.ConnectURLs)
		if cb := nc.Opts.DiscoveredServersCB; added && !nc.initc && cb != nil {
			nc.ach.push(func() { cb(nc) })
		}
	}

	if cb := nc.Opts.LameDuckModeHandler; info.LameDuckMode && !nc.initc && cb != nil {
		nc.ach.push(func() { cb(nc) })
	}

	return nil
}

func (nc *Conn) connectProto() ([]byte, error) {
	o := nc.Opts
	user, pass, token := o.User, o.Password, o.Token

	if u := nc.current.url.User; u != nil && user == "" && token == "" {
		if p, ok := u.Password(); ok {
			user, pass = u.Username(), p
		} else {
			token = u.Username()
		}
	}

	ci := protocol.ConnectInfo{
		Verbose:      o.Verbose,
		Pedantic:     o.Pedantic,
		Name:         o.Name,
		Lang:         LangString,
		Version:      meta.ClientVersion(),
		Protocol:     protocol.Version,
		Echo:         !o.NoEcho,
		Headers:      true,
		NoResponders: true,
		User:         user,
		Pass:         pass,
		Token:        token,
	}

	return protocol.AppendConnect(nil, &ci)
}

// sendConnect writes CONNECT and a PING, and waits for the PONG that
// confirms the server accepted us. Must be called with nc.mu held.
func (nc *Conn) sendConnect() error {
	if nc.Opts.NoEcho && nc.info.Proto < 1 {
		return ErrNoEchoNotSupported
	}

	cProto, err := nc.connectProto()
	if err != nil {
		return err
	}

	if err := nc.bw.writeDirect(cProto, protocol.PingProto); err != nil {
		return err
	}

	line, err := nc.br.ReadString('\n')
	if err != nil {
		return err
	}

	op, args := protocol.ParseControlLine(line)

	if nc.Opts.Verbose && op == string(protocol.OK) {
		if line, err = nc.br.ReadString('\n'); err != nil {
			return err
		}
		op, args = protocol.ParseControlLine(line)
	}

	switch op {
	case string(protocol.PONG):
	case string(protocol.ERR):
		ne := protocol.NormalizeErr(args)
		if authErr := checkAuthError(strings.ToLower(ne)); authErr != nil {
			nc.processAuthError(authErr)
			return authErr
		}
		return errors.New("nats: " + ne)
	default:
		return fmt.Errorf("nats: expected '%s', got '%s'", protocol.PONG, op)
	}

	nc.changeConnStatus(CONNECTED)

	return nil
}

// processAuthError records an auth error for the current server and
// reports whether the reconnect loop should give up. It does so when the
// same server rejects us twice in a row. Must be called with nc.mu held.
func (nc *Conn) processAuthError(err error) bool {
	nc.err = err

	if !nc.initc {
		nc.reportAsyncErrLocked(nil, err)
	}

	if nc.current.lastErr == err {
		nc.ar = true
	} else {
		nc.current.lastErr = err
	}

	return nc.ar
}

// reportAsyncErr hands err to the async error callback, or logs it when
// there is none. The callback runs on the dispatcher, never under nc.mu.
func (nc *Conn) reportAsyncErr(sub *Subscription, err error) {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	nc.reportAsyncErrLocked(sub, err)
}

// recordAsyncErr is reportAsyncErr that also keeps err as LastError.
func (nc *Conn) recordAsyncErr(sub *Subscription, err error) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.err = err
	nc.reportAsyncErrLocked(sub, err)
}

// reportAsyncErrLocked must be called with nc.mu held.
func (nc *Conn) reportAsyncErrLocked(sub *Subscription, err error) {
	if cb := nc.Opts.AsyncErrorCB; cb != nil {
		nc.ach.push(func() { cb(nc, sub, err) })
		return
	}

	fields := []zap.Field{zap.Error(err)}
	if sub != nil {
		fields = append(fields, zap.String("subject", sub.Subject), zap.Int64("sid", sub.sid))
	}

	nc.log.Error("Asynchronous error", fields...)
}

func (nc *Conn) readLoop() {
	defer nc.wg.Done()

	log := nc.log.Named("readLoop")

	nc.mu.Lock()
	conn, br := nc.conn, nc.br
	maxPayload := nc.info.MaxPayload
	nc.mu.Unlock()

	if conn == nil {
		return
	}

	parser := protocol.NewParser(&inbound{nc: nc})
	parser.SetMaxPayload(maxPayload)
	buf := make([]byte, defaultBufSize)

	for {
		n, err := br.Read(buf)
		if err != nil {
			log.Debug("Read failed", zap.Error(err))
			nc.processOpErr(err)
			return
		}

		if err := parser.Parse(buf[:n]); err != nil {
			log.Error("Failed to parse server protocol", zap.Error(err))
			nc.processParseErr(err)
			return
		}
	}
}

func (nc *Conn) flusher() {
	defer nc.wg.Done()

	log := nc.log.Named("flusher")

	nc.mu.Lock()
	bw, conn, fch := nc.bw, nc.conn, nc.fch
	nc.mu.Unlock()

	if conn == nil || bw == nil {
		return
	}

	for {
		if _, ok := <-fch; !ok {
			return
		}

		nc.mu.Lock()

		if !nc.isConnected() || nc.isConnecting() || conn != nc.conn {
			nc.mu.Unlock()
			return
		}

		if bw.buffered() > 0 {
			if nc.Opts.FlusherTimeout > 0 {
				conn.SetWriteDeadline(time.Now().Add(nc.Opts.FlusherTimeout))
			}

			if err := bw.flush(); err != nil {
				log.Warn("Failed to flush", zap.Error(err))

				if nc.err == nil {
					nc.err = err
				}
				nc.reportAsyncErrLocked(nil, err)
			}

			conn.SetWriteDeadline(time.Time{})
		}

		nc.mu.Unlock()
	}
}

// kickFlusher wakes the flusher. Must be called with nc.mu held.
func (nc *Conn) kickFlusher() {
	if nc.bw == nil {
		return
	}

	select {
	case nc.fch <- struct{}{}:
	default:
	}
}

// waitForExits makes the flusher of the previous socket return and waits
// for it and the reader to exit.
func (nc *Conn) waitForExits() {
	nc.mu.Lock()
	nc.kickFlusher()
	nc.mu.Unlock()

	nc.wg.Wait()
}

// Publish sends data to subject.
func (nc *Conn) Publish(subj string, data []byte) error {
	return nc.publish(subj, "", nil, data)
}

// PublishMsg publishes m, including its headers.
func (nc *Conn) PublishMsg(m *Msg) error {
	if m == nil {
		return ErrInvalidMsg
	}

	hdr, err := m.headerBytes()
	if err != nil {
		return err
	}

	return nc.publish(m.Subject, m.Reply, hdr, m.Data)
}

// PublishRequest publishes data to subject, asking for replies on reply.
func (nc *Conn) PublishRequest(subj, reply string, data []byte) error {
	return nc.publish(subj, reply, nil, data)
}

func (nc *Conn) publish(subj, reply string, hdr, data []byte) error {
	if nc == nil {
		return ErrInvalidConnection
	}

	if subj == "" || strings.ContainsAny(subj, " \t\r\n") {
		return ErrBadSubject
	}

	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return ErrConnectionClosed
	}

	if nc.isDrainingPubs() {
		nc.mu.Unlock()
		return ErrConnectionDraining
	}

	if len(hdr) > 0 && !nc.initc && !nc.info.Headers {
		nc.mu.Unlock()
		return ErrHeadersNotSupported
	}

	msgSize := len(hdr) + len(data)
	if !nc.initc && nc.info.MaxPayload > 0 && int64(msgSize) > nc.info.MaxPayload {
		nc.mu.Unlock()
		return ErrMaxPayload
	}

	if nc.bw.atLimitIfUsingPending() {
		nc.mu.Unlock()
		return ErrReconnectBufExceeded
	}

	hdrLen := -1
	if len(hdr) > 0 {
		hdrLen = len(hdr)
	}

	nc.scratch = protocol.AppendPub(nc.scratch[:0], subj, reply, hdrLen, msgSize)

	if err := nc.bw.appendBufs(nc.scratch, hdr, data, protocol.Terminal); err != nil {
		nc.mu.Unlock()
		return err
	}

	nc.stats.recordOut(len(data))

	if len(nc.fch) == 0 {
		nc.kickFlusher()
	}

	nc.mu.Unlock()

	return nil
}

// sendProto buffers a protocol line and kicks the flusher. Must be called
// with nc.mu held.
func (nc *Conn) sendProto(proto []byte) {
	nc.bw.appendBufs(proto)
	nc.kickFlusher()
}

// sendPing writes a PING right away, registering ch to be signalled on
// the matching PONG. Must be called with nc.mu held.
func (nc *Conn) sendPing(ch chan struct{}) {
	nc.pongs = append(nc.pongs, ch)
	nc.bw.appendBufs(protocol.PingProto)
	nc.bw.flush()
}

func (nc *Conn) processPingTimer() {
	nc.mu.Lock()

	if nc.status != CONNECTED {
		nc.mu.Unlock()
		return
	}

	nc.pout++
	if nc.pout > nc.Opts.MaxPingsOut {
		nc.mu.Unlock()
		nc.log.Warn("Too many outstanding pings, connection is stale", zap.Int("outstanding", nc.Opts.MaxPingsOut))
		nc.processOpErr(ErrStaleConnection)
		return
	}

	nc.sendPing(nil)
	nc.ptmr.Reset(nc.Opts.PingInterval)
	nc.mu.Unlock()
}

// stopPingTimer must be called with nc.mu held.
func (nc *Conn) stopPingTimer() {
	if nc.ptmr != nil {
		nc.ptmr.Stop()
	}
}

// clearPendingFlushCalls releases every Flush waiting for a PONG. Must be
// called with nc.mu held.
func (nc *Conn) clearPendingFlushCalls() {
	for _, ch := range nc.pongs {
		if ch != nil {
			close(ch)
		}
	}

	nc.pongs = nil
}

// clearPendingRequestCalls releases every request waiting for a reply.
// Must be called with nc.mu held.
func (nc *Conn) clearPendingRequestCalls() {
	for token, ch := range nc.respMap {
		if ch != nil {
			close(ch)
		}
		delete(nc.respMap, token)
	}
}

func (nc *Conn) removeFlushEntry(ch chan struct{}) bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	for i, c := range nc.pongs {
		if c == ch {
			nc.pongs[i] = nil
			return true
		}
	}

	return false
}

// Flush round trips a PING to the server, making sure everything published
// before it was processed. It waits up to 10 seconds.
func (nc *Conn) Flush() error {
	return nc.FlushTimeout(defaultFlushTimeout)
}

// FlushTimeout is Flush with a custom timeout.
func (nc *Conn) FlushTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return ErrBadTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := nc.FlushWithContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	return err
}

// FlushWithContext is Flush bounded by ctx.
func (nc *Conn) FlushWithContext(ctx context.Context) error {
	if nc == nil {
		return ErrInvalidConnection
	}

	if ctx == nil {
		return ErrInvalidContext
	}

	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return ErrConnectionClosed
	}

	// Buffered so a PONG arriving just as we time out does not block the
	// reader.
	ch := make(chan struct{}, 1)
	nc.sendPing(ch)
	nc.mu.Unlock()

	var err error

	select {
	case _, ok := <-ch:
		if !ok {
			err = ErrConnectionClosed
		}
	case <-ctx.Done():
		err = ctx.Err()
	}

	if err != nil {
		nc.removeFlushEntry(ch)
	}

	return err
}

// Barrier schedules f to run once every asynchronous subscription has
// delivered the messages it had pending when Barrier was called. With no
// asynchronous subscription f runs right away.
func (nc *Conn) Barrier(f func()) error {
	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return ErrConnectionClosed
	}

	nc.subsMu.Lock()

	var async []*Subscription
	for _, sub := range nc.subs {
		if sub.typ == AsyncSubscription {
			async = append(async, sub)
		}
	}

	if len(async) == 0 {
		nc.subsMu.Unlock()
		nc.mu.Unlock()
		f()
		return nil
	}

	b := &barrierInfo{refs: int64(len(async)), f: f}
	for _, sub := range async {
		sub.mu.Lock()
		sub.pQueue.push(&Msg{barrier: b})
		sub.pCond.Signal()
		sub.mu.Unlock()
	}

	nc.subsMu.Unlock()
	nc.mu.Unlock()

	return nil
}

// processOpErr handles a broken socket: it either starts reconnecting or
// closes the connection for good.
func (nc *Conn) processOpErr(err error) {
	nc.mu.Lock()

	if nc.isConnecting() || nc.isClosed() || nc.isReconnecting() {
		nc.mu.Unlock()
		return
	}

	if nc.Opts.AllowReconnect && nc.status == CONNECTED {
		nc.log.Warn("Connection lost, reconnecting", zap.String("server", nc.current.url.Host), zap.Error(err))

		nc.changeConnStatus(RECONNECTING)
		nc.stopPingTimer()

		if nc.conn != nil {
			nc.conn.Close()
			nc.conn = nil
		}

		nc.bw.switchToPending()
		nc.clearPendingFlushCalls()

		nc.reconnectWG.Add(1)
		go nc.doReconnect(err)

		nc.mu.Unlock()
		return
	}

	nc.changeConnStatus(DISCONNECTED)
	nc.err = err
	nc.mu.Unlock()

	nc.closeImpl(CLOSED, true, nil)
}

// processParseErr closes the connection: once the stream is out of sync
// nothing read from it can be trusted.
func (nc *Conn) processParseErr(err error) {
	nc.mu.Lock()
	if nc.isClosed() {
		nc.mu.Unlock()
		return
	}
	nc.err = err
	nc.mu.Unlock()

	nc.closeImpl(CLOSED, true, err)
}

// Close closes the connection, releasing every blocked caller. It returns
// once the reader, flusher and reconnect goroutines have exited. Close
// must not be called from a ReconnectDelayHandler.
func (nc *Conn) Close() {
	if nc == nil {
		return
	}

	nc.closeImpl(CLOSED, true, nil)

	nc.wg.Wait()
	nc.reconnectWG.Wait()
}

// closeImpl tears the connection down to status. Callbacks only run the
// first time; the dispatcher is released once status is CLOSED.
func (nc *Conn) closeImpl(status Status, doCBs bool, err error) {
	nc.mu.Lock()

	if nc.isClosed() {
		nc.status = status
		nc.mu.Unlock()
		return
	}

	nc.status = CLOSED

	nc.kickFlusher()

	if nc.rqch != nil {
		close(nc.rqch)
		nc.rqch = nil
	}

	nc.clearPendingFlushCalls()
	nc.clearPendingRequestCalls()

	nc.stopPingTimer()
	nc.ptmr = nil

	var teardownErr error

	conn := nc.conn
	if conn != nil {
		if !nc.ar && nc.bw != nil {
			teardownErr = nc.bw.flush()
		}
		teardownErr = multierr.Append(teardownErr, conn.Close())
	}

	nc.subsMu.Lock()
	for _, s := range nc.subs {
		s.mu.Lock()

		if s.mch != nil && s.typ == SyncSubscription {
			close(s.mch)
		}
		s.mch = nil
		s.closed = true
		s.connClosed = true

		if s.typ == AsyncSubscription && s.pCond != nil {
			s.pCond.Signal()
		}

		s.mu.Unlock()
	}
	nc.subs = nil
	nc.subsMu.Unlock()

	nc.changeConnStatus(status)

	if teardownErr != nil {
		nc.log.Debug("Socket did not close cleanly", zap.Error(teardownErr))
	}

	if doCBs {
		if cb := nc.Opts.DisconnectedErrCB; conn != nil && cb != nil {
			nc.ach.push(func() { cb(nc, err) })
		}
		if cb := nc.Opts.ClosedCB; cb != nil {
			nc.ach.push(func() { cb(nc) })
		}
	}

	if status == CLOSED {
		nc.log.Info("Connection closed")
		nc.ach.close()
	}

	nc.mu.Unlock()
}

// changeConnStatus must be called with nc.mu held.
func (nc *Conn) changeConnStatus(status Status) {
	if nc.status != status {
		nc.log.Debug("Status changed",
			zap.Stringer("from", nc.status),
			zap.Stringer("to", status))
	}

	nc.status = status
}

func (nc *Conn) isClosed() bool {
	return nc.status == CLOSED
}

func (nc *Conn) isConnecting() bool {
	return nc.status == CONNECTING
}

func (nc *Conn) isReconnecting() bool {
	return nc.status == RECONNECTING
}

func (nc *Conn) isConnected() bool {
	return nc.status == CONNECTED || nc.isDraining()
}

func (nc *Conn) isDraining() bool {
	return nc.status == DRAINING_SUBS || nc.status == DRAINING_PUBS
}

func (nc *Conn) isDrainingPubs() bool {
	return nc.status == DRAINING_PUBS
}

func (nc *Conn) Status() Status {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.status
}

func (nc *Conn) IsClosed() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.isClosed()
}

func (nc *Conn) IsReconnecting() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.isReconnecting()
}

// IsConnected is true while connected, including while draining.
func (nc *Conn) IsConnected() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.isConnected()
}

func (nc *Conn) IsDraining() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.isDraining()
}

// LastError reports the last error encountered via the connection.
func (nc *Conn) LastError() error {
	if nc == nil {
		return ErrInvalidConnection
	}

	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.err
}

// ConnectedUrl reports the URL of the server we are connected to, or ""
// when not connected.
func (nc *Conn) ConnectedUrl() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED {
		return ""
	}

	return nc.current.url.String()
}

// ConnectedAddr is the address of the socket we are connected to.
func (nc *Conn) ConnectedAddr() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED || nc.conn == nil {
		return ""
	}

	return nc.conn.RemoteAddr().String()
}

func (nc *Conn) ConnectedServerId() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED {
		return ""
	}

	return nc.info.ID
}

func (nc *Conn) ConnectedServerName() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED {
		return ""
	}

	return nc.info.Name
}

func (nc *Conn) ConnectedClusterName() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED {
		return ""
	}

	return nc.info.Cluster
}

func (nc *Conn) ConnectedServerVersion() string {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.status != CONNECTED {
		return ""
	}

	return nc.info.Version
}

// MaxPayload is the largest message the server accepts.
func (nc *Conn) MaxPayload() int64 {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.info.MaxPayload
}

// HeadersSupported reports whether the server understands HPUB.
func (nc *Conn) HeadersSupported() bool {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	return nc.info.Headers
}

// Buffered returns the number of bytes waiting to be written.
func (nc *Conn) Buffered() (int, error) {
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	if nc.isClosed() || nc.bw == nil {
		return -1, ErrConnectionClosed
	}

	return nc.bw.buffered(), nil
}

// NumSubscriptions returns the number of active subscriptions.
func (nc *Conn) NumSubscriptions() int {
	nc.subsMu.RLock()
	defer nc.subsMu.RUnlock()

	return len(nc.subs)
}

func (nc *Conn) SetErrorHandler(cb ErrHandler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.Opts.AsyncErrorCB = cb
}

func (nc *Conn) SetClosedHandler(cb ConnHandler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.Opts.ClosedCB = cb
}

func (nc *Conn) SetDisconnectErrHandler(cb ConnErrHandler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.Opts.DisconnectedErrCB = cb
}

func (nc *Conn) SetReconnectHandler(cb ConnHandler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.Opts.ReconnectedCB = cb
}

func (nc *Conn) SetDiscoveredServersHandler(cb ConnHandler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.Opts.DiscoveredServersCB = cb
}
