package testserver

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/herald/protocol"
)

const (
	writeQueueSize = 1024
	readBufSize    = 32 * 1024
)

var noRespondersHdr = []byte("NATS/1.0 " + protocol.StatusNoResponders + "\r\n\r\n")

type client struct {
	srv  *Server
	conn net.Conn
	cid  uint64
	log  *zap.Logger

	writeQueue chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	closeErr   error

	// Set by CONNECT, only touched by the read loop.
	connected    bool
	verbose      bool
	echo         bool
	headers      bool
	noResponders bool

	// Guarded by srv.mu.
	subs map[int64]*subscription
}

func newClient(srv *Server, conn net.Conn, cid uint64, log *zap.Logger) *client {
	return &client{
		srv:        srv,
		conn:       conn,
		cid:        cid,
		log:        log,
		writeQueue: make(chan []byte, writeQueueSize),
		done:       make(chan struct{}),
		echo:       true,
		subs:       make(map[int64]*subscription),
	}
}

func (c *client) remoteIP() string {
	if addr, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}

	return ""
}

func (c *client) start() {
	info := c.srv.info(c)

	raw, err := protocol.AppendInfo(nil, &info)
	if err != nil {
		c.log.Error("Failed to encode INFO", zap.Error(err))
		c.close()
		return
	}

	c.send(raw)

	var loopWaiter sync.WaitGroup

	loopWaiter.Add(1)
	go func() {
		defer loopWaiter.Done()
		c.writeLoop()
	}()

	c.readLoop()
	c.close()

	loopWaiter.Wait()
}

// send queues raw for the write loop. A nil raw closes the connection once
// everything queued before it was written.
func (c *client) send(raw []byte) {
	select {
	case c.writeQueue <- raw:
	case <-c.done:
	}
}

func (c *client) sendErr(msg string) {
	c.send(protocol.AppendErr(nil, msg))
}

func (c *client) close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.conn.Close()
		c.srv.removeClient(c)
	})

	return c.closeErr
}

func (c *client) writeLoop() {
	log := c.log.Named("writeLoop")

	for {
		select {
		case <-c.done:
			return

		case data := <-c.writeQueue:
			if data == nil {
				c.close()
				return
			}

			if _, err := c.conn.Write(data); err != nil {
				log.Debug("Write failed", zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (c *client) readLoop() {
	log := c.log.Named("readLoop")
	br := bufio.NewReaderSize(c.conn, readBufSize)

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			log.Debug("Read failed", zap.Error(err))
			return
		}

		op, args := protocol.ParseControlLine(line)

		if c.srv.opts.Trace {
			log.Debug("<<-", zap.String("op", op), zap.String("args", args))
		}

		if !c.connected && op != string(protocol.CONNECT) && c.srv.opts.AuthToken != "" {
			c.fail("Authorization Violation")
			return
		}

		switch protocol.Op(op) {
		case protocol.CONNECT:
			if !c.processConnect(args) {
				return
			}

		case protocol.PING:
			c.send(protocol.PongProto)
			continue

		case protocol.PONG:
			continue

		case protocol.SUB:
			if !c.processSub(args) {
				return
			}

		case protocol.UNSUB:
			if !c.processUnsub(args) {
				return
			}

		case protocol.PUB, protocol.HPUB:
			if !c.processPub(br, op == string(protocol.HPUB), args) {
				return
			}

		default:
			c.fail("Unknown Protocol Operation")
			return
		}

		if c.verbose {
			c.send(protocol.OkProto)
		}
	}
}

// fail sends -ERR and closes the connection after it was written.
func (c *client) fail(msg string) {
	c.sendErr(msg)
	c.send(nil)
}

func (c *client) processConnect(args string) bool {
	ci, err := protocol.ParseConnectInfo([]byte(args))
	if err != nil {
		c.fail("Invalid CONNECT")
		return false
	}

	if token := c.srv.opts.AuthToken; token != "" && ci.Token != token {
		c.log.Info("Rejecting client", zap.String("name", ci.Name))
		c.fail("Authorization Violation")
		return false
	}

	c.connected = true
	c.verbose = ci.Verbose
	c.echo = ci.Echo
	c.headers = ci.Headers
	c.noResponders = ci.NoResponders

	c.log.Debug("Client connected", zap.String("name", ci.Name), zap.String("lang", ci.Lang))

	return true
}

func (c *client) processSub(args string) bool {
	fields := strings.Fields(args)

	var subject, queue, rawSid string

	switch len(fields) {
	case 2:
		subject, rawSid = fields[0], fields[1]
	case 3:
		subject, queue, rawSid = fields[0], fields[1], fields[2]
	default:
		c.fail("Invalid Subscription")
		return false
	}

	sid, err := strconv.ParseInt(rawSid, 10, 64)
	if err != nil {
		c.fail("Invalid Subscription")
		return false
	}

	sub := &subscription{client: c, subject: subject, queue: queue, sid: sid}

	s := c.srv
	s.mu.Lock()
	if old, ok := c.subs[sid]; ok {
		s.sublist.remove(old)
	}
	c.subs[sid] = sub
	s.sublist.insert(sub)
	s.mu.Unlock()

	return true
}

func (c *client) processUnsub(args string) bool {
	fields := strings.Fields(args)
	if len(fields) < 1 || len(fields) > 2 {
		c.fail("Invalid Unsubscribe")
		return false
	}

	sid, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		c.fail("Invalid Unsubscribe")
		return false
	}

	var max uint64
	if len(fields) == 2 {
		if max, err = strconv.ParseUint(fields[1], 10, 64); err != nil {
			c.fail("Invalid Unsubscribe")
			return false
		}
	}

	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := c.subs[sid]
	if !ok {
		return true
	}

	if max > 0 && sub.delivered < max {
		sub.max = max
		return true
	}

	s.sublist.remove(sub)
	delete(c.subs, sid)

	return true
}

func (c *client) processPub(br *bufio.Reader, withHeaders bool, args string) bool {
	fields := strings.Fields(args)

	want := 2
	if withHeaders {
		want = 3
	}

	if len(fields) != want && len(fields) != want+1 {
		c.fail("Invalid Publish")
		return false
	}

	subject := fields[0]

	var reply string
	if len(fields) == want+1 {
		reply = fields[1]
	}

	size, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || size < 0 {
		c.fail("Invalid Publish")
		return false
	}

	hdrLen := -1
	if withHeaders {
		if hdrLen, err = strconv.Atoi(fields[len(fields)-2]); err != nil || hdrLen > size {
			c.fail("Invalid Publish")
			return false
		}
	}

	if int64(size) > c.srv.opts.MaxPayload {
		c.fail("Maximum Payload Violation")
		return false
	}

	body := make([]byte, size+2)
	if _, err := io.ReadFull(br, body); err != nil {
		return false
	}

	c.srv.route(c, subject, reply, hdrLen, body[:size])

	return true
}

type delivery struct {
	client *client
	sid    int64
}

// route delivers a published message to every matching subscription. A
// request nobody listens to is answered with a no responders status when
// the publisher asked for it.
func (s *Server) route(from *client, subject, reply string, hdrLen int, body []byte) {
	s.mu.Lock()

	var deliveries []delivery

	for _, sub := range s.sublist.match(subject) {
		if sub.client == from && !from.echo {
			continue
		}

		sub.delivered++
		if sub.max > 0 && sub.delivered >= sub.max {
			s.sublist.remove(sub)
			delete(sub.client.subs, sub.sid)
		}

		deliveries = append(deliveries, delivery{client: sub.client, sid: sub.sid})
	}

	if len(deliveries) == 0 && reply != "" && from.headers && from.noResponders {
		for _, sub := range from.subs {
			if subjectMatches(sub.subject, reply) {
				deliveries = append(deliveries, delivery{client: from, sid: sub.sid})
				subject, hdrLen, body = reply, len(noRespondersHdr), noRespondersHdr
				reply = ""
				break
			}
		}
	}

	s.mu.Unlock()

	for _, d := range deliveries {
		raw := protocol.AppendMsg(make([]byte, 0, len(body)+64), subject, d.sid, reply, hdrLen, len(body))
		raw = append(raw, body...)
		raw = append(raw, protocol.Terminal...)

		d.client.send(raw)
	}
}
