// Package testserver is a minimal in-process message broker speaking the
// client side of the NATS protocol. It backs the integration tests of the
// client and is not meant for production use.
package testserver

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	reuseport "github.com/kavu/go_reuseport"
	"github.com/nats-io/nuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/herald/protocol"
)

const (
	defaultHost       = "127.0.0.1"
	defaultMaxPayload = 1024 * 1024
	serverVersion     = "2.2.0"
)

type Server struct {
	opts Options
	id   string
	log  *zap.Logger

	listener   net.Listener
	loopWaiter sync.WaitGroup

	mu       sync.Mutex
	clients  map[*client]struct{}
	sublist  *sublist
	cid      uint64
	lameDuck bool
	running  bool
}

func New(options Options) *Server {
	if options.Host == "" {
		options.Host = defaultHost
	}

	if options.MaxPayload == 0 {
		options.MaxPayload = defaultMaxPayload
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &Server{
		opts:    options,
		id:      nuid.Next(),
		log:     options.Log,
		clients: make(map[*client]struct{}),
		sublist: newSublist(),
	}
}

// Run creates and starts a server, failing if it cannot listen.
func Run(options Options) (*Server, error) {
	s := New(options)

	if err := s.Start(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	var (
		listener net.Listener
		err      error
	)

	if s.opts.Reuseport {
		listener, err = reuseport.Listen("tcp", addr)
	} else {
		listener, err = net.Listen("tcp", addr)
	}

	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("Listening", zap.String("addr", listener.Addr().String()))

	s.loopWaiter.Add(1)
	go func() {
		defer s.loopWaiter.Done()
		s.acceptLoop(listener)
	}()

	return nil
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// URL returns a nats:// URL clients can connect to.
func (s *Server) URL() string {
	return "nats://" + s.Addr()
}

func (s *Server) Port() int {
	addr, ok := s.listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}

	return addr.Port
}

func (s *Server) acceptLoop(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				return
			}

			s.log.Warn("Accept failed", zap.Error(err))
			return
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}

		s.cid++
		c := newClient(s, conn, s.cid, s.log.Named("client").With(zap.Uint64("cid", s.cid)))
		s.clients[c] = struct{}{}
		s.mu.Unlock()

		s.loopWaiter.Add(1)
		go func() {
			defer s.loopWaiter.Done()
			c.start()
		}()
	}
}

func (s *Server) info(c *client) protocol.ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.infoLocked(c)
}

func (s *Server) infoLocked(c *client) protocol.ServerInfo {
	info := protocol.ServerInfo{
		ID:           s.id,
		Name:         "herald-testserver",
		Proto:        protocol.Version,
		Version:      serverVersion,
		Host:         s.opts.Host,
		Headers:      !s.opts.NoHeaders,
		AuthRequired: s.opts.AuthToken != "",
		MaxPayload:   s.opts.MaxPayload,
		ConnectURLs:  s.opts.ConnectURLs,
		LameDuckMode: s.lameDuck,
	}

	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			info.Port = addr.Port
		}
	}

	if c != nil {
		info.ClientID = c.cid
		info.ClientIP = c.remoteIP()
	}

	return info
}

// NumClients returns the number of connected clients.
func (s *Server) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

// NumSubscriptions returns the number of subscriptions across clients.
func (s *Server) NumSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sublist.len()
}

func (s *Server) snapshotClients() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}

	return clients
}

// DropClients closes every client socket while the server keeps running.
func (s *Server) DropClients() {
	for _, c := range s.snapshotClients() {
		c.close()
	}
}

// SendErr sends -ERR with msg to every client.
func (s *Server) SendErr(msg string) {
	s.Broadcast(protocol.AppendErr(nil, msg))
}

// Broadcast writes raw protocol bytes to every client.
func (s *Server) Broadcast(raw []byte) {
	for _, c := range s.snapshotClients() {
		c.send(raw)
	}
}

// EnterLameDuckMode announces to every client that the server is about
// to go away.
func (s *Server) EnterLameDuckMode() error {
	s.mu.Lock()
	s.lameDuck = true
	s.mu.Unlock()

	return s.sendInfo()
}

// Advertise announces urls as other cluster members to every client.
func (s *Server) Advertise(urls ...string) error {
	s.mu.Lock()
	s.opts.ConnectURLs = urls
	s.mu.Unlock()

	return s.sendInfo()
}

func (s *Server) sendInfo() (err error) {
	for _, c := range s.snapshotClients() {
		info := s.info(c)

		raw, ierr := protocol.AppendInfo(nil, &info)
		if ierr != nil {
			err = multierr.Append(err, ierr)
			continue
		}

		c.send(raw)
	}

	return err
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.clients, c)
	s.sublist.removeClient(c)
}

// Close immediately closes the listener and all client connections.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	s.log.Info("Stopping server")

	err := listener.Close()

	for _, c := range s.snapshotClients() {
		err = multierr.Append(err, c.close())
	}

	s.loopWaiter.Wait()

	s.log.Info("Server stopped")

	return err
}

// Shutdown is Close bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)

	go func() {
		done <- s.Close()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
