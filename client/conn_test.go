package client_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/herald/client"
	"github.com/luma/herald/internal/testserver"
	"github.com/luma/herald/protocol"
)

func runServer(opts testserver.Options) *testserver.Server {
	s, err := testserver.Run(opts)
	Expect(err).To(Succeed())

	return s
}

func connect(s *testserver.Server, opts ...client.Option) *client.Conn {
	opts = append([]client.Option{
		client.ReconnectWait(20 * time.Millisecond),
		client.ReconnectJitter(0),
	}, opts...)

	nc, err := client.Connect(s.URL(), opts...)
	Expect(err).To(Succeed())

	return nc
}

type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errRecorder) handler(_ *client.Conn, _ *client.Subscription, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

func (r *errRecorder) count(target error) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	for _, err := range r.errs {
		if errors.Is(err, target) {
			n++
		}
	}

	return n
}

var _ = Describe("Conn", func() {
	var s *testserver.Server

	BeforeEach(func() {
		s = runServer(testserver.Options{})
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	Describe("connecting", func() {
		It("handshakes and reports the server", func() {
			nc := connect(s, client.Name("tester"))
			defer nc.Close()

			Expect(nc.Status()).To(Equal(client.CONNECTED))
			Expect(nc.IsConnected()).To(BeTrue())
			Expect(nc.ConnectedUrl()).To(Equal(s.URL()))
			Expect(nc.ConnectedServerName()).To(Equal("herald-testserver"))
			Expect(nc.ConnectedServerId()).NotTo(BeEmpty())
			Expect(nc.MaxPayload()).To(Equal(int64(1024 * 1024)))
			Expect(nc.HeadersSupported()).To(BeTrue())
		})

		It("fails with no servers when nothing listens", func() {
			addr := s.Addr()
			Expect(s.Close()).To(Succeed())

			_, err := client.Connect("nats://" + addr)
			Expect(err).To(MatchError(client.ErrNoServers))

			s = runServer(testserver.Options{})
		})

		It("rejects a bad token", func() {
			Expect(s.Close()).To(Succeed())
			s = runServer(testserver.Options{AuthToken: "secret"})

			_, err := client.Connect(s.URL(), client.Token("nope"))
			Expect(err).To(MatchError(client.ErrAuthorization))
			Expect(client.Classify(err)).To(Equal(client.ClassAuth))

			nc, err := client.Connect(s.URL(), client.Token("secret"))
			Expect(err).To(Succeed())
			nc.Close()
		})

		It("keeps retrying when asked to", func() {
			port := s.Port()
			Expect(s.Close()).To(Succeed())

			connected := make(chan struct{})

			nc, err := client.Connect(s.URL(),
				client.RetryOnFailedConnect(true),
				client.ReconnectWait(20*time.Millisecond),
				client.ReconnectJitter(0),
				client.MaxReconnects(-1),
				client.ConnectHandler(func(*client.Conn) { close(connected) }),
			)
			Expect(err).To(Succeed())
			defer nc.Close()

			Expect(nc.IsReconnecting()).To(BeTrue())

			sub, err := nc.SubscribeSync("early")
			Expect(err).To(Succeed())
			Expect(nc.Publish("early", []byte("buffered"))).To(Succeed())

			s = runServer(testserver.Options{Port: port, Reuseport: true})

			Eventually(connected, 5*time.Second).Should(BeClosed())

			m, err := sub.NextMsg(2 * time.Second)
			Expect(err).To(Succeed())
			Expect(string(m.Data)).To(Equal("buffered"))
		})
	})

	Describe("publish and subscribe", func() {
		It("delivers to an asynchronous subscription", func() {
			nc := connect(s)
			defer nc.Close()

			received := make(chan *client.Msg, 1)

			_, err := nc.Subscribe("greet.*", func(m *client.Msg) {
				received <- m
			})
			Expect(err).To(Succeed())

			Expect(nc.Publish("greet.joe", []byte("hello"))).To(Succeed())
			Expect(nc.Flush()).To(Succeed())

			var m *client.Msg
			Eventually(received).Should(Receive(&m))
			Expect(m.Subject).To(Equal("greet.joe"))
			Expect(string(m.Data)).To(Equal("hello"))

			stats := nc.Stats()
			Expect(stats.OutMsgs).To(Equal(uint64(1)))
			Expect(stats.InMsgs).To(Equal(uint64(1)))
			Expect(stats.InBytes).To(Equal(uint64(5)))
		})

		It("carries headers", func() {
			nc := connect(s)
			defer nc.Close()

			sub, err := nc.SubscribeSync("hdr")
			Expect(err).To(Succeed())

			msg := client.NewMsg("hdr")
			msg.Header.Set("X-Trace", "abc")
			msg.Header.Add("X-Multi", "1")
			msg.Header.Add("X-Multi", "2")
			msg.Data = []byte("body")

			Expect(nc.PublishMsg(msg)).To(Succeed())

			m, err := sub.NextMsg(time.Second)
			Expect(err).To(Succeed())
			Expect(m.Header.Get("X-Trace")).To(Equal("abc"))
			Expect(m.Header.Values("X-Multi")).To(Equal([]string{"1", "2"}))
			Expect(string(m.Data)).To(Equal("body"))
		})

		It("validates subjects", func() {
			nc := connect(s)
			defer nc.Close()

			Expect(nc.Publish("", nil)).To(MatchError(client.ErrBadSubject))
			Expect(nc.Publish("a b", nil)).To(MatchError(client.ErrBadSubject))

			_, err := nc.SubscribeSync("foo..bar")
			Expect(err).To(MatchError(client.ErrBadSubject))

			_, err = nc.QueueSubscribeSync("foo", "bad queue")
			Expect(err).To(MatchError(client.ErrBadQueueName))
		})

		It("enforces the announced max payload", func() {
			Expect(s.Close()).To(Succeed())
			s = runServer(testserver.Options{MaxPayload: 8})

			nc := connect(s)
			defer nc.Close()

			Expect(nc.Publish("big", make([]byte, 9))).To(MatchError(client.ErrMaxPayload))
			Expect(nc.Publish("small", make([]byte, 8))).To(Succeed())
		})

		It("honours auto unsubscribe", func() {
			nc := connect(s)
			defer nc.Close()

			sub, err := nc.SubscribeSync("limited")
			Expect(err).To(Succeed())
			Expect(sub.AutoUnsubscribe(2)).To(Succeed())

			for i := 0; i < 5; i++ {
				Expect(nc.Publish("limited", []byte("x"))).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			for i := 0; i < 2; i++ {
				_, err := sub.NextMsg(time.Second)
				Expect(err).To(Succeed())
			}

			_, err = sub.NextMsg(100 * time.Millisecond)
			Expect(err).To(MatchError(client.ErrMaxMessages))
			Expect(sub.IsValid()).To(BeFalse())
		})

		It("times out waiting on a synchronous subscription", func() {
			nc := connect(s)
			defer nc.Close()

			sub, err := nc.SubscribeSync("quiet")
			Expect(err).To(Succeed())

			_, err = sub.NextMsg(50 * time.Millisecond)
			Expect(err).To(MatchError(client.ErrTimeout))

			_, err = sub.NextMsg(0)
			Expect(err).To(MatchError(client.ErrBadTimeout))
		})

		It("refuses NextMsg on an asynchronous subscription", func() {
			nc := connect(s)
			defer nc.Close()

			sub, err := nc.Subscribe("async", func(*client.Msg) {})
			Expect(err).To(Succeed())

			_, err = sub.NextMsg(time.Second)
			Expect(err).To(MatchError(client.ErrSyncSubRequired))
		})

		It("delivers into a caller channel", func() {
			nc := connect(s)
			defer nc.Close()

			ch := make(chan *client.Msg, 4)
			sub, err := nc.ChanSubscribe("chan", ch)
			Expect(err).To(Succeed())
			Expect(sub.Type()).To(Equal(client.ChanSubscription))

			Expect(nc.Publish("chan", []byte("1"))).To(Succeed())
			Eventually(ch).Should(Receive())

			_, _, err = sub.Pending()
			Expect(err).To(MatchError(client.ErrTypeSubscription))
		})

		It("shares messages across a queue group", func() {
			nc := connect(s)
			defer nc.Close()

			var a, b int32
			_, err := nc.QueueSubscribe("work", "workers", func(*client.Msg) { atomic.AddInt32(&a, 1) })
			Expect(err).To(Succeed())
			_, err = nc.QueueSubscribe("work", "workers", func(*client.Msg) { atomic.AddInt32(&b, 1) })
			Expect(err).To(Succeed())

			for i := 0; i < 50; i++ {
				Expect(nc.Publish("work", nil)).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			Eventually(func() int32 {
				return atomic.LoadInt32(&a) + atomic.LoadInt32(&b)
			}).Should(Equal(int32(50)))
		})

		It("delivers a message with a malformed header block without headers", func() {
			errs := &errRecorder{}

			nc := connect(s, client.ErrorHandler(errs.handler))
			defer nc.Close()

			sub, err := nc.SubscribeSync("bad")
			Expect(err).To(Succeed())
			Expect(nc.Flush()).To(Succeed())

			s.Broadcast([]byte("HMSG bad 1 6 11\r\nJUNK\r\nhello\r\n"))

			m, err := sub.NextMsg(time.Second)
			Expect(err).To(Succeed())
			Expect(string(m.Data)).To(Equal("hello"))
			Expect(m.Header).To(BeNil())

			Eventually(func() int { return errs.count(client.ErrBadHeaderMsg) }).Should(Equal(1))
			Expect(nc.LastError()).To(MatchError(client.ErrBadHeaderMsg))
			Expect(nc.IsConnected()).To(BeTrue())
		})

		It("fails a second unsubscribe", func() {
			nc := connect(s)
			defer nc.Close()

			sub, err := nc.SubscribeSync("once")
			Expect(err).To(Succeed())

			Expect(sub.Unsubscribe()).To(Succeed())
			Expect(sub.Unsubscribe()).To(MatchError(client.ErrBadSubscription))
			Expect(nc.NumSubscriptions()).To(Equal(0))
		})
	})

	Describe("slow consumers", func() {
		It("reports a synchronous subscription falling behind once", func() {
			errs := &errRecorder{}

			nc := connect(s, client.SyncQueueLen(1), client.ErrorHandler(errs.handler))
			defer nc.Close()

			sub, err := nc.SubscribeSync("flood")
			Expect(err).To(Succeed())

			for i := 0; i < 10; i++ {
				Expect(nc.Publish("flood", []byte("x"))).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			Eventually(func() int { return errs.count(client.ErrSlowConsumer) }).Should(Equal(1))
			Consistently(func() int { return errs.count(client.ErrSlowConsumer) }, 200*time.Millisecond).Should(Equal(1))

			dropped, err := sub.Dropped()
			Expect(err).To(Succeed())
			Expect(dropped).To(Equal(9))

			Expect(nc.LastError()).To(MatchError(client.ErrSlowConsumer))

			_, err = sub.NextMsg(time.Second)
			Expect(err).To(MatchError(client.ErrSlowConsumer))

			_, err = sub.NextMsg(time.Second)
			Expect(err).To(Succeed())
		})

		It("drops past the pending limits of an asynchronous subscription", func() {
			errs := &errRecorder{}

			nc := connect(s, client.ErrorHandler(errs.handler))
			defer nc.Close()

			release := make(chan struct{})
			var delivered int32

			sub, err := nc.Subscribe("flood", func(*client.Msg) {
				<-release
				atomic.AddInt32(&delivered, 1)
			})
			Expect(err).To(Succeed())
			Expect(sub.SetPendingLimits(2, -1)).To(Succeed())
			Expect(sub.SetPendingLimits(0, 1)).To(MatchError(client.ErrInvalidArg))

			for i := 0; i < 10; i++ {
				Expect(nc.Publish("flood", []byte("x"))).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			Eventually(func() int { return errs.count(client.ErrSlowConsumer) }).Should(Equal(1))

			msgs, _, err := sub.Pending()
			Expect(err).To(Succeed())
			Expect(msgs).To(Equal(2))

			close(release)

			Eventually(func() int32 { return atomic.LoadInt32(&delivered) }).Should(Equal(int32(2)))
			Consistently(func() int { return errs.count(client.ErrSlowConsumer) }, 100*time.Millisecond).Should(Equal(1))

			maxMsgs, _, err := sub.MaxPending()
			Expect(err).To(Succeed())
			Expect(maxMsgs).To(Equal(2))
		})
	})

	Describe("request and reply", func() {
		respond := func(nc *client.Conn) {
			_, err := nc.Subscribe("service", func(m *client.Msg) {
				_ = m.Respond(append([]byte("re: "), m.Data...))
			})
			Expect(err).To(Succeed())
			Expect(nc.Flush()).To(Succeed())
		}

		for _, oldStyle := range []bool{false, true} {
			oldStyle := oldStyle

			opts := func() []client.Option {
				if oldStyle {
					return []client.Option{client.UseOldRequestStyle()}
				}
				return nil
			}

			name := "with a shared response subscription"
			if oldStyle {
				name = "with an inbox per request"
			}

			Context(name, func() {
				It("returns the reply", func() {
					nc := connect(s, opts()...)
					defer nc.Close()

					respond(nc)

					for i := 0; i < 3; i++ {
						m, err := nc.Request("service", []byte("ping"), time.Second)
						Expect(err).To(Succeed())
						Expect(string(m.Data)).To(Equal("re: ping"))
					}
				})

				It("fails fast without responders", func() {
					nc := connect(s, opts()...)
					defer nc.Close()

					start := time.Now()
					_, err := nc.Request("nobody.home", nil, 5*time.Second)
					Expect(err).To(MatchError(client.ErrNoResponders))
					Expect(time.Since(start)).To(BeNumerically("<", time.Second))
				})

				It("times out", func() {
					nc := connect(s, opts()...)
					defer nc.Close()

					_, err := nc.Subscribe("sleepy", func(*client.Msg) {})
					Expect(err).To(Succeed())

					_, err = nc.Request("sleepy", nil, 50*time.Millisecond)
					Expect(err).To(MatchError(client.ErrTimeout))
				})
			})
		}

		It("serves concurrent requests over one subscription", func() {
			nc := connect(s)
			defer nc.Close()

			respond(nc)

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					payload := []byte{byte('a' + i)}
					m, err := nc.Request("service", payload, 2*time.Second)
					Expect(err).To(Succeed())
					Expect(m.Data).To(Equal(append([]byte("re: "), payload...)))
				}(i)
			}
			wg.Wait()

			// One for the responder, one shared by every request.
			Expect(nc.NumSubscriptions()).To(Equal(2))
		})

		It("releases pending requests on close", func() {
			nc := connect(s)

			_, err := nc.Subscribe("sleepy", func(*client.Msg) {})
			Expect(err).To(Succeed())

			done := make(chan error, 1)
			go func() {
				_, err := nc.Request("sleepy", nil, 5*time.Second)
				done <- err
			}()

			Eventually(func() int { return nc.NumSubscriptions() }).Should(Equal(2))
			nc.Close()

			Eventually(done).Should(Receive(MatchError(client.ErrConnectionClosed)))
		})
	})

	Describe("reconnecting", func() {
		It("replays subscriptions and buffered publishes", func() {
			reconnected := make(chan struct{}, 1)
			disconnected := make(chan error, 1)

			nc := connect(s,
				client.ReconnectWait(100*time.Millisecond),
				client.ReconnectHandler(func(*client.Conn) { reconnected <- struct{}{} }),
				client.DisconnectErrHandler(func(_ *client.Conn, err error) { disconnected <- err }),
			)
			defer nc.Close()

			sub, err := nc.SubscribeSync("durable")
			Expect(err).To(Succeed())
			Expect(nc.Flush()).To(Succeed())

			s.DropClients()

			Eventually(nc.IsReconnecting).Should(BeTrue())
			Eventually(disconnected).Should(Receive())

			Expect(nc.Publish("durable", []byte("while away"))).To(Succeed())

			Eventually(reconnected, 2*time.Second).Should(Receive())
			Expect(nc.Stats().Reconnects).To(Equal(uint64(1)))

			m, err := sub.NextMsg(time.Second)
			Expect(err).To(Succeed())
			Expect(string(m.Data)).To(Equal("while away"))
			Expect(s.NumSubscriptions()).To(Equal(1))
		})

		It("bounds what is buffered while reconnecting", func() {
			nc := connect(s,
				client.ReconnectWait(time.Second),
				client.ReconnectBufSize(32),
			)
			defer nc.Close()

			s.DropClients()
			Eventually(nc.IsReconnecting).Should(BeTrue())

			Expect(nc.Publish("spill", make([]byte, 64))).To(Succeed())
			Expect(nc.Publish("spill", nil)).To(MatchError(client.ErrReconnectBufExceeded))
		})

		It("closes once reconnects are disabled", func() {
			closed := make(chan struct{})

			nc := connect(s,
				client.NoReconnect(),
				client.ClosedHandler(func(*client.Conn) { close(closed) }),
			)
			defer nc.Close()

			s.DropClients()

			Eventually(closed).Should(BeClosed())
			Expect(nc.IsClosed()).To(BeTrue())
		})

		It("closes promptly while waiting to reconnect", func() {
			for i := 0; i < 10; i++ {
				nc := connect(s, client.ReconnectWait(time.Minute))

				s.DropClients()

				closed := make(chan struct{})
				go func() {
					defer close(closed)
					nc.Close()
				}()

				Eventually(closed, 2*time.Second).Should(BeClosed())
				Expect(nc.IsClosed()).To(BeTrue())
			}
		})

		It("gives up when the pool runs dry", func() {
			closed := make(chan struct{})

			nc := connect(s,
				client.MaxReconnects(2),
				client.ClosedHandler(func(*client.Conn) { close(closed) }),
			)
			defer nc.Close()

			Expect(s.Close()).To(Succeed())

			Eventually(closed, 2*time.Second).Should(BeClosed())
			Expect(nc.LastError()).To(MatchError(client.ErrNoServers))

			s = runServer(testserver.Options{})
		})
	})

	Describe("closing", func() {
		It("is idempotent and runs callbacks once", func() {
			var closedCalls, disconnectCalls int32

			nc := connect(s,
				client.ClosedHandler(func(*client.Conn) { atomic.AddInt32(&closedCalls, 1) }),
				client.DisconnectErrHandler(func(*client.Conn, error) { atomic.AddInt32(&disconnectCalls, 1) }),
			)

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					nc.Close()
				}()
			}
			wg.Wait()

			Eventually(func() int32 { return atomic.LoadInt32(&closedCalls) }).Should(Equal(int32(1)))
			Consistently(func() int32 { return atomic.LoadInt32(&closedCalls) }, 100*time.Millisecond).Should(Equal(int32(1)))
			Expect(atomic.LoadInt32(&disconnectCalls)).To(Equal(int32(1)))

			Expect(nc.Publish("late", nil)).To(MatchError(client.ErrConnectionClosed))
			Expect(nc.Flush()).To(MatchError(client.ErrConnectionClosed))

			_, err := nc.SubscribeSync("late")
			Expect(err).To(MatchError(client.ErrConnectionClosed))
		})

		It("wakes synchronous subscribers", func() {
			nc := connect(s)

			sub, err := nc.SubscribeSync("waiting")
			Expect(err).To(Succeed())

			done := make(chan error, 1)
			go func() {
				_, err := sub.NextMsg(5 * time.Second)
				done <- err
			}()

			time.Sleep(20 * time.Millisecond)
			nc.Close()

			Eventually(done).Should(Receive(MatchError(client.ErrConnectionClosed)))
		})
	})

	Describe("draining", func() {
		It("delivers what is pending before closing", func() {
			closed := make(chan struct{})

			nc := connect(s, client.ClosedHandler(func(*client.Conn) { close(closed) }))
			defer nc.Close()

			var delivered int32
			_, err := nc.Subscribe("drain", func(*client.Msg) {
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&delivered, 1)
			})
			Expect(err).To(Succeed())

			for i := 0; i < 20; i++ {
				Expect(nc.Publish("drain", nil)).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			Expect(nc.Drain()).To(Succeed())
			Expect(nc.IsDraining()).To(BeTrue())

			_, err = nc.SubscribeSync("more")
			Expect(err).To(MatchError(client.ErrConnectionDraining))

			Eventually(closed, 5*time.Second).Should(BeClosed())
			Expect(atomic.LoadInt32(&delivered)).To(Equal(int32(20)))
		})

		It("drains a single subscription", func() {
			nc := connect(s)
			defer nc.Close()

			var delivered int32
			sub, err := nc.Subscribe("one", func(*client.Msg) {
				atomic.AddInt32(&delivered, 1)
			})
			Expect(err).To(Succeed())

			for i := 0; i < 5; i++ {
				Expect(nc.Publish("one", nil)).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			Expect(sub.Drain()).To(Succeed())

			Eventually(sub.IsValid).Should(BeFalse())
			Expect(atomic.LoadInt32(&delivered)).To(Equal(int32(5)))
			Expect(nc.IsConnected()).To(BeTrue())
		})
	})

	Describe("Barrier", func() {
		It("runs once earlier messages were handled", func() {
			nc := connect(s)
			defer nc.Close()

			var delivered int32
			for _, subj := range []string{"b1", "b2"} {
				_, err := nc.Subscribe(subj, func(*client.Msg) {
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&delivered, 1)
				})
				Expect(err).To(Succeed())
			}

			for i := 0; i < 10; i++ {
				Expect(nc.Publish("b1", nil)).To(Succeed())
				Expect(nc.Publish("b2", nil)).To(Succeed())
			}
			Expect(nc.Flush()).To(Succeed())

			seen := make(chan int32, 1)
			Expect(nc.Barrier(func() { seen <- atomic.LoadInt32(&delivered) })).To(Succeed())

			Eventually(seen).Should(Receive(Equal(int32(20))))
		})

		It("runs right away without asynchronous subscriptions", func() {
			nc := connect(s)
			defer nc.Close()

			var ran bool
			Expect(nc.Barrier(func() { ran = true })).To(Succeed())
			Expect(ran).To(BeTrue())
		})
	})

	Describe("server errors", func() {
		It("reports permission violations and stays connected", func() {
			errs := &errRecorder{}

			nc := connect(s, client.ErrorHandler(errs.handler))
			defer nc.Close()

			s.SendErr(`Permissions Violation for Publish to "secret"`)

			Eventually(func() int { return errs.count(client.ErrPermissionViolation) }).Should(Equal(1))
			Expect(nc.IsConnected()).To(BeTrue())
		})

		It("tolerates swapping the error handler while errors arrive", func() {
			first, second := &errRecorder{}, &errRecorder{}

			nc := connect(s, client.ErrorHandler(first.handler))
			defer nc.Close()

			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 200; i++ {
					if i%2 == 0 {
						nc.SetErrorHandler(second.handler)
					} else {
						nc.SetErrorHandler(first.handler)
					}
				}
			}()

			for i := 0; i < 50; i++ {
				s.SendErr(`Permissions Violation for Subscription to "secret"`)
			}

			Eventually(done).Should(BeClosed())
			nc.SetErrorHandler(first.handler)

			Eventually(func() int {
				return first.count(client.ErrPermissionViolation) + second.count(client.ErrPermissionViolation)
			}).Should(Equal(50))
			Expect(nc.IsConnected()).To(BeTrue())
		})

		It("closes on other errors", func() {
			closed := make(chan struct{})

			nc := connect(s, client.ClosedHandler(func(*client.Conn) { close(closed) }))
			defer nc.Close()

			s.SendErr("Unknown Protocol Operation")

			Eventually(closed).Should(BeClosed())

			var serr *client.ServerError
			Expect(errors.As(nc.LastError(), &serr)).To(BeTrue())
			Expect(serr.Desc).To(Equal("Unknown Protocol Operation"))
		})

		It("closes on a protocol it cannot parse", func() {
			closed := make(chan struct{})

			nc := connect(s, client.ClosedHandler(func(*client.Conn) { close(closed) }))
			defer nc.Close()

			s.Broadcast([]byte("BOGUS\r\n"))

			Eventually(closed).Should(BeClosed())
			Expect(nc.LastError()).To(MatchError(protocol.ErrParse))
			Expect(client.Classify(nc.LastError())).To(Equal(client.ClassProtocol))
		})

		It("reconnects on a stale connection error", func() {
			reconnected := make(chan struct{}, 1)

			nc := connect(s, client.ReconnectHandler(func(*client.Conn) { reconnected <- struct{}{} }))
			defer nc.Close()

			s.SendErr("Stale Connection")

			Eventually(reconnected, 2*time.Second).Should(Receive())
			Expect(nc.IsConnected()).To(BeTrue())
		})
	})

	Describe("cluster updates", func() {
		It("learns about other servers", func() {
			discovered := make(chan struct{}, 1)

			nc := connect(s, client.DiscoveredServersHandler(func(*client.Conn) { discovered <- struct{}{} }))
			defer nc.Close()

			Expect(s.Advertise("127.0.0.1:1", "127.0.0.1:2")).To(Succeed())

			Eventually(discovered).Should(Receive())
			Eventually(nc.DiscoveredServers).Should(ConsistOf("nats://127.0.0.1:1", "nats://127.0.0.1:2"))
		})

		It("hears about lame duck mode", func() {
			ldm := make(chan struct{}, 1)

			nc := connect(s, client.LameDuckModeHandler(func(*client.Conn) { ldm <- struct{}{} }))
			defer nc.Close()

			Expect(s.EnterLameDuckMode()).To(Succeed())

			Eventually(ldm).Should(Receive())
		})
	})
})
