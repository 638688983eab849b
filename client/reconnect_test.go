package client

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/herald/internal/testserver"
)

var _ = Describe("resendSubscriptions", func() {
	var s *testserver.Server

	BeforeEach(func() {
		var err error
		s, err = testserver.Run(testserver.Options{})
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("keeps sids and the remaining auto unsubscribe budget", func() {
		reconnected := make(chan struct{}, 1)

		nc, err := Connect(s.URL(),
			ReconnectWait(20*time.Millisecond),
			ReconnectJitter(0),
			ReconnectHandler(func(*Conn) { reconnected <- struct{}{} }),
		)
		Expect(err).To(Succeed())
		defer nc.Close()

		a, err := nc.SubscribeSync("a")
		Expect(err).To(Succeed())
		b, err := nc.SubscribeSync("b")
		Expect(err).To(Succeed())
		Expect(b.AutoUnsubscribe(3)).To(Succeed())

		Expect(nc.Publish("b", nil)).To(Succeed())
		_, err = b.NextMsg(time.Second)
		Expect(err).To(Succeed())

		sidA, sidB := a.sid, b.sid

		s.DropClients()
		Eventually(reconnected, 2*time.Second).Should(Receive())

		nc.subsMu.RLock()
		Expect(nc.subs[sidA]).To(BeIdenticalTo(a))
		Expect(nc.subs[sidB]).To(BeIdenticalTo(b))
		nc.subsMu.RUnlock()

		for i := 0; i < 5; i++ {
			Expect(nc.Publish("b", nil)).To(Succeed())
		}
		Expect(nc.Flush()).To(Succeed())

		// One of three was delivered before the reconnect.
		for i := 0; i < 2; i++ {
			_, err = b.NextMsg(time.Second)
			Expect(err).To(Succeed())
		}

		_, err = b.NextMsg(50 * time.Millisecond)
		Expect(err).To(MatchError(ErrMaxMessages))

		Expect(nc.Publish("a", []byte("still here"))).To(Succeed())
		m, err := a.NextMsg(time.Second)
		Expect(err).To(Succeed())
		Expect(string(m.Data)).To(Equal("still here"))
	})
})
