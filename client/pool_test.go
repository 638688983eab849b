package client

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func newPoolConn(o Options) *Conn {
	o.Log = zap.NewNop()
	return &Conn{Opts: o, log: o.Log}
}

var _ = Describe("server pool", func() {
	It("falls back to the default URL", func() {
		nc := newPoolConn(Options{})

		Expect(nc.setupServerPool()).To(Succeed())
		Expect(nc.Servers()).To(Equal([]string{DefaultURL}))
	})

	It("adds the scheme and default port", func() {
		nc := newPoolConn(Options{Servers: []string{"10.0.0.1", "nats://10.0.0.2:4333"}, NoRandomize: true})

		Expect(nc.setupServerPool()).To(Succeed())
		Expect(nc.Servers()).To(Equal([]string{"nats://10.0.0.1:4222", "nats://10.0.0.2:4333"}))
	})

	It("keeps Url at the front", func() {
		nc := newPoolConn(Options{
			Url:     "nats://first:4222",
			Servers: []string{"a:1", "b:2", "c:3"},
		})

		Expect(nc.setupServerPool()).To(Succeed())
		Expect(nc.Servers()[0]).To(Equal("nats://first:4222"))
		Expect(nc.current.url.Host).To(Equal("first:4222"))
	})

	It("rejects a url without a host", func() {
		nc := newPoolConn(Options{Servers: []string{"nats://:4222"}})
		Expect(nc.setupServerPool()).NotTo(Succeed())
	})

	It("rotates servers and drops those out of attempts", func() {
		nc := newPoolConn(Options{Servers: []string{"a:1", "b:2"}, NoRandomize: true, MaxReconnect: 1})
		Expect(nc.setupServerPool()).To(Succeed())

		next, err := nc.selectNextServer()
		Expect(err).To(Succeed())
		Expect(next.url.Host).To(Equal("b:2"))

		next.reconnects = 1
		next, err = nc.selectNextServer()
		Expect(err).To(Succeed())
		Expect(next.url.Host).To(Equal("a:1"))
		Expect(nc.Servers()).To(Equal([]string{"nats://a:1"}))

		next.reconnects = 1
		_, err = nc.selectNextServer()
		Expect(err).To(MatchError(ErrNoServers))
	})

	It("merges discovered servers and prunes stale ones", func() {
		nc := newPoolConn(Options{Servers: []string{"a:1"}, NoRandomize: true})
		Expect(nc.setupServerPool()).To(Succeed())

		Expect(nc.addDiscoveredServers([]string{"b:2", "c:3"})).To(BeTrue())
		Expect(nc.DiscoveredServers()).To(ConsistOf("nats://b:2", "nats://c:3"))

		Expect(nc.addDiscoveredServers([]string{"a:1", "c:3"})).To(BeFalse())
		Expect(nc.DiscoveredServers()).To(ConsistOf("nats://c:3"))
		Expect(nc.Servers()).To(ConsistOf("nats://a:1", "nats://c:3"))
	})
})
