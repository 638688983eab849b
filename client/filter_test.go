package client_test

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/herald/client"
	"github.com/luma/herald/internal/testserver"
)

var _ = Describe("Message filters", func() {
	var (
		s  *testserver.Server
		nc *client.Conn
	)

	BeforeEach(func() {
		s = runServer(testserver.Options{})
		nc = connect(s)
	})

	AfterEach(func() {
		nc.Close()
		Expect(s.Close()).To(Succeed())
	})

	It("rewrites messages on the filtered subject", func() {
		nc.AddMsgFilter("shout", func(m *client.Msg) *client.Msg {
			m.Data = bytes.ToUpper(m.Data)
			return m
		})

		sub, err := nc.SubscribeSync("shout")
		Expect(err).To(Succeed())

		Expect(nc.Publish("shout", []byte("hello"))).To(Succeed())

		m, err := sub.NextMsg(time.Second)
		Expect(err).To(Succeed())
		Expect(string(m.Data)).To(Equal("HELLO"))
	})

	It("drops messages the filter rejects", func() {
		nc.AddMsgFilter("noise", func(m *client.Msg) *client.Msg {
			if string(m.Data) == "drop" {
				return nil
			}
			return m
		})

		sub, err := nc.SubscribeSync("noise")
		Expect(err).To(Succeed())

		Expect(nc.Publish("noise", []byte("drop"))).To(Succeed())
		Expect(nc.Publish("noise", []byte("keep"))).To(Succeed())

		m, err := sub.NextMsg(time.Second)
		Expect(err).To(Succeed())
		Expect(string(m.Data)).To(Equal("keep"))

		_, err = sub.NextMsg(50 * time.Millisecond)
		Expect(err).To(MatchError(client.ErrTimeout))

		delivered, err := sub.Delivered()
		Expect(err).To(Succeed())
		Expect(delivered).To(Equal(int64(1)))
	})

	It("only applies to the exact subject and can be removed", func() {
		nc.AddMsgFilter("quiet", func(*client.Msg) *client.Msg { return nil })

		sub, err := nc.SubscribeSync("quiet.>")
		Expect(err).To(Succeed())
		other, err := nc.SubscribeSync("quiet")
		Expect(err).To(Succeed())

		Expect(nc.Publish("quiet.child", []byte("a"))).To(Succeed())
		Expect(nc.Publish("quiet", []byte("b"))).To(Succeed())

		m, err := sub.NextMsg(time.Second)
		Expect(err).To(Succeed())
		Expect(string(m.Data)).To(Equal("a"))

		_, err = other.NextMsg(50 * time.Millisecond)
		Expect(err).To(MatchError(client.ErrTimeout))

		nc.RemoveMsgFilter("quiet")

		Expect(nc.Publish("quiet", []byte("c"))).To(Succeed())

		m, err = other.NextMsg(time.Second)
		Expect(err).To(Succeed())
		Expect(string(m.Data)).To(Equal("c"))
	})
})
