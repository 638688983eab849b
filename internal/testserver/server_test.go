package testserver_test

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/herald/internal/testserver"
	"github.com/luma/herald/protocol"
)

type rawClient struct {
	conn net.Conn
	br   *bufio.Reader
}

func dial(s *testserver.Server) *rawClient {
	conn, err := net.Dial("tcp", s.Addr())
	Expect(err).To(Succeed())

	rc := &rawClient{conn: conn, br: bufio.NewReader(conn)}

	op, args := rc.readLine()
	Expect(op).To(Equal("INFO"))

	info, err := protocol.ParseServerInfo([]byte(args))
	Expect(err).To(Succeed())
	Expect(info.Headers).To(BeTrue())

	return rc
}

func (rc *rawClient) write(lines ...string) {
	_, err := rc.conn.Write([]byte(strings.Join(lines, "")))
	Expect(err).To(Succeed())
}

func (rc *rawClient) readLine() (string, string) {
	Expect(rc.conn.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	line, err := rc.br.ReadString('\n')
	Expect(err).To(Succeed())

	return protocol.ParseControlLine(line)
}

func (rc *rawClient) connect(extra string) {
	rc.write(`CONNECT {"verbose":false,"echo":true,"headers":true,"no_responders":true` + extra + "}\r\n")
}

var _ = Describe("Server", func() {
	var s *testserver.Server

	BeforeEach(func() {
		var err error
		s, err = testserver.Run(testserver.Options{})
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	It("answers PING with PONG", func() {
		rc := dial(s)
		defer rc.conn.Close()

		rc.connect("")
		rc.write("PING\r\n")

		op, _ := rc.readLine()
		Expect(op).To(Equal("PONG"))
	})

	It("routes published messages to subscribers", func() {
		sub := dial(s)
		defer sub.conn.Close()
		sub.connect("")
		sub.write("SUB foo.* 7\r\n", "PING\r\n")
		op, _ := sub.readLine()
		Expect(op).To(Equal("PONG"))

		pub := dial(s)
		defer pub.conn.Close()
		pub.connect("")
		pub.write("PUB foo.bar reply.to 5\r\nhello\r\n")

		op, args := sub.readLine()
		Expect(op).To(Equal("MSG"))
		Expect(args).To(Equal("foo.bar 7 reply.to 5"))

		payload, err := sub.br.ReadString('\n')
		Expect(err).To(Succeed())
		Expect(payload).To(Equal("hello\r\n"))
	})

	It("answers requests nobody listens to with a no responders status", func() {
		rc := dial(s)
		defer rc.conn.Close()

		rc.connect("")
		rc.write("SUB _INBOX.x.* 1\r\n", "PUB nobody _INBOX.x.abc 2\r\nhi\r\n")

		op, args := rc.readLine()
		Expect(op).To(Equal("HMSG"))
		Expect(args).To(Equal("_INBOX.x.abc 1 16 16"))

		hdr := make([]byte, 18)
		_, err := io.ReadFull(rc.br, hdr)
		Expect(err).To(Succeed())

		h, err := protocol.DecodeHeader(hdr[:16])
		Expect(err).To(Succeed())
		Expect(protocol.IsNoResponders(h, 0)).To(BeTrue())
	})

	It("stops after the auto unsubscribe limit", func() {
		rc := dial(s)
		defer rc.conn.Close()

		rc.connect("")
		rc.write("SUB foo 1\r\n", "UNSUB 1 1\r\n", "PING\r\n")
		op, _ := rc.readLine()
		Expect(op).To(Equal("PONG"))
		Expect(s.NumSubscriptions()).To(Equal(1))

		rc.write("PUB foo 1\r\na\r\n", "PUB foo 1\r\nb\r\n", "PING\r\n")

		op, _ = rc.readLine()
		Expect(op).To(Equal("MSG"))
		_, _ = rc.readLine()

		op, _ = rc.readLine()
		Expect(op).To(Equal("PONG"))
		Expect(s.NumSubscriptions()).To(Equal(0))
	})

	It("rejects clients with a wrong token", func() {
		Expect(s.Close()).To(Succeed())

		var err error
		s, err = testserver.Run(testserver.Options{AuthToken: "secret"})
		Expect(err).To(Succeed())

		rc := dial(s)
		defer rc.conn.Close()

		rc.connect(`,"auth_token":"wrong"`)

		op, args := rc.readLine()
		Expect(op).To(Equal("-ERR"))
		Expect(protocol.NormalizeErr(args)).To(Equal("Authorization Violation"))
	})

	It("drops clients on demand", func() {
		rc := dial(s)
		defer rc.conn.Close()

		rc.connect("")
		rc.write("PING\r\n")
		_, _ = rc.readLine()

		Expect(s.NumClients()).To(Equal(1))
		s.DropClients()
		Eventually(s.NumClients).Should(Equal(0))

		_, err := rc.br.ReadString('\n')
		Expect(err).To(HaveOccurred())
	})
})
