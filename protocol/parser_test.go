package protocol_test

import (
	"bytes"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/herald/protocol"
)

type event struct {
	Op      string
	Subject string
	Reply   string
	Sid     int64
	HdrLen  int
	Payload string
}

type recorder struct {
	events []event
}

func (r *recorder) ProcessMsg(args *protocol.MsgArg, payload []byte) {
	r.events = append(r.events, event{
		Op:      "MSG",
		Subject: string(args.Subject),
		Reply:   string(args.Reply),
		Sid:     args.Sid,
		HdrLen:  args.HdrLen,
		Payload: string(payload),
	})
}

func (r *recorder) ProcessInfo(arg []byte) {
	r.events = append(r.events, event{Op: "INFO", Payload: string(arg)})
}

func (r *recorder) ProcessErr(arg string) {
	r.events = append(r.events, event{Op: "ERR", Payload: arg})
}

func (r *recorder) ProcessOK()   { r.events = append(r.events, event{Op: "OK"}) }
func (r *recorder) ProcessPing() { r.events = append(r.events, event{Op: "PING"}) }
func (r *recorder) ProcessPong() { r.events = append(r.events, event{Op: "PONG"}) }

func parseChunks(chunks ...[]byte) ([]event, error) {
	r := &recorder{}
	p := protocol.NewParser(r)

	for _, c := range chunks {
		// Copy so the parser cannot lean on buffers staying untouched.
		buf := append([]byte(nil), c...)
		if err := p.Parse(buf); err != nil {
			return r.events, err
		}
		for i := range buf {
			buf[i] = 'X'
		}
	}

	return r.events, nil
}

var _ = Describe("Parser", func() {
	stream := []byte("INFO {\"server_id\":\"abc\",\"max_payload\":1048576}\r\n" +
		"+OK\r\n" +
		"PING\r\n" +
		"MSG foo 1 5\r\nhello\r\n" +
		"msg foo.bar 22 _INBOX.abc.def 3\r\nbaz\r\n" +
		"HMSG foo 3 12 17\r\nNATS/1.0\r\n\r\nhello\r\n" +
		"HMSG req 4 _INBOX.x.y 16 16\r\nNATS/1.0 503\r\n\r\n\r\n" +
		"MSG empty 5 0\r\n\r\n" +
		"-ERR 'Authorization Violation'\r\n" +
		"pong\r\n")

	expected := []event{
		{Op: "INFO", Payload: "{\"server_id\":\"abc\",\"max_payload\":1048576}"},
		{Op: "OK"},
		{Op: "PING"},
		{Op: "MSG", Subject: "foo", Sid: 1, HdrLen: -1, Payload: "hello"},
		{Op: "MSG", Subject: "foo.bar", Reply: "_INBOX.abc.def", Sid: 22, HdrLen: -1, Payload: "baz"},
		{Op: "MSG", Subject: "foo", Sid: 3, HdrLen: 12, Payload: "NATS/1.0\r\n\r\nhello"},
		{Op: "MSG", Subject: "req", Reply: "_INBOX.x.y", Sid: 4, HdrLen: 16, Payload: "NATS/1.0 503\r\n\r\n"},
		{Op: "MSG", Subject: "empty", Sid: 5, HdrLen: -1, Payload: ""},
		{Op: "ERR", Payload: "'Authorization Violation'"},
		{Op: "PONG"},
	}

	It("parses a stream delivered in a single chunk", func() {
		events, err := parseChunks(stream)
		Expect(err).To(Succeed())
		Expect(events).To(Equal(expected))
	})

	It("yields the same operations no matter where the stream is split", func() {
		for i := 1; i < len(stream); i++ {
			events, err := parseChunks(stream[:i], stream[i:])
			Expect(err).To(Succeed(), fmt.Sprintf("split at %d", i))
			Expect(events).To(Equal(expected), fmt.Sprintf("split at %d", i))
		}
	})

	It("yields the same operations when fed one byte at a time", func() {
		chunks := make([][]byte, 0, len(stream))
		for i := range stream {
			chunks = append(chunks, stream[i:i+1])
		}

		events, err := parseChunks(chunks...)
		Expect(err).To(Succeed())
		Expect(events).To(Equal(expected))
	})

	It("delivers payloads larger than the scratch space intact", func() {
		payload := bytes.Repeat([]byte("0123456789"), 1000)
		msg := append([]byte(fmt.Sprintf("MSG big 9 %d\r\n", len(payload))), payload...)
		msg = append(msg, "\r\nPING\r\n"...)

		for _, step := range []int{1, 7, 1024, 4096, 5000} {
			var chunks [][]byte
			for i := 0; i < len(msg); i += step {
				end := i + step
				if end > len(msg) {
					end = len(msg)
				}
				chunks = append(chunks, msg[i:end])
			}

			events, err := parseChunks(chunks...)
			Expect(err).To(Succeed())
			Expect(events).To(HaveLen(2))
			Expect(events[0].Payload).To(HaveLen(len(payload)))
			Expect(events[0].Payload).To(Equal(string(payload)))
			Expect(events[1].Op).To(Equal("PING"))
		}
	})

	It("hands over exactly the declared number of payload bytes", func() {
		events, err := parseChunks([]byte("MSG foo 1 3\r\nabc\r\nMSG foo 1 2\r\nde\r\n"))
		Expect(err).To(Succeed())
		Expect(events).To(HaveLen(2))
		Expect(events[0].Payload).To(Equal("abc"))
		Expect(events[1].Payload).To(Equal("de"))
	})

	It("tolerates tabs and repeated whitespace between arguments", func() {
		events, err := parseChunks([]byte("MSG\t foo  \t 7   2\r\nok\r\n"))
		Expect(err).To(Succeed())
		Expect(events).To(Equal([]event{{Op: "MSG", Subject: "foo", Sid: 7, HdrLen: -1, Payload: "ok"}}))
	})

	It("walks the INFO states one byte at a time", func() {
		p := protocol.NewParser(&recorder{})
		input := []byte("INFO {}\r\n")

		var states []protocol.ParserState
		for i := range input {
			Expect(p.Parse(input[i : i+1])).To(Succeed())
			states = append(states, p.State())
		}

		Expect(states).To(Equal([]protocol.ParserState{
			protocol.OP_I,
			protocol.OP_IN,
			protocol.OP_INF,
			protocol.OP_INFO,
			protocol.OP_INFO_SPC,
			protocol.INFO_ARG,
			protocol.INFO_ARG,
			protocol.INFO_ARG,
			protocol.OP_START,
		}))
	})

	Describe("errors", func() {
		It("rejects an unknown operation", func() {
			_, err := parseChunks([]byte("FOO bar\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())

			var perr *protocol.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.State).To(Equal(protocol.OP_START))
			Expect(string(perr.Buf)).To(Equal("FOO bar\r\n"))
		})

		It("rejects a broken keyword", func() {
			_, err := parseChunks([]byte("PINX\r\n"))

			var perr *protocol.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.State).To(Equal(protocol.OP_PIN))
		})

		It("rejects MSG with the wrong number of arguments", func() {
			_, err := parseChunks([]byte("MSG foo 5\r\nhello\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())

			_, err = parseChunks([]byte("MSG a b c d e\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())
		})

		It("rejects a non numeric sid or size", func() {
			_, err := parseChunks([]byte("MSG foo bar 5\r\nhello\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())

			_, err = parseChunks([]byte("MSG foo 1 -5\r\nhello\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())
		})

		It("rejects HMSG whose header is larger than the message", func() {
			_, err := parseChunks([]byte("HMSG foo 1 20 10\r\n0123456789\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())
		})

		It("rejects a size beyond the payload limit instead of allocating it", func() {
			var err error
			Expect(func() {
				_, err = parseChunks([]byte("MSG foo 1 999999999999999999\r\nabc"))
			}).NotTo(Panic())

			var perr *protocol.ParseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.State).To(Equal(protocol.MSG_ARG))

			_, err = parseChunks([]byte("HMSG foo 1 12 999999999999\r\nNATS/1.0"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())
		})

		It("honours a configured payload limit", func() {
			r := &recorder{}
			p := protocol.NewParser(r)
			p.SetMaxPayload(4)

			Expect(p.Parse([]byte("MSG foo 1 4\r\nabcd\r\n"))).To(Succeed())
			Expect(r.events).To(HaveLen(1))

			err := p.Parse([]byte("MSG foo 1 5\r\nabcde\r\n"))
			Expect(errors.Is(err, protocol.ErrParse)).To(BeTrue())
		})
	})
})
