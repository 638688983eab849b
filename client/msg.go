package client

import (
	"github.com/luma/herald/protocol"
)

// Header is a set of message headers, keys are case sensitive.
type Header = protocol.Header

// Msg is a message delivered to a subscription, or one to be published.
type Msg struct {
	Subject string
	Reply   string
	Header  Header
	Data    []byte
	Sub     *Subscription

	barrier *barrierInfo
}

// barrierInfo is shared by the barrier messages of a single Barrier call.
type barrierInfo struct {
	refs int64
	f    func()
}

// NewMsg creates a message for subject with an empty header.
func NewMsg(subject string) *Msg {
	return &Msg{
		Subject: subject,
		Header:  Header{},
	}
}

func (m *Msg) headerBytes() ([]byte, error) {
	if len(m.Header) == 0 {
		return nil, nil
	}

	return protocol.EncodeHeader(m.Header)
}

// Size is the number of payload bytes.
func (m *Msg) Size() int {
	return len(m.Data)
}

// Respond publishes data to the reply subject of m.
func (m *Msg) Respond(data []byte) error {
	nc, err := m.boundConn()
	if err != nil {
		return err
	}

	return nc.Publish(m.Reply, data)
}

// RespondMsg publishes msg to the reply subject of m.
func (m *Msg) RespondMsg(msg *Msg) error {
	if msg == nil {
		return ErrInvalidMsg
	}

	nc, err := m.boundConn()
	if err != nil {
		return err
	}

	msg.Subject = m.Reply

	return nc.PublishMsg(msg)
}

func (m *Msg) boundConn() (*Conn, error) {
	if m == nil || m.Sub == nil {
		return nil, ErrMsgNotBound
	}

	if m.Reply == "" {
		return nil, ErrMsgNoReply
	}

	m.Sub.mu.Lock()
	nc := m.Sub.conn
	m.Sub.mu.Unlock()

	if nc == nil {
		return nil, ErrMsgNotBound
	}

	return nc, nil
}
