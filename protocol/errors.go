package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrParse is matched by every *ParseError via errors.Is.
	ErrParse = errors.New("nats: parse error")

	ErrBadHeaderMsg   = errors.New("nats: message could not decode headers")
	ErrBadHeaderKey   = errors.New("nats: invalid header key")
	ErrNoInfoReceived = errors.New("nats: protocol exception, INFO not received")
)

// ParseError is returned by the parser when a byte does not fit the state it
// was received in, or when message arguments are malformed.
type ParseError struct {
	State ParserState

	// Buf holds the unconsumed input from the offending byte onwards.
	Buf []byte
}

func newParseError(state ParserState, buf []byte) *ParseError {
	b := make([]byte, len(buf))
	copy(b, buf)

	return &ParseError{State: state, Buf: b}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nats: Parse Error [%s]: '%s'", e.State, e.Buf)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}
