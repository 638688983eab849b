package protocol

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	HeaderLine = "NATS/1.0\r\n"
	crlf       = "\r\n"
	hdrPreEnd  = len(HeaderLine) - len(crlf)
	statusLen  = 3

	// StatusHdr and DescriptionHdr carry an inline status taken from the
	// header version line.
	StatusHdr      = "Status"
	DescriptionHdr = "Description"

	StatusNoResponders   = "503"
	StatusNotFound       = "404"
	StatusRequestTimeout = "408"
	StatusControlMsg     = "100"
)

// Header is a set of message headers. Unlike MIME headers, keys are case
// sensitive and kept exactly as given.
type Header map[string][]string

func (h Header) Add(key, value string) {
	h[key] = append(h[key], value)
}

func (h Header) Set(key, value string) {
	h[key] = []string{value}
}

// Get returns the first value associated with key, or "".
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}

	if v := h[key]; len(v) > 0 {
		return v[0]
	}

	return ""
}

func (h Header) Values(key string) []string {
	return h[key]
}

func (h Header) Del(key string) {
	delete(h, key)
}

// EncodeHeader serialises h into a header block, keys in sorted order.
func EncodeHeader(h Header) ([]byte, error) {
	keys := make([]string, 0, len(h))
	for k := range h {
		if k == "" || strings.ContainsAny(k, ": \t\r\n") {
			return nil, fmt.Errorf("%w: '%s'", ErrBadHeaderKey, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString(HeaderLine)

	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(strings.NewReplacer("\r", " ", "\n", " ").Replace(v))
			b.WriteString(crlf)
		}
	}

	b.WriteString(crlf)

	return b.Bytes(), nil
}

// DecodeHeader parses a header block. An inline status on the version line,
// e.g. `NATS/1.0 503 No Responders`, is surfaced as the Status and
// Description headers.
func DecodeHeader(data []byte) (Header, error) {
	if !bytes.HasPrefix(data, []byte(HeaderLine[:hdrPreEnd])) {
		return nil, ErrBadHeaderMsg
	}

	eol := bytes.Index(data, []byte(crlf))
	if eol < 0 {
		return nil, ErrBadHeaderMsg
	}

	h := Header{}

	if inline := strings.TrimSpace(string(data[hdrPreEnd:eol])); len(inline) > 0 {
		if len(inline) < statusLen {
			return nil, ErrBadHeaderMsg
		}

		h.Set(StatusHdr, inline[:statusLen])

		if descr := strings.TrimSpace(inline[statusLen:]); descr != "" {
			h.Set(DescriptionHdr, descr)
		}
	}

	rest := data[eol+len(crlf):]

	for len(rest) > 0 {
		eol = bytes.Index(rest, []byte(crlf))
		if eol < 0 {
			return nil, ErrBadHeaderMsg
		}

		line := rest[:eol]
		rest = rest[eol+len(crlf):]

		if len(line) == 0 {
			break
		}

		i := bytes.IndexByte(line, ':')
		if i <= 0 {
			return nil, ErrBadHeaderMsg
		}

		key := string(line[:i])
		h.Add(key, strings.TrimSpace(string(line[i+1:])))
	}

	return h, nil
}

// IsNoResponders reports whether a message with this header and payload
// size is the broker telling us nobody listens on the subject.
func IsNoResponders(h Header, payloadLen int) bool {
	return payloadLen == 0 && h.Get(StatusHdr) == StatusNoResponders
}
