package protocol

import (
	"strconv"
)

var (
	PingProto = []byte("PING\r\n")
	PongProto = []byte("PONG\r\n")
	OkProto   = []byte("+OK\r\n")
	Terminal  = []byte(crlf)
)

// AppendPub appends a PUB control line, or an HPUB one when hdrLen is not
// negative. size is the total of header and payload bytes that follow.
func AppendPub(dst []byte, subject, reply string, hdrLen, size int) []byte {
	if hdrLen >= 0 {
		dst = append(dst, HPUB...)
	} else {
		dst = append(dst, PUB...)
	}

	dst = append(dst, ' ')
	dst = append(dst, subject...)

	if reply != "" {
		dst = append(dst, ' ')
		dst = append(dst, reply...)
	}

	if hdrLen >= 0 {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(hdrLen), 10)
	}

	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(size), 10)

	return append(dst, crlf...)
}

// AppendMsg is the broker side counterpart of AppendPub.
func AppendMsg(dst []byte, subject string, sid int64, reply string, hdrLen, size int) []byte {
	if hdrLen >= 0 {
		dst = append(dst, HMSG...)
	} else {
		dst = append(dst, MSG...)
	}

	dst = append(dst, ' ')
	dst = append(dst, subject...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, sid, 10)

	if reply != "" {
		dst = append(dst, ' ')
		dst = append(dst, reply...)
	}

	if hdrLen >= 0 {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(hdrLen), 10)
	}

	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(size), 10)

	return append(dst, crlf...)
}

func AppendSub(dst []byte, subject, queue string, sid int64) []byte {
	dst = append(dst, SUB...)
	dst = append(dst, ' ')
	dst = append(dst, subject...)

	if queue != "" {
		dst = append(dst, ' ')
		dst = append(dst, queue...)
	}

	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, sid, 10)

	return append(dst, crlf...)
}

// AppendUnsub appends an UNSUB control line. max is omitted unless positive.
func AppendUnsub(dst []byte, sid int64, max int) []byte {
	dst = append(dst, UNSUB...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, sid, 10)

	if max > 0 {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(max), 10)
	}

	return append(dst, crlf...)
}

func AppendConnect(dst []byte, ci *ConnectInfo) ([]byte, error) {
	body, err := ci.MarshalJSON()
	if err != nil {
		return dst, err
	}

	dst = append(dst, CONNECT...)
	dst = append(dst, ' ')
	dst = append(dst, body...)

	return append(dst, crlf...), nil
}

func AppendInfo(dst []byte, si *ServerInfo) ([]byte, error) {
	body, err := si.MarshalJSON()
	if err != nil {
		return dst, err
	}

	dst = append(dst, INFO...)
	dst = append(dst, ' ')
	dst = append(dst, body...)

	return append(dst, crlf...), nil
}

// AppendErr appends a -ERR line with msg in single quotes.
func AppendErr(dst []byte, msg string) []byte {
	dst = append(dst, ERR...)
	dst = append(dst, " '"...)
	dst = append(dst, msg...)
	dst = append(dst, '\'')

	return append(dst, crlf...)
}
