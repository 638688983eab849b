package protocol

// MsgArg holds the arguments of the MSG or HMSG operation currently being
// parsed. Subject and Reply alias parser owned memory and are only valid
// until the handler returns.
type MsgArg struct {
	Subject []byte
	Reply   []byte
	Sid     int64

	// HdrLen is the size of the header block, or -1 for a plain MSG.
	HdrLen int
	Size   int
}

// Handler receives every complete server operation seen by a Parser.
//
// Slices passed to a Handler alias the read buffer or the parser's scratch
// space and must be copied if retained.
type Handler interface {
	ProcessMsg(args *MsgArg, payload []byte)
	ProcessInfo(arg []byte)
	ProcessErr(arg string)
	ProcessOK()
	ProcessPing()
	ProcessPong()
}

// Parser is an incremental state machine over the server to client protocol.
// A Parser is fed arbitrary chunks of the byte stream and carries partial
// operations across calls. It is not safe for concurrent use and is meant to
// live as long as a single socket.
type Parser struct {
	h Handler

	state ParserState
	as    int
	drop  int
	hdr   int

	ma MsgArg

	maxSize int64

	argBuf []byte
	msgBuf []byte

	scratch [MaxControlLineSize]byte
}

func NewParser(h Handler) *Parser {
	return &Parser{h: h}
}

// SetMaxPayload bounds the size a MSG or HMSG may declare. A larger size
// fails the parse. Zero or less restores MaxPayloadSize.
func (p *Parser) SetMaxPayload(n int64) {
	p.maxSize = n
}

func (p *Parser) maxPayload() int64 {
	if p.maxSize <= 0 {
		return MaxPayloadSize
	}

	return p.maxSize
}

// State returns the state the parser will interpret the next byte in.
func (p *Parser) State() ParserState {
	return p.state
}

// Parse feeds buf into the state machine, invoking the Handler for each
// operation it completes. Parse returns a *ParseError as soon as a byte does
// not fit the current state; the parser should be discarded after that.
func (p *Parser) Parse(buf []byte) error {
	var i int
	var b byte

	for i = 0; i < len(buf); i++ {
		b = buf[i]

		switch p.state {
		case OP_START:
			switch b {
			case 'M', 'm':
				p.state = OP_M
				p.hdr = -1
				p.ma.HdrLen = -1
			case 'H', 'h':
				p.state = OP_H
				p.hdr = 0
				p.ma.HdrLen = 0
			case 'P', 'p':
				p.state = OP_P
			case '+':
				p.state = OP_PLUS
			case '-':
				p.state = OP_MINUS
			case 'I', 'i':
				p.state = OP_I
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_H:
			switch b {
			case 'M', 'm':
				p.state = OP_M
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_M:
			switch b {
			case 'S', 's':
				p.state = OP_MS
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MS:
			switch b {
			case 'G', 'g':
				p.state = OP_MSG
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MSG:
			switch b {
			case ' ', '\t':
				p.state = OP_MSG_SPC
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MSG_SPC:
			switch b {
			case ' ', '\t':
				continue
			default:
				p.state = MSG_ARG
				p.as = i
			}

		case MSG_ARG:
			switch b {
			case '\r':
				p.drop = 1
			case '\n':
				var arg []byte
				if p.argBuf != nil {
					arg = p.argBuf
				} else {
					arg = buf[p.as : i-p.drop]
				}

				if err := p.processMsgArgs(arg); err != nil {
					return err
				}

				p.drop, p.as, p.state = 0, i+1, MSG_PAYLOAD

				// Jump to the end of the payload. If that overruns buf the
				// loop exits and the split payload is carried below.
				i = p.as + p.ma.Size - 1
			default:
				if p.argBuf != nil {
					p.argBuf = append(p.argBuf, b)
				}
			}

		case MSG_PAYLOAD:
			if p.msgBuf != nil {
				if len(p.msgBuf) >= p.ma.Size {
					p.h.ProcessMsg(&p.ma, p.msgBuf)
					p.argBuf, p.msgBuf, p.state = nil, nil, MSG_END
				} else {
					toCopy := p.ma.Size - len(p.msgBuf)
					avail := len(buf) - i

					if avail < toCopy {
						toCopy = avail
					}

					if toCopy > 0 {
						start := len(p.msgBuf)
						p.msgBuf = p.msgBuf[:start+toCopy]
						copy(p.msgBuf[start:], buf[i:i+toCopy])
						i = (i + toCopy) - 1
					} else {
						p.msgBuf = append(p.msgBuf, b)
					}
				}
			} else if i-p.as >= p.ma.Size {
				p.h.ProcessMsg(&p.ma, buf[p.as:i])
				p.argBuf, p.msgBuf, p.state = nil, nil, MSG_END
			}

		case MSG_END:
			switch b {
			case '\n':
				p.drop, p.as, p.state = 0, i+1, OP_START
			default:
				continue
			}

		case OP_PLUS:
			switch b {
			case 'O', 'o':
				p.state = OP_PLUS_O
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PLUS_O:
			switch b {
			case 'K', 'k':
				p.state = OP_PLUS_OK
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PLUS_OK:
			switch b {
			case '\n':
				p.h.ProcessOK()
				p.drop, p.state = 0, OP_START
			}

		case OP_MINUS:
			switch b {
			case 'E', 'e':
				p.state = OP_MINUS_E
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MINUS_E:
			switch b {
			case 'R', 'r':
				p.state = OP_MINUS_ER
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MINUS_ER:
			switch b {
			case 'R', 'r':
				p.state = OP_MINUS_ERR
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MINUS_ERR:
			switch b {
			case ' ', '\t':
				p.state = OP_MINUS_ERR_SPC
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_MINUS_ERR_SPC:
			switch b {
			case ' ', '\t':
				continue
			default:
				p.state = MINUS_ERR_ARG
				p.as = i
			}

		case MINUS_ERR_ARG:
			switch b {
			case '\r':
				p.drop = 1
			case '\n':
				var arg []byte
				if p.argBuf != nil {
					arg = p.argBuf
					p.argBuf = nil
				} else {
					arg = buf[p.as : i-p.drop]
				}

				p.h.ProcessErr(string(arg))
				p.drop, p.as, p.state = 0, i+1, OP_START
			default:
				if p.argBuf != nil {
					p.argBuf = append(p.argBuf, b)
				}
			}

		case OP_P:
			switch b {
			case 'I', 'i':
				p.state = OP_PI
			case 'O', 'o':
				p.state = OP_PO
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PO:
			switch b {
			case 'N', 'n':
				p.state = OP_PON
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PON:
			switch b {
			case 'G', 'g':
				p.state = OP_PONG
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PONG:
			switch b {
			case '\n':
				p.h.ProcessPong()
				p.drop, p.as, p.state = 0, i+1, OP_START
			}

		case OP_PI:
			switch b {
			case 'N', 'n':
				p.state = OP_PIN
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PIN:
			switch b {
			case 'G', 'g':
				p.state = OP_PING
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_PING:
			switch b {
			case '\n':
				p.h.ProcessPing()
				p.drop, p.as, p.state = 0, i+1, OP_START
			}

		case OP_I:
			switch b {
			case 'N', 'n':
				p.state = OP_IN
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_IN:
			switch b {
			case 'F', 'f':
				p.state = OP_INF
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_INF:
			switch b {
			case 'O', 'o':
				p.state = OP_INFO
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_INFO:
			switch b {
			case ' ', '\t':
				p.state = OP_INFO_SPC
			default:
				return newParseError(p.state, buf[i:])
			}

		case OP_INFO_SPC:
			switch b {
			case ' ', '\t':
				continue
			default:
				p.state = INFO_ARG
				p.as = i
			}

		case INFO_ARG:
			switch b {
			case '\r':
				p.drop = 1
			case '\n':
				var arg []byte
				if p.argBuf != nil {
					arg = p.argBuf
					p.argBuf = nil
				} else {
					arg = buf[p.as : i-p.drop]
				}

				p.h.ProcessInfo(arg)
				p.drop, p.as, p.state = 0, i+1, OP_START
			default:
				if p.argBuf != nil {
					p.argBuf = append(p.argBuf, b)
				}
			}

		default:
			return newParseError(p.state, buf[i:])
		}
	}

	// Carry a split control line over to the next call.
	if (p.state == MSG_ARG || p.state == MINUS_ERR_ARG || p.state == INFO_ARG) && p.argBuf == nil {
		p.argBuf = p.scratch[:0]
		p.argBuf = append(p.argBuf, buf[p.as:i-p.drop]...)
	}

	// Carry a split payload over to the next call.
	if p.state == MSG_PAYLOAD && p.msgBuf == nil {
		// The arguments still point into buf, which the caller is free to
		// reuse once we return.
		if p.argBuf == nil {
			p.cloneMsgArg()
		}

		if p.ma.Size > cap(p.scratch)-len(p.argBuf) {
			lrem := len(buf[p.as:])
			p.msgBuf = make([]byte, lrem, p.ma.Size)
			copy(p.msgBuf, buf[p.as:])
		} else {
			p.msgBuf = p.scratch[len(p.argBuf):len(p.argBuf)]
			p.msgBuf = append(p.msgBuf, buf[p.as:]...)
		}
	}

	return nil
}

func (p *Parser) cloneMsgArg() {
	p.argBuf = p.scratch[:0]
	p.argBuf = append(p.argBuf, p.ma.Subject...)
	p.argBuf = append(p.argBuf, p.ma.Reply...)
	p.ma.Subject = p.argBuf[:len(p.ma.Subject)]

	if p.ma.Reply != nil {
		p.ma.Reply = p.argBuf[len(p.ma.Subject):]
	}
}
