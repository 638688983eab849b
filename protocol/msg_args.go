package protocol

const maxMsgArgs = 5

func (p *Parser) processMsgArgs(arg []byte) error {
	if p.hdr >= 0 {
		return p.processHeaderMsgArgs(arg)
	}

	args := splitArgs(arg)

	switch len(args) {
	case 3:
		p.ma.Subject = args[0]
		p.ma.Sid = parseSize(args[1])
		p.ma.Reply = nil
		p.ma.Size = int(parseSize(args[2]))
	case 4:
		p.ma.Subject = args[0]
		p.ma.Sid = parseSize(args[1])
		p.ma.Reply = args[2]
		p.ma.Size = int(parseSize(args[3]))
	default:
		return newParseError(MSG_ARG, arg)
	}

	p.ma.HdrLen = -1

	if p.ma.Sid < 0 || p.ma.Size < 0 || int64(p.ma.Size) > p.maxPayload() {
		return newParseError(MSG_ARG, arg)
	}

	return nil
}

func (p *Parser) processHeaderMsgArgs(arg []byte) error {
	args := splitArgs(arg)

	switch len(args) {
	case 4:
		p.ma.Subject = args[0]
		p.ma.Sid = parseSize(args[1])
		p.ma.Reply = nil
		p.ma.HdrLen = int(parseSize(args[2]))
		p.ma.Size = int(parseSize(args[3]))
	case 5:
		p.ma.Subject = args[0]
		p.ma.Sid = parseSize(args[1])
		p.ma.Reply = args[2]
		p.ma.HdrLen = int(parseSize(args[3]))
		p.ma.Size = int(parseSize(args[4]))
	default:
		return newParseError(MSG_ARG, arg)
	}

	if p.ma.Sid < 0 || p.ma.HdrLen < 0 || p.ma.Size < 0 || p.ma.HdrLen > p.ma.Size ||
		int64(p.ma.Size) > p.maxPayload() {
		return newParseError(MSG_ARG, arg)
	}

	return nil
}

// splitArgs breaks a control line into fields separated by runs of
// whitespace. The returned slices alias arg.
func splitArgs(arg []byte) [][]byte {
	argsa := [maxMsgArgs][]byte{}
	args := argsa[:0]
	start := -1

	for i, b := range arg {
		switch b {
		case ' ', '\t', '\r', '\n':
			if start >= 0 {
				args = append(args, arg[start:i])
				start = -1
			}
		default:
			if start < 0 {
				start = i
			}
		}
	}

	if start >= 0 {
		args = append(args, arg[start:])
	}

	return args
}

// parseSize parses a non negative decimal, returning -1 when d is empty or
// holds anything but digits.
func parseSize(d []byte) int64 {
	if len(d) == 0 || len(d) > 18 {
		return -1
	}

	var n int64
	for _, dec := range d {
		if dec < '0' || dec > '9' {
			return -1
		}
		n = n*10 + int64(dec-'0')
	}

	return n
}
