package protocol

// ParserState is a single state of the inbound protocol state machine.
type ParserState int

const (
	OP_START ParserState = iota
	OP_PLUS
	OP_PLUS_O
	OP_PLUS_OK
	OP_MINUS
	OP_MINUS_E
	OP_MINUS_ER
	OP_MINUS_ERR
	OP_MINUS_ERR_SPC
	MINUS_ERR_ARG
	OP_M
	OP_MS
	OP_MSG
	OP_MSG_SPC
	MSG_ARG
	MSG_PAYLOAD
	MSG_END
	OP_H
	OP_P
	OP_PI
	OP_PIN
	OP_PING
	OP_PO
	OP_PON
	OP_PONG
	OP_I
	OP_IN
	OP_INF
	OP_INFO
	OP_INFO_SPC
	INFO_ARG
)

var stateNames = [...]string{
	OP_START:         "OP_START",
	OP_PLUS:          "OP_PLUS",
	OP_PLUS_O:        "OP_PLUS_O",
	OP_PLUS_OK:       "OP_PLUS_OK",
	OP_MINUS:         "OP_MINUS",
	OP_MINUS_E:       "OP_MINUS_E",
	OP_MINUS_ER:      "OP_MINUS_ER",
	OP_MINUS_ERR:     "OP_MINUS_ERR",
	OP_MINUS_ERR_SPC: "OP_MINUS_ERR_SPC",
	MINUS_ERR_ARG:    "MINUS_ERR_ARG",
	OP_M:             "OP_M",
	OP_MS:            "OP_MS",
	OP_MSG:           "OP_MSG",
	OP_MSG_SPC:       "OP_MSG_SPC",
	MSG_ARG:          "MSG_ARG",
	MSG_PAYLOAD:      "MSG_PAYLOAD",
	MSG_END:          "MSG_END",
	OP_H:             "OP_H",
	OP_P:             "OP_P",
	OP_PI:            "OP_PI",
	OP_PIN:           "OP_PIN",
	OP_PING:          "OP_PING",
	OP_PO:            "OP_PO",
	OP_PON:           "OP_PON",
	OP_PONG:          "OP_PONG",
	OP_I:             "OP_I",
	OP_IN:            "OP_IN",
	OP_INF:           "OP_INF",
	OP_INFO:          "OP_INFO",
	OP_INFO_SPC:      "OP_INFO_SPC",
	INFO_ARG:         "INFO_ARG",
}

func (s ParserState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}

	return stateNames[s]
}
