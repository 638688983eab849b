package protocol

// Op is a protocol operation name.
type Op string

const (
	CONNECT Op = "CONNECT"
	PUB     Op = "PUB"
	HPUB    Op = "HPUB"
	SUB     Op = "SUB"
	UNSUB   Op = "UNSUB"
	PING    Op = "PING"
	PONG    Op = "PONG"
	INFO    Op = "INFO"
	MSG     Op = "MSG"
	HMSG    Op = "HMSG"
	OK      Op = "+OK"
	ERR     Op = "-ERR"
)

const (
	// DefaultPort is used when a server URL does not carry one.
	DefaultPort = 4222

	// Version is the protocol version this package speaks. Version 1 allows
	// the server to push INFO updates with cluster topology.
	Version = 1

	// MaxControlLineSize bounds the scratch space used to carry a split
	// control line or small payload across reads.
	MaxControlLineSize = 4096

	// MaxPayloadSize is the largest MSG or HMSG size a Parser accepts unless
	// told otherwise with SetMaxPayload.
	MaxPayloadSize = 64 * 1024 * 1024
)
