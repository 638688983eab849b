package testserver

import (
	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on, defaults to 127.0.0.1
	Host string

	// Port to listen on. Zero picks a free port, which requires Reuseport
	// to be off.
	Port int

	// Reuseport controls setting SO_REUSEPORT, so a restarted server can
	// take over the port of a previous one straight away.
	Reuseport bool

	// AuthToken, when set, must be presented by clients in CONNECT.
	AuthToken string

	// MaxPayload announced in INFO, defaults to 1MB.
	MaxPayload int64

	// NoHeaders announces a server without header support.
	NoHeaders bool

	// ConnectURLs are advertised to clients as other cluster members.
	ConnectURLs []string

	// Trace logs every control line read from clients.
	Trace bool

	Log *zap.Logger
}
