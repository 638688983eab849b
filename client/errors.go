package client

import (
	"errors"
	"net"
	"strings"

	"github.com/luma/herald/protocol"
)

var (
	ErrConnectionClosed       = errors.New("nats: connection closed")
	ErrConnectionDraining     = errors.New("nats: connection draining")
	ErrDrainTimeout           = errors.New("nats: draining connection timed out")
	ErrConnectionReconnecting = errors.New("nats: connection reconnecting")
	ErrInvalidConnection      = errors.New("nats: invalid connection")
	ErrNoServers              = errors.New("nats: no servers available for connection")
	ErrStaleConnection        = errors.New("nats: stale connection")
	ErrReconnectBufExceeded   = errors.New("nats: outbound buffer limit exceeded")

	ErrBadSubscription  = errors.New("nats: invalid subscription")
	ErrTypeSubscription = errors.New("nats: invalid subscription type")
	ErrBadSubject       = errors.New("nats: invalid subject")
	ErrBadQueueName     = errors.New("nats: invalid queue name")
	ErrSlowConsumer     = errors.New("nats: slow consumer, messages dropped")
	ErrMaxMessages      = errors.New("nats: maximum messages delivered")
	ErrSyncSubRequired  = errors.New("nats: illegal call on an async subscription")

	ErrTimeout        = errors.New("nats: timeout")
	ErrBadTimeout     = errors.New("nats: timeout invalid")
	ErrInvalidContext = errors.New("nats: invalid context")
	ErrNoResponders   = errors.New("nats: no responders available for request")

	ErrAuthorization       = errors.New("nats: authorization violation")
	ErrAuthExpired         = errors.New("nats: authentication expired")
	ErrAuthRevoked         = errors.New("nats: authentication revoked")
	ErrAccountAuthExpired  = errors.New("nats: account authentication expired")
	ErrPermissionViolation = errors.New("nats: permissions violation")

	ErrMaxPayload          = errors.New("nats: maximum payload exceeded")
	ErrInvalidMsg          = errors.New("nats: invalid message or message nil")
	ErrInvalidArg          = errors.New("nats: invalid argument")
	ErrMsgNotBound         = errors.New("nats: message is not bound to subscription/connection")
	ErrMsgNoReply          = errors.New("nats: message does not have a reply")
	ErrHeadersNotSupported = errors.New("nats: headers not supported by this server")
	ErrNoEchoNotSupported  = errors.New("nats: no echo option not supported by this server")

	ErrNoInfoReceived = protocol.ErrNoInfoReceived
	ErrBadHeaderMsg   = protocol.ErrBadHeaderMsg
)

// Lower cased prefixes of -ERR arguments the engine reacts to.
const (
	staleConnectionErr    = "stale connection"
	permissionsErr        = "permissions violation"
	authorizationErr      = "authorization violation"
	authExpiredErr        = "user authentication expired"
	authRevokedErr        = "user authentication revoked"
	accountAuthExpiredErr = "account authentication expired"
)

// ErrorClass groups errors by how a caller is expected to react to them.
type ErrorClass int

const (
	// ClassApplication errors are caused by the caller's arguments or usage.
	ClassApplication ErrorClass = iota
	// ClassConnectionState errors mean the connection is not in a state to
	// serve the call.
	ClassConnectionState
	// ClassProtocol errors mean the byte stream could not be understood.
	ClassProtocol
	// ClassIO errors come from the socket.
	ClassIO
	// ClassAuth errors are authorization failures reported by the server.
	ClassAuth
)

func (ec ErrorClass) String() string {
	switch ec {
	case ClassApplication:
		return "application"
	case ClassConnectionState:
		return "connection-state"
	case ClassProtocol:
		return "protocol"
	case ClassIO:
		return "io"
	case ClassAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Classify reports the ErrorClass of err.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassApplication
	case IsAuthError(err), errors.Is(err, ErrPermissionViolation):
		return ClassAuth
	case errors.Is(err, protocol.ErrParse),
		errors.Is(err, ErrNoInfoReceived),
		errors.Is(err, ErrBadHeaderMsg),
		errors.Is(err, protocol.ErrBadJSON):
		return ClassProtocol
	case errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrConnectionDraining),
		errors.Is(err, ErrConnectionReconnecting),
		errors.Is(err, ErrDrainTimeout),
		errors.Is(err, ErrInvalidConnection),
		errors.Is(err, ErrNoServers),
		errors.Is(err, ErrStaleConnection),
		errors.Is(err, ErrReconnectBufExceeded):
		return ClassConnectionState
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassIO
	}

	return ClassApplication
}

// IsAuthError reports whether err is one of the authorization errors a
// server can send.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthorization) ||
		errors.Is(err, ErrAuthExpired) ||
		errors.Is(err, ErrAuthRevoked) ||
		errors.Is(err, ErrAccountAuthExpired)
}

// checkAuthError maps a lower cased -ERR argument to an auth error, or nil.
func checkAuthError(e string) error {
	switch {
	case strings.HasPrefix(e, authorizationErr):
		return ErrAuthorization
	case strings.HasPrefix(e, authExpiredErr):
		return ErrAuthExpired
	case strings.HasPrefix(e, authRevokedErr):
		return ErrAuthRevoked
	case strings.HasPrefix(e, accountAuthExpiredErr):
		return ErrAccountAuthExpired
	}

	return nil
}

// ServerError is an -ERR the engine has no specific handling for.
type ServerError struct {
	Desc string
}

func (e *ServerError) Error() string {
	return "nats: " + e.Desc
}

// PermissionError is a permissions violation reported by the server. The
// connection stays usable.
type PermissionError struct {
	Desc string
}

func (e *PermissionError) Error() string {
	return "nats: " + e.Desc
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionViolation
}
