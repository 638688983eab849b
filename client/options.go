package client

import (
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultURL                  = "nats://127.0.0.1:4222"
	DefaultMaxReconnect         = 60
	DefaultReconnectWait        = 2 * time.Second
	DefaultReconnectJitter      = 100 * time.Millisecond
	DefaultTimeout              = 2 * time.Second
	DefaultPingInterval         = 2 * time.Minute
	DefaultMaxPingOut           = 2
	DefaultMaxChanLen           = 64 * 1024
	DefaultReconnectBufSize     = 8 * 1024 * 1024
	DefaultDrainTimeout         = 30 * time.Second
	DefaultFlusherTimeout       = time.Minute
	DefaultSubPendingMsgsLimit  = 512 * 1024
	DefaultSubPendingBytesLimit = 64 * 1024 * 1024
	RequestChanLen              = 8
	InboxPrefix                 = "_INBOX."
	LangString                  = "go"
)

// ConnHandler is used for asynchronous connection lifecycle events.
type ConnHandler func(*Conn)

// ConnErrHandler is used for lifecycle events that carry an error, such as
// a disconnect.
type ConnErrHandler func(*Conn, error)

// ErrHandler receives errors that happen away from any caller, like a slow
// consumer dropping messages. sub is nil when the error is not tied to a
// subscription.
type ErrHandler func(*Conn, *Subscription, error)

// MsgHandler processes messages delivered to an asynchronous subscription.
type MsgHandler func(*Msg)

// MsgFilter sees every message on a subject before it is queued for its
// subscription. It may return a rewritten message, or nil to drop it. Filters
// run on the reading goroutine and must not block.
type MsgFilter func(*Msg) *Msg

// ReconnectDelayHandler returns how long to wait before the next pass over
// the server pool. attempts counts completed passes, starting at 1.
type ReconnectDelayHandler func(attempts int) time.Duration

// CustomDialer can be used to specify any dialer, not necessarily a
// *net.Dialer.
type CustomDialer interface {
	Dial(network, address string) (net.Conn, error)
}

// Options configures a connection. GetDefaultOptions returns the values
// Connect starts from.
type Options struct {
	// Url is a single server to connect to. Servers is tried as well.
	Url string

	// Servers is a configured set of servers this client will use when
	// connecting or reconnecting.
	Servers []string

	// NoRandomize disables shuffling of the server pool.
	NoRandomize bool

	// Name is an optional name announced to the server in CONNECT.
	Name string

	Verbose  bool
	Pedantic bool

	// AllowReconnect enables the reconnect loop after a lost connection.
	AllowReconnect bool

	// MaxReconnect is the number of attempts made against a single server
	// before it is dropped from the pool. A negative value never drops it.
	MaxReconnect int

	// ReconnectWait and ReconnectJitter set the delay between passes over
	// the pool, unless CustomReconnectDelayCB is set.
	ReconnectWait          time.Duration
	ReconnectJitter        time.Duration
	CustomReconnectDelayCB ReconnectDelayHandler

	// RetryOnFailedConnect makes Connect return a usable, reconnecting
	// connection when no server could be reached.
	RetryOnFailedConnect bool

	// Timeout bounds dialing and the INFO/CONNECT handshake.
	Timeout time.Duration

	// DrainTimeout bounds how long Drain waits for subscriptions to empty.
	DrainTimeout time.Duration

	// FlusherTimeout is the write deadline applied to the socket.
	FlusherTimeout time.Duration

	PingInterval time.Duration
	MaxPingsOut  int

	// ReconnectBufSize bounds the bytes buffered while reconnecting.
	// Publishing past it fails with ErrReconnectBufExceeded.
	ReconnectBufSize int

	// SubChanLen is the channel size of synchronous subscriptions.
	SubChanLen int

	User     string
	Password string
	Token    string

	// NoEcho asks the server not to deliver our own publishes back to us.
	NoEcho bool

	// UseOldRequestStyle creates a dedicated inbox subscription per request
	// instead of multiplexing replies over a shared one.
	UseOldRequestStyle bool

	// InboxPrefix replaces "_INBOX" in generated reply subjects.
	InboxPrefix string

	// IDGenerator produces the unique part of inbox subjects.
	IDGenerator IDGenerator

	Dialer CustomDialer

	ConnectedCB         ConnHandler
	ClosedCB            ConnHandler
	DisconnectedErrCB   ConnErrHandler
	ReconnectedCB       ConnHandler
	DiscoveredServersCB ConnHandler
	LameDuckModeHandler ConnHandler
	AsyncErrorCB        ErrHandler

	Log *zap.Logger
}

// Option is a function on the options for a connection.
type Option func(*Options) error

func GetDefaultOptions() Options {
	return Options{
		AllowReconnect:   true,
		MaxReconnect:     DefaultMaxReconnect,
		ReconnectWait:    DefaultReconnectWait,
		ReconnectJitter:  DefaultReconnectJitter,
		Timeout:          DefaultTimeout,
		DrainTimeout:     DefaultDrainTimeout,
		FlusherTimeout:   DefaultFlusherTimeout,
		PingInterval:     DefaultPingInterval,
		MaxPingsOut:      DefaultMaxPingOut,
		ReconnectBufSize: DefaultReconnectBufSize,
		SubChanLen:       DefaultMaxChanLen,
		InboxPrefix:      InboxPrefix,
		IDGenerator:      NUIDGenerator{},
		Log:              zap.NewNop(),
	}
}

// Connect connects to the servers in url, a comma separated list.
func Connect(url string, options ...Option) (*Conn, error) {
	opts := GetDefaultOptions()
	opts.Servers = processURLString(url)

	for _, opt := range options {
		if opt == nil {
			continue
		}

		if err := opt(&opts); err != nil {
			return nil, err
		}
	}

	return opts.Connect()
}

func processURLString(url string) []string {
	urls := strings.Split(url, ",")

	var j int
	for _, s := range urls {
		u := strings.TrimSpace(s)
		if len(u) > 0 {
			urls[j] = u
			j++
		}
	}

	return urls[:j]
}

func Name(name string) Option {
	return func(o *Options) error {
		o.Name = name
		return nil
	}
}

func UserInfo(user, password string) Option {
	return func(o *Options) error {
		o.User = user
		o.Password = password
		return nil
	}
}

func Token(token string) Option {
	return func(o *Options) error {
		o.Token = token
		return nil
	}
}

func Verbose() Option {
	return func(o *Options) error {
		o.Verbose = true
		return nil
	}
}

func Timeout(t time.Duration) Option {
	return func(o *Options) error {
		o.Timeout = t
		return nil
	}
}

func DontRandomize() Option {
	return func(o *Options) error {
		o.NoRandomize = true
		return nil
	}
}

func NoReconnect() Option {
	return func(o *Options) error {
		o.AllowReconnect = false
		return nil
	}
}

func MaxReconnects(max int) Option {
	return func(o *Options) error {
		o.MaxReconnect = max
		return nil
	}
}

func ReconnectWait(t time.Duration) Option {
	return func(o *Options) error {
		o.ReconnectWait = t
		return nil
	}
}

func ReconnectJitter(jitter time.Duration) Option {
	return func(o *Options) error {
		o.ReconnectJitter = jitter
		return nil
	}
}

func CustomReconnectDelay(cb ReconnectDelayHandler) Option {
	return func(o *Options) error {
		o.CustomReconnectDelayCB = cb
		return nil
	}
}

// RetryOnFailedConnect sets whether Connect keeps trying in the background
// when no server can be reached at first.
func RetryOnFailedConnect(retry bool) Option {
	return func(o *Options) error {
		o.RetryOnFailedConnect = retry
		return nil
	}
}

func ReconnectBufSize(size int) Option {
	return func(o *Options) error {
		o.ReconnectBufSize = size
		return nil
	}
}

func PingInterval(t time.Duration) Option {
	return func(o *Options) error {
		o.PingInterval = t
		return nil
	}
}

func MaxPingsOutstanding(max int) Option {
	return func(o *Options) error {
		o.MaxPingsOut = max
		return nil
	}
}

func SyncQueueLen(max int) Option {
	return func(o *Options) error {
		o.SubChanLen = max
		return nil
	}
}

func DrainTimeout(t time.Duration) Option {
	return func(o *Options) error {
		o.DrainTimeout = t
		return nil
	}
}

func FlusherTimeout(t time.Duration) Option {
	return func(o *Options) error {
		o.FlusherTimeout = t
		return nil
	}
}

func NoEcho() Option {
	return func(o *Options) error {
		o.NoEcho = true
		return nil
	}
}

func UseOldRequestStyle() Option {
	return func(o *Options) error {
		o.UseOldRequestStyle = true
		return nil
	}
}

// CustomInboxPrefix sets the prefix of generated inboxes. It may not
// contain wildcards.
func CustomInboxPrefix(prefix string) Option {
	return func(o *Options) error {
		if prefix == "" || strings.ContainsAny(prefix, ">*") || strings.HasSuffix(prefix, ".") {
			return errors.New("nats: invalid custom inbox prefix")
		}

		o.InboxPrefix = prefix + "."
		return nil
	}
}

func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Options) error {
		if gen == nil {
			return ErrInvalidArg
		}

		o.IDGenerator = gen
		return nil
	}
}

func SetCustomDialer(dialer CustomDialer) Option {
	return func(o *Options) error {
		o.Dialer = dialer
		return nil
	}
}

func ConnectHandler(cb ConnHandler) Option {
	return func(o *Options) error {
		o.ConnectedCB = cb
		return nil
	}
}

func ClosedHandler(cb ConnHandler) Option {
	return func(o *Options) error {
		o.ClosedCB = cb
		return nil
	}
}

func DisconnectErrHandler(cb ConnErrHandler) Option {
	return func(o *Options) error {
		o.DisconnectedErrCB = cb
		return nil
	}
}

func ReconnectHandler(cb ConnHandler) Option {
	return func(o *Options) error {
		o.ReconnectedCB = cb
		return nil
	}
}

func DiscoveredServersHandler(cb ConnHandler) Option {
	return func(o *Options) error {
		o.DiscoveredServersCB = cb
		return nil
	}
}

func LameDuckModeHandler(cb ConnHandler) Option {
	return func(o *Options) error {
		o.LameDuckModeHandler = cb
		return nil
	}
}

func ErrorHandler(cb ErrHandler) Option {
	return func(o *Options) error {
		o.AsyncErrorCB = cb
		return nil
	}
}

// Logger sets the logger the connection reports its lifecycle to.
func Logger(log *zap.Logger) Option {
	return func(o *Options) error {
		if log == nil {
			return ErrInvalidArg
		}

		o.Log = log
		return nil
	}
}
