package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/luma/herald/client"
	"github.com/luma/herald/internal/env"
)

const drainWait = 35 * time.Second

// session is a connection set up from flags and the environment.
type session struct {
	nc     *client.Conn
	log    *zap.Logger
	conf   *env.Config
	closed chan struct{}
}

func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

func openSession(ctx context.Context, extra ...client.Option) (*session, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	override(&conf.URL, servers)
	override(&conf.Name, name)
	override(&conf.User, user)
	override(&conf.Password, password)
	override(&conf.Token, token)
	override(&conf.LogLevel, logLevel)

	if conf.Name == "" {
		conf.Name = "herald-" + uuid.NewString()
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &session{
		log:    log,
		conf:   conf,
		closed: make(chan struct{}),
	}

	opts := []client.Option{
		client.Name(conf.Name),
		client.Logger(log.Named("client")),
		client.MaxReconnects(-1),
		client.ErrorHandler(func(_ *client.Conn, sub *client.Subscription, err error) {
			fields := []zap.Field{zap.Error(err), zap.Stringer("class", client.Classify(err))}
			if sub != nil {
				fields = append(fields, zap.String("subject", sub.Subject))
			}
			log.Warn("Asynchronous error", fields...)
		}),
		client.DisconnectErrHandler(func(_ *client.Conn, err error) {
			log.Warn("Disconnected", zap.Error(err))
		}),
		client.ReconnectHandler(func(nc *client.Conn) {
			log.Info("Reconnected", zap.String("server", nc.ConnectedUrl()))
		}),
		client.ClosedHandler(func(*client.Conn) {
			close(s.closed)
		}),
	}

	if conf.User != "" {
		opts = append(opts, client.UserInfo(conf.User, conf.Password))
	}

	if conf.Token != "" {
		opts = append(opts, client.Token(conf.Token))
	}

	s.nc, err = client.Connect(conf.URL, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}

	log.Debug("Connected",
		zap.String("server", s.nc.ConnectedUrl()),
		zap.String("serverID", s.nc.ConnectedServerId()),
		zap.String("name", conf.Name))

	return s, nil
}

// waitAndDrain blocks until ctx is done or the connection closed, then
// drains the connection and waits for it to close.
func (s *session) waitAndDrain(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.closed:
		return s.nc.LastError()
	}

	s.log.Info("Draining, press Ctrl+C again to force")

	if err := s.nc.Drain(); err != nil {
		return err
	}

	force, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	select {
	case <-s.closed:
	case <-force.Done():
		s.nc.Close()
	case <-time.After(drainWait):
		s.nc.Close()
	}

	return nil
}
