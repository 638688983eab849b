package client

import (
	"time"

	"go.uber.org/zap"
)

// Drain puts the connection in draining mode. Every subscription stops
// receiving new messages but delivers what it has pending, then publishes
// are flushed and the connection is closed. Drain returns right away; use
// the ClosedHandler to learn when it is done.
func (nc *Conn) Drain() error {
	nc.mu.Lock()

	if nc.isClosed() {
		nc.mu.Unlock()
		return ErrConnectionClosed
	}

	if nc.isConnecting() || nc.isReconnecting() {
		nc.mu.Unlock()
		nc.Close()
		return ErrConnectionReconnecting
	}

	if nc.isDraining() {
		nc.mu.Unlock()
		return nil
	}

	nc.changeConnStatus(DRAINING_SUBS)

	go nc.drainConnection()

	nc.mu.Unlock()

	return nil
}

func (nc *Conn) drainConnection() {
	log := nc.log.Named("drain")

	nc.mu.Lock()

	subs := make([]*Subscription, 0, len(nc.subs))
	nc.subsMu.RLock()
	for _, s := range nc.subs {
		if s == nc.respMux {
			continue
		}
		subs = append(subs, s)
	}
	nc.subsMu.RUnlock()

	respMux := nc.respMux
	drainWait := nc.Opts.DrainTimeout

	nc.mu.Unlock()

	// Replies to requests in flight keep flowing until the other
	// subscriptions are done.
	for _, s := range subs {
		if err := s.Drain(); err != nil {
			log.Debug("Could not drain subscription", zap.String("subject", s.Subject), zap.Error(err))
			nc.reportAsyncErr(s, err)
		}
	}

	timeout := time.Now().Add(drainWait)

	if respMux != nil {
		for time.Now().Before(timeout) {
			if nc.IsClosed() {
				return
			}

			if nc.NumSubscriptions() <= 1 {
				break
			}

			time.Sleep(drainPollInterval)
		}

		if err := respMux.Drain(); err != nil {
			nc.reportAsyncErr(respMux, err)
		}
	}

	for time.Now().Before(timeout) {
		if nc.IsClosed() {
			return
		}

		if nc.NumSubscriptions() == 0 {
			break
		}

		time.Sleep(drainPollInterval)
	}

	if n := nc.NumSubscriptions(); n > 0 {
		log.Warn("Drain timed out", zap.Int("subscriptions", n))
		nc.reportAsyncErr(nil, ErrDrainTimeout)
	}

	nc.mu.Lock()
	nc.changeConnStatus(DRAINING_PUBS)
	nc.mu.Unlock()

	if err := nc.FlushTimeout(drainFlushTimeout); err != nil {
		log.Debug("Flush while draining failed", zap.Error(err))
		nc.reportAsyncErr(nil, err)
	}

	nc.closeImpl(CLOSED, true, nil)
}
