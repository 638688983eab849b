package client

import (
	"math/rand"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/luma/herald/protocol"
)

// doReconnect walks the server pool until a handshake succeeds, the pool
// runs dry or the connection is closed. It sleeps only after a full pass
// over the pool.
func (nc *Conn) doReconnect(err error) {
	defer nc.reconnectWG.Done()

	log := nc.log.Named("reconnect")

	// The reader and flusher of the lost socket must be gone before a new
	// one is created.
	nc.waitForExits()

	nc.mu.Lock()

	// A Close that won the race already released rqch.
	if nc.isClosed() {
		nc.mu.Unlock()
		return
	}

	nc.err = nil

	if cb := nc.Opts.DisconnectedErrCB; cb != nil && !nc.initc {
		nc.ach.push(func() { cb(nc, err) })
	}

	var (
		waitForGoRoutines bool
		rt                *time.Timer
		attempts          int
		jitter            time.Duration
		wait              time.Duration
	)

	rqch := nc.rqch

	crd := nc.Opts.CustomReconnectDelayCB
	if crd == nil {
		wait = nc.Opts.ReconnectWait
		jitter = nc.Opts.ReconnectJitter
	}

	for i := 0; len(nc.srvPool) > 0; {
		cur, err := nc.selectNextServer()
		if err != nil {
			nc.err = err
			break
		}

		doSleep := i+1 >= len(nc.srvPool)
		nc.mu.Unlock()

		if !doSleep {
			i++
			// Give a concurrent Close a chance to grab the lock.
			runtime.Gosched()
		} else {
			i = 0

			var st time.Duration
			if crd != nil {
				attempts++
				st = crd(attempts)
			} else {
				st = wait
				if jitter > 0 {
					st += time.Duration(rand.Int63n(int64(jitter)))
				}
			}

			if rt == nil {
				rt = time.NewTimer(st)
			} else {
				rt.Reset(st)
			}

			select {
			case <-rqch:
				rt.Stop()
			case <-rt.C:
			}
		}

		if waitForGoRoutines {
			nc.waitForExits()
			waitForGoRoutines = false
		}

		nc.mu.Lock()

		if nc.isClosed() {
			nc.mu.Unlock()
			return
		}

		cur.reconnects++

		if err := nc.createConn(); err != nil {
			log.Debug("Reconnect attempt failed",
				zap.String("server", cur.url.Host),
				zap.Int("attempt", cur.reconnects),
				zap.Error(err))
			nc.err = nil
			continue
		}

		nc.stats.recordReconnect()

		if nc.err = nc.processConnectInit(); nc.err != nil {
			log.Warn("Handshake failed while reconnecting",
				zap.String("server", cur.url.Host),
				zap.Error(nc.err))

			nc.conn.Close()
			nc.conn = nil

			if nc.ar {
				break
			}

			nc.changeConnStatus(RECONNECTING)
			continue
		}

		nc.current.lastErr = nil
		cur.didConnect = true
		cur.reconnects = 0

		nc.resendSubscriptions()

		if nc.err = nc.bw.flushPendingBuffer(); nc.err != nil {
			nc.changeConnStatus(RECONNECTING)
			nc.stopPingTimer()

			nc.conn.Close()
			nc.conn = nil

			// The reader and flusher were started by processConnectInit.
			waitForGoRoutines = true
			continue
		}

		nc.bw.doneWithPending()

		if nc.initc {
			if cb := nc.Opts.ConnectedCB; cb != nil {
				nc.ach.push(func() { cb(nc) })
			}
		} else if cb := nc.Opts.ReconnectedCB; cb != nil {
			nc.ach.push(func() { cb(nc) })
		}

		nc.initc = false

		log.Info("Reconnected", zap.String("server", cur.url.Host))

		nc.mu.Unlock()

		if err := nc.Flush(); err != nil {
			log.Debug("Flush after reconnect failed", zap.Error(err))
		}

		return
	}

	if nc.err == nil {
		nc.err = ErrNoServers
	}

	log.Warn("Giving up reconnecting", zap.Error(nc.err))

	nc.mu.Unlock()

	nc.closeImpl(CLOSED, true, nil)
}

// resendSubscriptions replays every live subscription on a fresh socket,
// sids unchanged, with auto-unsubscribe budgets reduced by what was already
// delivered. Must be called with nc.mu held.
func (nc *Conn) resendSubscriptions() {
	nc.subsMu.RLock()
	subs := make([]*Subscription, 0, len(nc.subs))
	for _, s := range nc.subs {
		subs = append(subs, s)
	}
	nc.subsMu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].sid < subs[j].sid })

	var buf []byte

	for _, s := range subs {
		s.mu.Lock()

		var adjustedMax uint64
		if s.max > 0 {
			if s.delivered < s.max {
				adjustedMax = s.max - s.delivered
			}

			// Nothing left to deliver.
			if adjustedMax == 0 {
				sid := s.sid
				s.mu.Unlock()
				buf = protocol.AppendUnsub(buf, sid, 0)
				continue
			}
		}

		subj, queue, sid := s.Subject, s.Queue, s.sid
		s.mu.Unlock()

		buf = protocol.AppendSub(buf, subj, queue, sid)
		if adjustedMax > 0 {
			buf = protocol.AppendUnsub(buf, sid, int(adjustedMax))
		}
	}

	if len(buf) == 0 {
		return
	}

	if err := nc.bw.writeDirect(buf); err != nil {
		nc.log.Debug("Failed to replay subscriptions", zap.Error(err))
	}
}
