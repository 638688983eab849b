package client

import (
	"sync/atomic"
)

// Statistics tracks traffic on a connection. Returned snapshots are safe
// to read without synchronisation.
type Statistics struct {
	InMsgs     uint64
	OutMsgs    uint64
	InBytes    uint64
	OutBytes   uint64
	Reconnects uint64
}

type statsCollector struct {
	stats Statistics
}

func (c *statsCollector) recordIn(bytes int) {
	atomic.AddUint64(&c.stats.InMsgs, 1)
	atomic.AddUint64(&c.stats.InBytes, uint64(bytes))
}

func (c *statsCollector) recordOut(bytes int) {
	atomic.AddUint64(&c.stats.OutMsgs, 1)
	atomic.AddUint64(&c.stats.OutBytes, uint64(bytes))
}

func (c *statsCollector) recordReconnect() {
	atomic.AddUint64(&c.stats.Reconnects, 1)
}

func (c *statsCollector) snapshot() Statistics {
	return Statistics{
		InMsgs:     atomic.LoadUint64(&c.stats.InMsgs),
		OutMsgs:    atomic.LoadUint64(&c.stats.OutMsgs),
		InBytes:    atomic.LoadUint64(&c.stats.InBytes),
		OutBytes:   atomic.LoadUint64(&c.stats.OutBytes),
		Reconnects: atomic.LoadUint64(&c.stats.Reconnects),
	}
}

// Stats returns a snapshot of the connection's traffic counters.
func (nc *Conn) Stats() Statistics {
	return nc.stats.snapshot()
}
