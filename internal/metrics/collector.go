// Package metrics exports connection statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luma/herald/client"
)

const namespace = "herald"

// Source is what the collector reads on every scrape. *client.Conn
// implements it.
type Source interface {
	Stats() client.Statistics
	Status() client.Status
	NumSubscriptions() int
}

// Collector reports the counters of a single connection.
type Collector struct {
	src Source

	inMsgs        *prometheus.Desc
	outMsgs       *prometheus.Desc
	inBytes       *prometheus.Desc
	outBytes      *prometheus.Desc
	reconnects    *prometheus.Desc
	subscriptions *prometheus.Desc
	connected     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(src Source, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "connection", name), help, nil, constLabels)
	}

	return &Collector{
		src:           src,
		inMsgs:        desc("in_messages_total", "Messages received from the server"),
		outMsgs:       desc("out_messages_total", "Messages published"),
		inBytes:       desc("in_bytes_total", "Payload bytes received from the server"),
		outBytes:      desc("out_bytes_total", "Payload bytes published"),
		reconnects:    desc("reconnects_total", "Successful reconnects"),
		subscriptions: desc("subscriptions", "Active subscriptions"),
		connected:     desc("connected", "1 while the connection is established"),
	}
}

// Register creates a collector for src and registers it with registry.
func Register(registry prometheus.Registerer, src Source, constLabels prometheus.Labels) (*Collector, error) {
	c := NewCollector(src, constLabels)

	if err := registry.Register(c); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inMsgs
	ch <- c.outMsgs
	ch <- c.inBytes
	ch <- c.outBytes
	ch <- c.reconnects
	ch <- c.subscriptions
	ch <- c.connected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.inMsgs, prometheus.CounterValue, float64(stats.InMsgs))
	ch <- prometheus.MustNewConstMetric(c.outMsgs, prometheus.CounterValue, float64(stats.OutMsgs))
	ch <- prometheus.MustNewConstMetric(c.inBytes, prometheus.CounterValue, float64(stats.InBytes))
	ch <- prometheus.MustNewConstMetric(c.outBytes, prometheus.CounterValue, float64(stats.OutBytes))
	ch <- prometheus.MustNewConstMetric(c.reconnects, prometheus.CounterValue, float64(stats.Reconnects))
	ch <- prometheus.MustNewConstMetric(c.subscriptions, prometheus.GaugeValue, float64(c.src.NumSubscriptions()))

	var connected float64
	if c.src.Status() == client.CONNECTED {
		connected = 1
	}

	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
}
