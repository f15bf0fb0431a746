// Package metrics exposes the tracker state to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/airocat/internal/status"
)

// Source provides status snapshots.
type Source interface {
	Snapshot() status.Snapshot
}

// Collector builds metrics from a fresh snapshot on every scrape.
type Collector struct {
	src Source

	reading    *prometheus.Desc
	published  *prometheus.Desc
	attempts   *prometheus.Desc
	connected  *prometheus.Desc
	stabilized *prometheus.Desc
	uptime     *prometheus.Desc
}

// NewCollector creates a Collector reading from src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		reading: prometheus.NewDesc("airocat_reading",
			"Current value of a sensor reading.",
			[]string{"topic", "caption"}, nil),
		published: prometheus.NewDesc("airocat_reading_published",
			"Whether the current value of a reading reached the broker (1) or not (0).",
			[]string{"topic"}, nil),
		attempts: prometheus.NewDesc("airocat_publish_attempts_total",
			"Publish attempts by result.",
			[]string{"result"}, nil),
		connected: prometheus.NewDesc("airocat_mqtt_connected",
			"Whether the broker connection is up (1) or down (0).",
			nil, nil),
		stabilized: prometheus.NewDesc("airocat_stabilized",
			"Whether the climate sensor finished both warm-up phases (1) or not (0).",
			nil, nil),
		uptime: prometheus.NewDesc("airocat_uptime_seconds",
			"Seconds since the daemon started.",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.reading
	ch <- c.published
	ch <- c.attempts
	ch <- c.connected
	ch <- c.stabilized
	ch <- c.uptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()

	for _, r := range snap.Readings {
		ch <- prometheus.MustNewConstMetric(c.reading, prometheus.GaugeValue, r.Numeric, r.Topic, r.Caption)
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.GaugeValue, boolToFloat(r.Published), r.Topic)
	}
	ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(snap.Publishes.OK), "ok")
	ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(snap.Publishes.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolToFloat(snap.MQTTConnected))
	ch <- prometheus.MustNewConstMetric(c.stabilized, prometheus.GaugeValue, boolToFloat(snap.Stabilized))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, snap.Uptime().Seconds())
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler returns an HTTP handler serving c plus Go build info from a
// dedicated registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewBuildInfoCollector())
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
