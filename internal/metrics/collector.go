// Package metrics exposes Prometheus instrumentation for the monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uied-nav/sitemonitor/internal/core"
)

type Collector struct {
	registry *prometheus.Registry

	checksTotal   *prometheus.CounterVec
	checkDuration prometheus.Histogram
	websites      *prometheus.GaugeVec
	sweepDuration prometheus.Histogram
	lastSweep     prometheus.Gauge
	logsDeleted   prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemonitor_checks_total",
			Help: "Probes performed, labeled by outcome.",
		}, []string{"status"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitemonitor_check_duration_seconds",
			Help:    "Wall-clock duration of individual probes.",
			Buckets: prometheus.DefBuckets,
		}),
		websites: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sitemonitor_websites",
			Help: "Registered websites by current status.",
		}, []string{"status"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitemonitor_sweep_duration_seconds",
			Help:    "Duration of full sweeps over all websites.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sitemonitor_last_sweep_timestamp_seconds",
			Help: "Unix time of the most recent completed sweep.",
		}),
		logsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitemonitor_logs_deleted_total",
			Help: "Check log rows removed by retention.",
		}),
	}

	c.registry.MustRegister(
		c.checksTotal, c.checkDuration, c.websites,
		c.sweepDuration, c.lastSweep, c.logsDeleted,
	)
	return c
}

// Registry returns the private registry backing the /metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) RecordCheck(out core.Outcome) {
	c.checksTotal.WithLabelValues(string(out.Status)).Inc()
	c.checkDuration.Observe(float64(out.ResponseTimeMs) / 1000)
}

func (c *Collector) RecordSweep(d time.Duration) {
	c.sweepDuration.Observe(d.Seconds())
	c.lastSweep.SetToCurrentTime()
}

func (c *Collector) RecordCleanup(deleted int64) {
	c.logsDeleted.Add(float64(deleted))
}

func (c *Collector) SetWebsiteCounts(stats core.Statistics) {
	c.websites.WithLabelValues(string(core.StatusActive)).Set(float64(stats.Active))
	c.websites.WithLabelValues(string(core.StatusFailed)).Set(float64(stats.Failed))
	c.websites.WithLabelValues(string(core.StatusUnchecked)).Set(float64(stats.Unchecked))
}
