// Package metrics exposes the bot's Prometheus metrics.
//
// Counters:
//   - trackbot_jobs_enqueued_total, trackbot_jobs_promoted_total
//   - trackbot_jobs_resolved_total, trackbot_jobs_evicted_total
//   - trackbot_dedup_suppressed_total{kind}
//   - trackbot_playlist_fetch_truncated_total
//   - trackbot_reconcile_total{outcome}
//
// Gauges and histograms:
//   - trackbot_job_processing: 1 while a question is open
//   - trackbot_tick_duration_seconds: scheduler tick latency
//
// All methods are safe on a nil *Collector, so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the bot's metrics and the registry they are registered with.
type Collector struct {
	registry *prometheus.Registry

	jobsEnqueued prometheus.Counter
	jobsPromoted prometheus.Counter
	jobsResolved prometheus.Counter
	jobsEvicted  prometheus.Counter

	dedupSuppressed *prometheus.CounterVec
	fetchTruncated  prometheus.Counter
	reconciles      *prometheus.CounterVec

	jobProcessing prometheus.Gauge
	tickDuration  prometheus.Histogram
}

// NewCollector creates a collector registered on a fresh registry, along with the Go and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbot_jobs_enqueued_total",
			Help: "Total number of confirmation jobs enqueued",
		}),
		jobsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbot_jobs_promoted_total",
			Help: "Total number of jobs promoted to processing and asked",
		}),
		jobsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbot_jobs_resolved_total",
			Help: "Total number of jobs resolved by an answer",
		}),
		jobsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbot_jobs_evicted_total",
			Help: "Total number of jobs evicted after going unanswered",
		}),
		dedupSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbot_dedup_suppressed_total",
			Help: "Total number of events dropped by the dedup gate",
		}, []string{"kind"}),
		fetchTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trackbot_playlist_fetch_truncated_total",
			Help: "Total number of playlist snapshots cut short by a failed page fetch",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackbot_reconcile_total",
			Help: "Total number of playlist reconciliations by outcome",
		}, []string{"outcome"}),
		jobProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackbot_job_processing",
			Help: "1 while a confirmation question is open",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trackbot_tick_duration_seconds",
			Help:    "Duration of confirmation scheduler ticks",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}

	c.registry.MustRegister(
		c.jobsEnqueued,
		c.jobsPromoted,
		c.jobsResolved,
		c.jobsEvicted,
		c.dedupSuppressed,
		c.fetchTruncated,
		c.reconciles,
		c.jobProcessing,
		c.tickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordEnqueue() {
	if c == nil {
		return
	}
	c.jobsEnqueued.Inc()
}

func (c *Collector) RecordPromote() {
	if c == nil {
		return
	}
	c.jobsPromoted.Inc()
	c.jobProcessing.Set(1)
}

func (c *Collector) RecordResolve() {
	if c == nil {
		return
	}
	c.jobsResolved.Inc()
	c.jobProcessing.Set(0)
}

func (c *Collector) RecordEvict() {
	if c == nil {
		return
	}
	c.jobsEvicted.Inc()
	c.jobProcessing.Set(0)
}

// SetProcessing sets the processing gauge to what the queue reports.
func (c *Collector) SetProcessing(processing bool) {
	if c == nil {
		return
	}
	if processing {
		c.jobProcessing.Set(1)
		return
	}
	c.jobProcessing.Set(0)
}

// RecordSuppressed counts an event dropped by the dedup gate; kind is "message" or "link".
func (c *Collector) RecordSuppressed(kind string) {
	if c == nil {
		return
	}
	c.dedupSuppressed.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordTruncatedFetch() {
	if c == nil {
		return
	}
	c.fetchTruncated.Inc()
}

// RecordReconcile counts one reconciliation; outcome is "added", "moved", "already_first" or "failed".
func (c *Collector) RecordReconcile(outcome string) {
	if c == nil {
		return
	}
	c.reconciles.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveTick(d time.Duration) {
	if c == nil {
		return
	}
	c.tickDuration.Observe(d.Seconds())
}
