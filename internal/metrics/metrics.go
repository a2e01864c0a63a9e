// Package metrics collects Prometheus telemetry for the generation daemon:
// job outcomes, transport attempts, breaker state, and quota consumption.
// The collector owns its registry so tests never trip over duplicate
// registration in the global one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evanhartley/genforge/internal/domain/model"
)

// Collector gathers daemon metrics. It satisfies the orchestrator's job
// observer, so wiring it in is one SetObserver call.
type Collector struct {
	registry *prometheus.Registry

	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobAttempts prometheus.Histogram
	jobPolls    prometheus.Histogram

	breakerState prometheus.Gauge

	usageCount prometheus.Gauge
	usageLimit prometheus.Gauge
}

// NewCollector creates a collector with a fresh registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "genforge"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "total",
			Help:      "Terminal generation jobs by outcome state",
		},
		[]string{"state", "type"},
	)

	c.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time from job creation to its terminal state",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17m
		},
		[]string{"state"},
	)

	c.jobAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submission_attempts",
			Help:      "Transport attempts consumed by a job's submission",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		},
	)

	c.jobPolls = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "polls",
			Help:      "Status checks performed before a job reached a terminal state",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	c.breakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Shared circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	c.usageCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "count",
			Help:      "Committed generation units in the ledger",
		},
	)

	c.usageLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "limit",
			Help:      "Configured quota ceiling",
		},
	)

	c.registry.MustRegister(
		c.jobsTotal,
		c.jobDuration,
		c.jobAttempts,
		c.jobPolls,
		c.breakerState,
		c.usageCount,
		c.usageLimit,
	)

	return c
}

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape endpoint handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// JobFinished records a terminal job. Implements the orchestrator's
// observer hook.
func (c *Collector) JobFinished(job model.GenerationJob) {
	c.jobsTotal.WithLabelValues(string(job.State), string(job.Type)).Inc()
	c.jobDuration.WithLabelValues(string(job.State)).Observe(job.Duration().Seconds())
	if job.Attempts > 0 {
		c.jobAttempts.Observe(float64(job.Attempts))
	}
	if job.Polls > 0 {
		c.jobPolls.Observe(float64(job.Polls))
	}
}

// SetBreakerState records the breaker's current state by name. Unknown
// names are treated as open: if the breaker reports something this
// collector has never heard of, pessimism is the safer reading.
func (c *Collector) SetBreakerState(state string) {
	switch state {
	case "closed":
		c.breakerState.Set(0)
	case "half-open":
		c.breakerState.Set(1)
	default:
		c.breakerState.Set(2)
	}
}

// SetUsage publishes the ledger's current counts.
func (c *Collector) SetUsage(snap model.UsageSnapshot) {
	c.usageCount.Set(float64(snap.Count))
	c.usageLimit.Set(float64(snap.Limit))
}
