// Package metrics registers the service's Prometheus collectors on a private
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cakeday"

// Sweep results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Metrics holds every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	sweeps        *prometheus.CounterVec
	sweepsSkipped prometheus.Counter
	sweepDur      prometheus.Histogram
	lastSweepTS   prometheus.Gauge
	notifications *prometheus.CounterVec
	recordsAdded  prometheus.Counter
	recordsDel    prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.sweeps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_total",
		Help:      "Completed daily sweeps by result",
	}, []string{"result"})
	m.sweepsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_skipped_total",
		Help:      "Sweep triggers skipped because a sweep was already running",
	})
	m.sweepDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Time spent in one sweep",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
	m.lastSweepTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix timestamp of the last completed sweep",
	})
	m.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification delivery attempts by status",
	}, []string{"status"})
	m.recordsAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_added_total",
		Help:      "Records added through the chat interface",
	})
	m.recordsDel = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_deleted_total",
		Help:      "Records deleted through the chat interface",
	})

	m.registry.MustRegister(
		m.sweeps, m.sweepsSkipped, m.sweepDur, m.lastSweepTS,
		m.notifications, m.recordsAdded, m.recordsDel,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SweepFinished records a completed sweep.
func (m *Metrics) SweepFinished(result string, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(result).Inc()
	m.sweepDur.Observe(d.Seconds())
	m.lastSweepTS.Set(float64(at.Unix()))
}

// SweepSkipped records a trigger dropped by mutual exclusion.
func (m *Metrics) SweepSkipped() {
	if m == nil {
		return
	}
	m.sweepsSkipped.Inc()
}

// Notification records one delivery attempt.
func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(status).Inc()
}

// RecordAdded counts a created record.
func (m *Metrics) RecordAdded() {
	if m == nil {
		return
	}
	m.recordsAdded.Inc()
}

// RecordDeleted counts a deleted record.
func (m *Metrics) RecordDeleted() {
	if m == nil {
		return
	}
	m.recordsDel.Inc()
}
