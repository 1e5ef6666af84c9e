// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for arrayshim's session pool and query pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric arrayshim exports.
type Metrics struct {
	SessionsCreatedTotal *prometheus.CounterVec
	SessionsReapedTotal  prometheus.Counter
	QueriesTotal         *prometheus.CounterVec
	CancelsTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec

	SessionsActive prometheus.Gauge
	SessionsMax    prometheus.Gauge

	QueryDuration prometheus.Histogram
}

// DefaultMetrics registers and returns the full metric set.
func DefaultMetrics() *Metrics {
	return &Metrics{
		SessionsCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrayshim_sessions_created_total",
				Help: "Total number of sessions created by new_session",
			},
			[]string{"status"},
		),
		SessionsReapedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "arrayshim_sessions_reaped_total",
				Help: "Total number of sessions reclaimed by the timeout reaper",
			},
		),
		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrayshim_queries_total",
				Help: "Total number of execute_query calls by outcome",
			},
			[]string{"status"},
		),
		CancelsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "arrayshim_cancels_total",
				Help: "Total number of cancel calls",
			},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arrayshim_errors_total",
				Help: "Total number of errors by HTTP status code",
			},
			[]string{"status"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arrayshim_sessions_active",
				Help: "Number of sessions currently Unavailable",
			},
		),
		SessionsMax: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "arrayshim_sessions_max",
				Help: "Configured maximum number of concurrent sessions",
			},
		),
		QueryDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arrayshim_query_duration_seconds",
				Help:    "execute_query duration in seconds, including prefix statements",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 20),
			},
		),
	}
}

// RecordSessionCreated records the outcome of a new_session call.
func (m *Metrics) RecordSessionCreated(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.SessionsCreatedTotal.WithLabelValues(status).Inc()
}

// RecordSessionReaped records a reaper reclaiming an orphaned slot.
func (m *Metrics) RecordSessionReaped() {
	if m == nil {
		return
	}
	m.SessionsReapedTotal.Inc()
}

// RecordQuery records one execute_query call.
func (m *Metrics) RecordQuery(durationSeconds float64, status string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(status).Inc()
	m.QueryDuration.Observe(durationSeconds)
}

// RecordCancel records one cancel call.
func (m *Metrics) RecordCancel() {
	if m == nil {
		return
	}
	m.CancelsTotal.Inc()
}

// RecordError records a failed request by its HTTP status.
func (m *Metrics) RecordError(status string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(status).Inc()
}

// SetSessionGauges updates the active/max session gauges. httpapi calls it
// after each new_session, so the gauges reflect occupancy as of the most
// recent allocation attempt.
func (m *Metrics) SetSessionGauges(active, max int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(active))
	m.SessionsMax.Set(float64(max))
}
