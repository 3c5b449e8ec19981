package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricActionsTotal              = "querybuilder_actions_total"
	MetricSubmissionsTotal          = "querybuilder_submissions_total"
	MetricSubmissionDurationSeconds = "querybuilder_submission_duration_seconds"
	MetricSessions                  = "querybuilder_sessions"
)

// Metrics collects the server metrics in a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	actionsTotal       *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	sessions           prometheus.Gauge
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricActionsTotal,
			Help: "Actions dispatched against query sessions",
		}, []string{"kind", "result"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSubmissionsTotal,
			Help: "Search requests submitted, by outcome",
		}, []string{"outcome"}),
		submissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSubmissionDurationSeconds,
			Help:    "Round trip time of search requests",
			Buckets: prometheus.DefBuckets,
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSessions,
			Help: "Open query sessions",
		}),
	}
	m.registry.MustRegister(m.actionsTotal, m.submissionsTotal, m.submissionDuration, m.sessions)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeAction(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.actionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) observeSubmission(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
	m.submissionDuration.Observe(d.Seconds())
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}
