// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec

	// Upstream API metrics
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tacbot_webhook_requests_total",
				Help: "Total number of webhook requests by status",
			},
			[]string{"status"}, // status: success, error, ignored, not_ready
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tacbot_webhook_duration_seconds",
				Help:    "Webhook processing duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30}, // two blocking upstream calls
			},
			[]string{"status"},
		),

		CommandsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tacbot_commands_total",
				Help: "Total number of commands handled by command and status",
			},
			[]string{"command", "status"}, // status: success, denied, invalid_case, not_found, upstream_error, error
		),

		UpstreamRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tacbot_upstream_requests_total",
				Help: "Total number of upstream API requests by API and status",
			},
			[]string{"api", "status"}, // api: caseapi, spark
		),

		UpstreamDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tacbot_upstream_duration_seconds",
				Help:    "Upstream API request duration in seconds by API",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"api"},
		),
	}

	return m
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(status).Observe(duration)
}

// RecordCommand records a handled command
func (m *Metrics) RecordCommand(command, status string) {
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordUpstream records an upstream API request
func (m *Metrics) RecordUpstream(api, status string, duration float64) {
	m.UpstreamRequestsTotal.WithLabelValues(api, status).Inc()
	m.UpstreamDurationSeconds.WithLabelValues(api).Observe(duration)
}
