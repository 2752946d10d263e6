// ABOUTME: Prometheus collectors for job runs, upstream calls, events and HTTP triggers.
// ABOUTME: Registered on the default registry and served from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRuns counts per-user job results by job, outcome and error kind.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_job_runs_total",
			Help: "Per-user job results",
		},
		[]string{"job", "success", "kind"},
	)

	// JobDuration observes one job run for one user.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloom_job_duration_seconds",
			Help:    "Per-user job duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job"},
	)

	// UpstreamRequests counts wearable API calls by endpoint and HTTP status.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_upstream_requests_total",
			Help: "Wearable API requests",
		},
		[]string{"endpoint", "status"},
	)

	// UpstreamDuration observes wearable API latency.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloom_upstream_request_duration_seconds",
			Help:    "Wearable API request duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// EventsPublished counts outbound events by type and outcome.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_events_published_total",
			Help: "Outbound events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// EventsConsumed counts inbound events by type.
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_events_consumed_total",
			Help: "Inbound events by type",
		},
		[]string{"type"},
	)

	// AnomaliesDetected counts triggered anomaly events by reason.
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_anomalies_detected_total",
			Help: "Triggered anomaly events",
		},
		[]string{"reason"},
	)

	// RequestsTotal counts HTTP trigger requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloom_http_requests_total",
			Help: "HTTP trigger requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration observes HTTP trigger latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bloom_http_request_duration_seconds",
			Help:    "HTTP trigger request duration in seconds",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 30},
		},
		[]string{"endpoint", "method"},
	)
)
