// Package metrics holds the Prometheus collectors DuckDesk reports to.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueriesTotal counts statements run through the registry by outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdesk_queries_total",
			Help: "Total number of statements executed",
		},
		[]string{"status"},
	)
	// QueryDuration is the latency of statement execution.
	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckdesk_query_duration_seconds",
			Help:    "Statement execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// HandlesOpen is the number of live database handles.
	HandlesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckdesk_handles_open",
			Help: "Number of open database handles",
		},
	)
	// AttachFailuresTotal counts sibling databases that could not be attached
	// when a handle was created.
	AttachFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdesk_attach_failures_total",
			Help: "Total number of failed sibling attachments",
		},
	)
	// ImportsTotal counts table imports by outcome.
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdesk_imports_total",
			Help: "Total number of table imports",
		},
		[]string{"status"},
	)
	// SpoolFilesSwept counts stale upload files removed by the sweeper.
	SpoolFilesSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duckdesk_spool_files_swept_total",
			Help: "Total number of stale upload files removed",
		},
	)
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdesk_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Status returns the outcome label for err.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
