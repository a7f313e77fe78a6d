// Package telemetry holds the Prometheus collectors exposed on /metrics.
// Everything registers against the default registry at init.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics. The path label is the gin route template, never the raw URL,
// so tracking codes do not leak into label values.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Marker metrics.
var (
	// MarkerRequestsTotal counts answered marker requests by category and
	// outcome ("empty", "relayed", "rejected").
	MarkerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marker_requests_total",
			Help: "Total number of marker requests, by resource category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	UpstreamProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_probe_duration_seconds",
			Help:    "Duration of upstream probes that missed the response cache, by result.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"result"},
	)

	// UpstreamCacheHitsTotal is labelled by the cache layer that answered
	// ("memory", "redis").
	UpstreamCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_cache_hits_total",
			Help: "Total number of upstream probes answered from the response cache, by layer.",
		},
		[]string{"layer"},
	)

	UpstreamCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_cache_misses_total",
			Help: "Total number of upstream probes that had to reach the origin.",
		},
	)
)

// Audit log metrics.
var (
	AuditRecordsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_written_total",
			Help: "Total number of access log records persisted.",
		},
	)

	AuditRecordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_records_dropped_total",
			Help: "Total number of access log records dropped because the queue was full.",
		},
	)

	AuditFlushErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_flush_errors_total",
			Help: "Total number of access log batches that failed to persist.",
		},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Number of access log records waiting to be persisted.",
		},
	)
)
