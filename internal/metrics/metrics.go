package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchlog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Catalogue store metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_store_operations_total",
			Help: "Catalogue store reads and writes by outcome",
		},
		[]string{"operation", "result"}, // "ok", "error", "conflict", "rejected"
	)

	BatchChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_batch_changes_applied_total",
			Help: "Queued changes that took effect, by change type",
		},
		[]string{"type"},
	)

	// TMDB metrics
	TMDBRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_tmdb_requests_total",
			Help: "Requests sent to TMDB by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watchlog_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Enrichment metrics
	EnrichmentItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlog_enrichment_items_total",
			Help: "Catalogue items processed by enrichment runs, by outcome",
		},
		[]string{"outcome"}, // "enriched", "skipped", "failed"
	)

	EnrichmentRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watchlog_enrichment_runs_total",
			Help: "Total number of enrichment runs",
		},
	)
)
