package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsentry_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// analysis sessions created, labelled by tenant
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_sessions_created_total",
			Help: "Total analysis sessions created",
		},
		[]string{"tenant"},
	)

	// sessions dropped by the TTL sweep or explicit expiry
	SessionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adsentry_sessions_expired_total",
			Help: "Total analysis sessions expired",
		},
	)

	// anomalies surfaced, labelled by metric and severity band
	AnomaliesDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_anomalies_detected_total",
			Help: "Total anomalies surfaced by the detector",
		},
		[]string{"metric", "severity"},
	)

	// diagnostic probe executions, labelled by probe and outcome
	// (fired, no_fire, inconclusive, error, timeout)
	ProbeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_probe_runs_total",
			Help: "Total diagnostic probe executions",
		},
		[]string{"probe", "outcome"},
	)

	// probe execution latency
	ProbeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsentry_probe_duration_seconds",
			Help:    "Duration of diagnostic probe executions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"probe"},
	)

	// model calls, labelled by provider and outcome (ok, error, timeout)
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_model_calls_total",
			Help: "Total language model calls",
		},
		[]string{"provider", "outcome"},
	)

	// model call latency per provider
	ModelCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsentry_model_call_duration_seconds",
			Help:    "Duration of language model calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider"},
	)

	// grounded output validation failures, labelled by failing check
	ValidatorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_validator_failures_total",
			Help: "Total grounded output validation failures",
		},
		[]string{"check"},
	)

	// warehouse query latency per query kind
	WarehouseQueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adsentry_warehouse_query_duration_seconds",
			Help:    "Duration of metric warehouse queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	// warehouse rows dropped for unparsable numeric fields
	WarehouseDroppedRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_warehouse_dropped_records_total",
			Help: "Total warehouse rows dropped during parsing",
		},
		[]string{"query"},
	)

	// recommendations generated, labelled by action
	RecommendationsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_recommendations_total",
			Help: "Total recommendations generated",
		},
		[]string{"action"},
	)

	// simulated executions, labelled by terminal status
	ExecutionsSimulated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adsentry_executions_total",
			Help: "Total simulated recommendation executions",
		},
		[]string{"status"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SessionsCreated,
		SessionsExpired,
		AnomaliesDetected,
		ProbeRuns,
		ProbeLatency,
		ModelCalls,
		ModelCallLatency,
		ValidatorFailures,
		WarehouseQueryLatency,
		WarehouseDroppedRecords,
		RecommendationsGenerated,
		ExecutionsSimulated,
	)
}
