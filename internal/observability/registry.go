package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// This replaces direct access to global Prometheus metrics with dependency injection
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Session lifecycle metrics
	IncrementSessionsCreated(tenant string)
	IncrementSessionsExpired()

	// Detection metrics
	IncrementAnomalies(metric, severity string)

	// Probe metrics
	IncrementProbeRuns(probe, outcome string)
	RecordProbeLatency(probe string, duration time.Duration)

	// Model call metrics
	IncrementModelCalls(provider, outcome string)
	RecordModelCallLatency(provider string, duration time.Duration)

	// Validation metrics
	IncrementValidatorFailures(check string)

	// Warehouse metrics
	RecordWarehouseQueryLatency(query string, duration time.Duration)
	AddWarehouseDroppedRecords(query string, n int)

	// Output metrics
	IncrementRecommendations(action string)
	IncrementExecutions(status string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementSessionsCreated(tenant string) {
	SessionsCreated.WithLabelValues(tenant).Inc()
}

func (r *PrometheusRegistry) IncrementSessionsExpired() {
	SessionsExpired.Inc()
}

func (r *PrometheusRegistry) IncrementAnomalies(metric, severity string) {
	AnomaliesDetected.WithLabelValues(metric, severity).Inc()
}

func (r *PrometheusRegistry) IncrementProbeRuns(probe, outcome string) {
	ProbeRuns.WithLabelValues(probe, outcome).Inc()
}

func (r *PrometheusRegistry) RecordProbeLatency(probe string, duration time.Duration) {
	ProbeLatency.WithLabelValues(probe).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementModelCalls(provider, outcome string) {
	ModelCalls.WithLabelValues(provider, outcome).Inc()
}

func (r *PrometheusRegistry) RecordModelCallLatency(provider string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementValidatorFailures(check string) {
	ValidatorFailures.WithLabelValues(check).Inc()
}

func (r *PrometheusRegistry) RecordWarehouseQueryLatency(query string, duration time.Duration) {
	WarehouseQueryLatency.WithLabelValues(query).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddWarehouseDroppedRecords(query string, n int) {
	if n > 0 {
		WarehouseDroppedRecords.WithLabelValues(query).Add(float64(n))
	}
}

func (r *PrometheusRegistry) IncrementRecommendations(action string) {
	RecommendationsGenerated.WithLabelValues(action).Inc()
}

func (r *PrometheusRegistry) IncrementExecutions(status string) {
	ExecutionsSimulated.WithLabelValues(status).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSessionsCreated(tenant string)                               {}
func (r *NoOpRegistry) IncrementSessionsExpired()                                            {}
func (r *NoOpRegistry) IncrementAnomalies(metric, severity string)                           {}
func (r *NoOpRegistry) IncrementProbeRuns(probe, outcome string)                             {}
func (r *NoOpRegistry) RecordProbeLatency(probe string, duration time.Duration)              {}
func (r *NoOpRegistry) IncrementModelCalls(provider, outcome string)                         {}
func (r *NoOpRegistry) RecordModelCallLatency(provider string, duration time.Duration)       {}
func (r *NoOpRegistry) IncrementValidatorFailures(check string)                              {}
func (r *NoOpRegistry) RecordWarehouseQueryLatency(query string, duration time.Duration)     {}
func (r *NoOpRegistry) AddWarehouseDroppedRecords(query string, n int)                       {}
func (r *NoOpRegistry) IncrementRecommendations(action string)                               {}
func (r *NoOpRegistry) IncrementExecutions(status string)                                    {}
