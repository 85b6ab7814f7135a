package observability

import (
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments for assertions in tests.
type MockMetricsRegistry struct {
	mu     sync.Mutex
	Counts map[string]int
}

// NewMockMetricsRegistry creates a MockMetricsRegistry ready for use.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{Counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counts[key] += n
}

// Count returns the recorded count for a key, e.g. "probe:cpm_spike:fired".
func (m *MockMetricsRegistry) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[key]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("request:"+endpoint+":"+status, 1)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSessionsCreated(tenant string) {
	m.inc("session_created:"+tenant, 1)
}
func (m *MockMetricsRegistry) IncrementSessionsExpired() { m.inc("session_expired", 1) }
func (m *MockMetricsRegistry) IncrementAnomalies(metric, severity string) {
	m.inc("anomaly:"+metric+":"+severity, 1)
}
func (m *MockMetricsRegistry) IncrementProbeRuns(probe, outcome string) {
	m.inc("probe:"+probe+":"+outcome, 1)
}
func (m *MockMetricsRegistry) RecordProbeLatency(probe string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementModelCalls(provider, outcome string) {
	m.inc("model:"+provider+":"+outcome, 1)
}
func (m *MockMetricsRegistry) RecordModelCallLatency(provider string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementValidatorFailures(check string) {
	m.inc("validator:"+check, 1)
}
func (m *MockMetricsRegistry) RecordWarehouseQueryLatency(query string, duration time.Duration) {}
func (m *MockMetricsRegistry) AddWarehouseDroppedRecords(query string, n int) {
	m.inc("dropped:"+query, n)
}
func (m *MockMetricsRegistry) IncrementRecommendations(action string) {
	m.inc("recommendation:"+action, 1)
}
func (m *MockMetricsRegistry) IncrementExecutions(status string) {
	m.inc("execution:"+status, 1)
}
