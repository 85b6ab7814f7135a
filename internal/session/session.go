// Package session holds analysis results between the analyze, recommend and
// execute calls. Sessions live in memory with an idle TTL refreshed on every
// access; expiry is lazy and an expired or unknown session id fails the
// request rather than refetching.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// Session is one analysis run frozen at creation time. Later calls read the
// stored results; they never refetch warehouse data. All mutation goes
// through Do so concurrent recommend and execute calls on the same session
// serialize.
type Session struct {
	mu sync.Mutex

	ID         string    `json:"id"`
	Tenant     string    `json:"tenant"`
	WindowDays int       `json:"window_days"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	Summaries        []models.AdSummary        `json:"summaries"`
	Baseline         models.AccountBaseline    `json:"baseline"`
	Anomalies        []models.Anomaly          `json:"anomalies"`
	Verdicts         []models.RootCauseVerdict `json:"verdicts"`
	Recommendations  []models.Recommendation   `json:"recommendations,omitempty"`
	DroppedRecords   int                       `json:"dropped_records"`
	InsufficientData bool                      `json:"insufficient_data"`
}

// Do runs fn with the session lock held.
func (s *Session) Do(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// KnownAds returns the set of ad ids frozen into the session.
func (s *Session) KnownAds() map[string]bool {
	known := make(map[string]bool, len(s.Summaries))
	for _, sum := range s.Summaries {
		known[sum.AdID] = true
	}
	return known
}

// Manager owns the in-memory session store.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	TTL     time.Duration
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger

	now func() time.Time // test hook
}

// NewManager creates a Manager with the given TTL.
func NewManager(ttl time.Duration, metrics observability.MetricsRegistry, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		TTL:      ttl,
		Metrics:  metrics,
		Logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new session and returns it.
func (m *Manager) Create(tenant string, windowDays int) *Session {
	now := m.now()
	s := &Session{
		ID:         uuid.NewString(),
		Tenant:     tenant,
		WindowDays: windowDays,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.TTL),
	}

	m.mu.Lock()
	m.sweepLocked(now)
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.Metrics.IncrementSessionsCreated(tenant)
	m.Logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("tenant", tenant),
		zap.Int("window_days", windowDays),
	)
	return s
}

// Get returns a live session. Unknown and expired ids are indistinguishable
// to the caller; both return ErrSessionExpired. The TTL counts idle time, so
// every successful Get extends the lease.
func (m *Manager) Get(id string) (*Session, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)

	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrSessionExpired
	}
	s.ExpiresAt = now.Add(m.TTL)
	return s, nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(m.now())
	return len(m.sessions)
}

// sweepLocked drops expired sessions. Caller holds m.mu.
func (m *Manager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if now.Before(s.ExpiresAt) {
			continue
		}
		delete(m.sessions, id)
		m.Metrics.IncrementSessionsExpired()
		m.Logger.Debug("session expired", zap.String("session_id", id))
	}
}
