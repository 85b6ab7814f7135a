package metricstore

import (
	"context"
	"time"

	"github.com/patrickwarner/adsentry/internal/models"
)

var _ Store = (*Mock)(nil)

// Mock is an in-memory Store backed by a fixed set of daily records, keyed by
// tenant. Used in tests and local runs without a warehouse.
type Mock struct {
	Records map[string][]models.AdRecord
	Dropped map[string]int
	// Err, when set, is returned by every fetch. Simulates warehouse outages.
	Err error
	// Now anchors funnel windows in tests. Zero means time.Now.
	Now time.Time
}

// NewMock creates an empty Mock store.
func NewMock() *Mock {
	return &Mock{
		Records: make(map[string][]models.AdRecord),
		Dropped: make(map[string]int),
	}
}

// Add appends daily records for a tenant.
func (m *Mock) Add(tenant string, records ...models.AdRecord) {
	m.Records[tenant] = append(m.Records[tenant], records...)
}

func (m *Mock) now() time.Time {
	if !m.Now.IsZero() {
		return m.Now
	}
	return time.Now().UTC()
}

// inWindow filters a tenant's records to the trailing windowDays.
func (m *Mock) inWindow(tenant string, windowDays int) ([]models.AdRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	records, ok := m.Records[tenant]
	if !ok {
		return nil, models.ErrUnknownTenant
	}
	cut := m.now().AddDate(0, 0, -windowDays).Truncate(24 * time.Hour)
	var out []models.AdRecord
	for _, r := range records {
		if !r.Date.Before(cut) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FetchAdSummaries implements Store.
func (m *Mock) FetchAdSummaries(ctx context.Context, tenant string, windowDays int) ([]models.AdSummary, int, error) {
	records, err := m.inWindow(tenant, windowDays)
	if err != nil {
		return nil, 0, err
	}
	return Summarize(records), m.Dropped[tenant], nil
}

// FetchDailySeries implements Store.
func (m *Mock) FetchDailySeries(ctx context.Context, tenant, adID string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	records, err := m.inWindow(tenant, windowDays)
	if err != nil {
		return nil, err
	}
	return SeriesFor(records, adID, metric), nil
}

// FetchAccountDailyTotals implements Store.
func (m *Mock) FetchAccountDailyTotals(ctx context.Context, tenant string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	records, err := m.inWindow(tenant, windowDays)
	if err != nil {
		return nil, err
	}
	return AccountTotals(records, metric), nil
}

// FetchFunnelSnapshot implements Store.
func (m *Mock) FetchFunnelSnapshot(ctx context.Context, tenant, adID string, windowHours int) (FunnelSnapshot, error) {
	recentDays := (windowHours + 23) / 24
	records, err := m.inWindow(tenant, recentDays+30)
	if err != nil {
		return FunnelSnapshot{}, err
	}
	return BuildFunnelSnapshot(records, adID, windowHours, m.now()), nil
}

// FetchBudgetPosture implements Store.
func (m *Mock) FetchBudgetPosture(ctx context.Context, tenant, adID string) (BudgetPosture, error) {
	records, err := m.inWindow(tenant, 3)
	if err != nil {
		return BudgetPosture{}, err
	}
	return BuildBudgetPosture(records, adID), nil
}
