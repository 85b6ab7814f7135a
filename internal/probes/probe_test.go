package probes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

var anchor = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return anchor.AddDate(0, 0, offset)
}

func newCatalog(store metricstore.Store) *Catalog {
	return NewCatalog(store, 10*time.Second, observability.NewNoOpRegistry(), zap.NewNop())
}

func newMock() *metricstore.Mock {
	m := metricstore.NewMock()
	m.Now = day(0)
	return m
}

func req() Request {
	return Request{Tenant: "wh", AdID: "ad-1", Metric: models.MetricROAS, WindowDays: 30}
}

func TestCatalogDefinitions(t *testing.T) {
	c := newCatalog(newMock())
	defs := c.Definitions()
	require.Len(t, defs, 6)
	names := make(map[string]bool)
	for _, d := range defs {
		names[d.Name] = true
		assert.NotEmpty(t, d.Description)
		assert.Contains(t, d.InputSchema, "properties")
	}
	assert.True(t, names[NameCPMSpike])
	assert.True(t, names[NameSeasonality])
}

func TestCatalogUnknownProbe(t *testing.T) {
	c := newCatalog(newMock())
	_, err := c.Run(context.Background(), "disk_usage", req())
	assert.Error(t, err)
}

func TestCatalogStoreErrorBecomesInconclusive(t *testing.T) {
	m := newMock()
	m.Err = models.ErrUpstreamUnavailable
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCPMSpike, req())
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
	assert.False(t, ev.Fired)
}

func TestCPMSpikeFires(t *testing.T) {
	m := newMock()
	// 10 days of CPM 10, then 3 days of CPM 14 (+40%)
	for i := -12; i <= -3; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, CPM: 10})
	}
	for i := -2; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, CPM: 14})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCPMSpike, req())
	require.NoError(t, err)
	assert.True(t, ev.Fired)
	assert.InDelta(t, 40, ev.Measurements["change_pct"], 0.5)
	// rolling 3-day mean first cleared 1.25x the prior week one day before
	// the window end
	assert.Equal(t, 1.0, ev.Measurements["days_since_onset"])
	assert.Equal(t, models.SeveritySignificant, ev.Strength)
}

func TestCPMSpikeBelowThreshold(t *testing.T) {
	m := newMock()
	for i := -12; i <= -3; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, CPM: 10})
	}
	for i := -2; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, CPM: 12}) // +20%
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCPMSpike, req())
	require.NoError(t, err)
	assert.False(t, ev.Fired)
	assert.False(t, ev.Inconclusive)
}

func TestCPMSpikeInsufficientHistory(t *testing.T) {
	m := newMock()
	m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(0), Spend: 100, Impressions: 10000, CPM: 14})
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCPMSpike, req())
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestCreativeFatigueFires(t *testing.T) {
	m := newMock()
	// prior: CTR 2%, recent week: CTR 1.5% (-25%), stable delivery
	for i := -20; i <= -7; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200})
	}
	for i := -6; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 150})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCreativeFatigue, req())
	require.NoError(t, err)
	assert.True(t, ev.Fired)
	assert.InDelta(t, 25, ev.Measurements["decline_pct"], 0.5)
	assert.Negative(t, ev.Measurements["ctr_slope_per_day"], "fitted trend points down")
}

func TestCreativeFatigueDeliveryCollapseDoesNotFire(t *testing.T) {
	m := newMock()
	for i := -20; i <= -7; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200})
	}
	// delivery fell to 10% of prior volume alongside the CTR drop
	for i := -6; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 1000, Clicks: 15})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameCreativeFatigue, req())
	require.NoError(t, err)
	assert.False(t, ev.Fired)
	assert.False(t, ev.Inconclusive)
}

func TestLandingPageFires(t *testing.T) {
	m := newMock()
	// historical: CTR 2%, CVR 5%
	for i := -30; i <= -8; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 10})
	}
	// recent week: same CTR, CVR down to 2% (-60%)
	for i := -6; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 4})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameLandingPage, req())
	require.NoError(t, err)
	assert.True(t, ev.Fired)
	assert.Equal(t, models.SeverityExtreme, ev.Strength)
}

func TestLandingPageCTRMovedToo(t *testing.T) {
	m := newMock()
	for i := -30; i <= -8; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 10})
	}
	// CTR halved along with CVR: cannot isolate the landing page
	for i := -6; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 100, Conversions: 2})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameLandingPage, req())
	require.NoError(t, err)
	assert.False(t, ev.Fired)
}

func TestTrackingFires(t *testing.T) {
	m := newMock()
	for i := -30; i <= -3; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 10})
	}
	for i := -1; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 0})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameTracking, req())
	require.NoError(t, err)
	assert.True(t, ev.Fired)
	assert.Equal(t, models.SeverityExtreme, ev.Strength)
	assert.Equal(t, float64(400), ev.Measurements["clicks"])
	assert.Equal(t, float64(0), ev.Measurements["conversions"])
}

func TestTrackingNoConvertingHistory(t *testing.T) {
	m := newMock()
	for i := -30; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, Impressions: 10000, Clicks: 200, Conversions: 0})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameTracking, req())
	require.NoError(t, err)
	assert.True(t, ev.Inconclusive)
}

func TestBudgetExhaustionBoundary(t *testing.T) {
	fired := func(spend float64) bool {
		m := newMock()
		for i := -2; i <= 0; i++ {
			m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: spend, DailyBudget: 100})
		}
		c := newCatalog(m)
		ev, err := c.Run(context.Background(), NameBudgetExhaustion, req())
		require.NoError(t, err)
		return ev.Fired
	}

	assert.False(t, fired(95), "utilization exactly 0.95 must not fire")
	assert.True(t, fired(96))
}

func TestSeasonalityWeeklyRepeat(t *testing.T) {
	m := newMock()
	// account ROAS sits at 2.0 both now and a week ago
	for i := -12; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, ROAS: 2.0})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameSeasonality, req())
	require.NoError(t, err)
	assert.True(t, ev.Fired)
	assert.Contains(t, ev.Interpretation, "7 days ago")
}

func TestSeasonalityNoRepeat(t *testing.T) {
	m := newMock()
	for i := -12; i <= -3; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, ROAS: 4.0})
	}
	for i := -2; i <= 0; i++ {
		m.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(i), Spend: 100, ROAS: 1.0})
	}
	c := newCatalog(m)

	ev, err := c.Run(context.Background(), NameSeasonality, req())
	require.NoError(t, err)
	assert.False(t, ev.Fired)
	assert.False(t, ev.Inconclusive)
}
