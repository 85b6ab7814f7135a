package metricstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/adsentry/internal/models"
)

func day(offset int) time.Time {
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestSummarizeSpendWeightsRatios(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", AdName: "Summer Sale", Provider: models.ProviderFacebook, Date: day(0),
			Spend: 100, ROAS: 2.0, Impressions: 10000, Clicks: 200, Conversions: 10, CPM: 10, CPA: 10},
		{AdID: "ad-1", AdName: "Summer Sale", Provider: models.ProviderFacebook, Date: day(1),
			Spend: 300, ROAS: 4.0, Impressions: 30000, Clicks: 300, Conversions: 30, CPM: 10, CPA: 10},
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 1)
	s := summaries[0]

	// (2.0*100 + 4.0*300) / 400 = 3.5, not the unweighted 3.0
	assert.InDelta(t, 3.5, s.ROAS, 1e-9)
	// CTR weighted by spend: (0.02*100 + 0.01*300) / 400 = 0.0125
	assert.InDelta(t, 0.0125, s.CTR, 1e-9)
	// CPA from window totals: 400 / 40
	assert.InDelta(t, 10.0, s.CPA, 1e-9)
	// CPM from window totals: 400 / 40000 * 1000
	assert.InDelta(t, 10.0, s.CPM, 1e-9)
	assert.Equal(t, 2, s.DaysActive)
	assert.Equal(t, day(0), s.FirstActive)
	assert.Equal(t, day(1), s.LastActive)
}

func TestSummarizeSkipsCTRWithoutImpressions(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", Date: day(0), Spend: 100, Impressions: 0, Clicks: 0},
		{AdID: "ad-1", Date: day(1), Spend: 100, Impressions: 1000, Clicks: 20},
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 1)
	// only the day with impressions contributes
	assert.InDelta(t, 0.02, summaries[0].CTR, 1e-9)
}

func TestSummarizeExcludesZeroSpendAds(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-live", Date: day(0), Spend: 100, ROAS: 2.0},
		{AdID: "ad-idle", Date: day(0), Spend: 0, Impressions: 500},
		{AdID: "ad-idle", Date: day(1), Spend: 0, Impressions: 400},
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 1)
	assert.Equal(t, "ad-live", summaries[0].AdID)
	assert.GreaterOrEqual(t, summaries[0].DaysActive, 1)
}

func TestSummarizeSortedByAdID(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-c", Date: day(0), Spend: 1},
		{AdID: "ad-a", Date: day(0), Spend: 1},
		{AdID: "ad-b", Date: day(0), Spend: 1},
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 3)
	assert.Equal(t, "ad-a", summaries[0].AdID)
	assert.Equal(t, "ad-b", summaries[1].AdID)
	assert.Equal(t, "ad-c", summaries[2].AdID)
}

func TestSeriesForOrdersByDate(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", Date: day(2), Spend: 10, Impressions: 1000, CPM: 12},
		{AdID: "ad-1", Date: day(0), Spend: 10, Impressions: 1000, CPM: 10},
		{AdID: "ad-2", Date: day(1), Spend: 10, Impressions: 1000, CPM: 99},
		{AdID: "ad-1", Date: day(1), Spend: 10, Impressions: 1000, CPM: 11},
	}

	points := SeriesFor(records, "ad-1", models.MetricCPM)
	require.Len(t, points, 3)
	assert.Equal(t, []float64{10, 11, 12}, []float64{points[0].Value, points[1].Value, points[2].Value})
}

func TestAccountTotalsSpendWeighted(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", Date: day(0), Spend: 100, ROAS: 2.0},
		{AdID: "ad-2", Date: day(0), Spend: 300, ROAS: 4.0},
		{AdID: "ad-1", Date: day(1), Spend: 50, ROAS: 1.0},
	}

	points := AccountTotals(records, models.MetricROAS)
	require.Len(t, points, 2)
	assert.InDelta(t, 3.5, points[0].Value, 1e-9)
	assert.InDelta(t, 1.0, points[1].Value, 1e-9)

	spendPoints := AccountTotals(records, models.MetricSpend)
	require.Len(t, spendPoints, 2)
	assert.InDelta(t, 400, spendPoints[0].Value, 1e-9)
}

func TestWeekOverWeek(t *testing.T) {
	var points []DailyPoint
	// prior week flat at 10, recent week flat at 12
	for d := -13; d <= -7; d++ {
		points = append(points, DailyPoint{Date: day(d), Value: 10, Spend: 100})
	}
	for d := -6; d <= 0; d++ {
		points = append(points, DailyPoint{Date: day(d), Value: 12, Spend: 100})
	}

	sum := WeekOverWeek(points, models.MetricCPM, day(1))
	assert.Equal(t, models.MetricCPM, sum.Metric)
	assert.InDelta(t, 12.0, sum.RecentAvg, 1e-9)
	assert.InDelta(t, 10.0, sum.PriorAvg, 1e-9)
	assert.InDelta(t, 20.0, sum.ChangePct, 1e-9)
}

func TestWeekOverWeekSpendWeighted(t *testing.T) {
	points := []DailyPoint{
		{Date: day(-1), Value: 10, Spend: 300},
		{Date: day(0), Value: 2, Spend: 100},
	}

	sum := WeekOverWeek(points, models.MetricROAS, day(1))
	// (10*300 + 2*100) / 400 = 8
	assert.InDelta(t, 8.0, sum.RecentAvg, 1e-9)
	assert.Zero(t, sum.PriorAvg)
	assert.Zero(t, sum.ChangePct)
}

func TestBuildFunnelSnapshot(t *testing.T) {
	now := day(10).Add(12 * time.Hour)
	records := []models.AdRecord{
		// historical: healthy funnel
		{AdID: "ad-1", Date: day(0), Impressions: 10000, Clicks: 200, Conversions: 10},
		{AdID: "ad-1", Date: day(1), Impressions: 10000, Clicks: 200, Conversions: 10},
		// recent 48h: clicks but no conversions
		{AdID: "ad-1", Date: day(9), Impressions: 10000, Clicks: 200, Conversions: 0},
		{AdID: "ad-1", Date: day(10), Impressions: 10000, Clicks: 180, Conversions: 0},
	}

	snap := BuildFunnelSnapshot(records, "ad-1", 48, now)
	assert.Equal(t, int64(380), snap.Clicks)
	assert.Equal(t, int64(0), snap.Conversions)
	assert.InDelta(t, 0.05, snap.HistoricalCVR, 1e-9)
	assert.Zero(t, snap.CVR)
}

func TestBuildBudgetPosture(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", Date: day(0), Spend: 96, DailyBudget: 100},
		{AdID: "ad-1", Date: day(1), Spend: 99, DailyBudget: 100},
		{AdID: "ad-1", Date: day(2), Spend: 98, DailyBudget: 100},
	}

	posture := BuildBudgetPosture(records, "ad-1")
	assert.InDelta(t, 100.0, posture.DailyBudget, 1e-9)
	assert.InDelta(t, 0.97666, posture.Utilization, 1e-3)
	require.Len(t, posture.Days, 3)
}

func TestBuildBudgetPostureNoBudget(t *testing.T) {
	records := []models.AdRecord{
		{AdID: "ad-1", Date: day(0), Spend: 96},
	}

	posture := BuildBudgetPosture(records, "ad-1")
	assert.Zero(t, posture.Utilization)
	assert.Zero(t, posture.DailyBudget)
}
