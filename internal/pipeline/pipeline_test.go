package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

var anchor = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

func newPipeline(store metricstore.Store) *Pipeline {
	cfg := config.Load()
	return New(&cfg, store, llm.NewMock(), observability.NewNoOpRegistry(), zap.NewNop())
}

// seededStore returns a store with 11 steady ads and one ad whose ROAS has
// collapsed far below the account mean.
func seededStore() *metricstore.Mock {
	m := metricstore.NewMock()
	m.Now = anchor
	addAd := func(adID string, roas float64) {
		for d := -13; d <= 0; d++ {
			m.Add("wh", models.AdRecord{
				AdID: adID, AdName: adID, Provider: models.ProviderFacebook,
				Date: anchor.AddDate(0, 0, d), Spend: 100, ROAS: roas,
				Impressions: 10000, Clicks: 200, Conversions: 10,
			})
		}
	}
	for i := 0; i <= 10; i++ {
		addAd(fmt.Sprintf("ad-n%02d", i), 3.0+0.05*float64(i))
	}
	addAd("ad-bad", 0.1)
	return m
}

func TestAnalyzeDetectsAndCreatesSession(t *testing.T) {
	p := newPipeline(seededStore())

	res, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, 12, res.AdsAnalyzed)
	assert.False(t, res.InsufficientData)
	require.Len(t, res.Anomalies, 1, "only the collapsed ad deviates")
	assert.Equal(t, "ad-bad", res.Anomalies[0].AdID)
	assert.Equal(t, models.MetricROAS, res.Anomalies[0].Metric)
	assert.Equal(t, models.DirectionLow, res.Anomalies[0].Direction)
	require.Len(t, res.Verdicts, 1)
	assert.Equal(t, "ad-bad", res.Verdicts[0].AdID)

	roas := res.Baseline.ForMetric(models.MetricROAS)
	assert.True(t, roas.Sufficient, "response carries the baseline snapshot")
	assert.Equal(t, 12, roas.Count)

	s, err := p.Sessions.Get(res.SessionID)
	require.NoError(t, err)
	assert.Len(t, s.Summaries, 12)
	assert.Len(t, s.Anomalies, 1)
}

func TestAnalyzeIncludesAccountTimeline(t *testing.T) {
	p := newPipeline(seededStore())

	res, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	require.Len(t, res.Timeline, 2)
	assert.Equal(t, models.MetricCPM, res.Timeline[0].Metric)
	assert.Equal(t, models.MetricROAS, res.Timeline[1].Metric)
	// steady daily totals, so no week-over-week movement
	assert.InDelta(t, 0.0, res.Timeline[1].ChangePct, 1e-9)
	assert.Greater(t, res.Timeline[1].RecentAvg, 0.0)
}

func TestAnalyzeTwiceIsDeterministic(t *testing.T) {
	p := newPipeline(seededStore())

	first, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)
	second, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.Anomalies, second.Anomalies, "same data must score identically")
	assert.Equal(t, first.Baseline, second.Baseline)
}

func TestAnalyzeOneBelowMinSampleSize(t *testing.T) {
	m := metricstore.NewMock()
	m.Now = anchor
	addAd := func(adID string, roas float64) {
		for d := -13; d <= 0; d++ {
			m.Add("wh", models.AdRecord{
				AdID: adID, Date: anchor.AddDate(0, 0, d), Spend: 100, ROAS: roas,
			})
		}
	}
	// nine ads, one of them collapsed: one short of the default minimum
	for i := 0; i < 8; i++ {
		addAd(fmt.Sprintf("ad-%d", i), 3.0+0.05*float64(i))
	}
	addAd("ad-bad", 0.1)
	p := newPipeline(m)

	res, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)
	assert.Equal(t, 9, res.AdsAnalyzed)
	assert.True(t, res.InsufficientData)
	assert.Empty(t, res.Anomalies, "no metric clears the sample minimum")
}

func TestAnalyzeWindowOutOfRange(t *testing.T) {
	p := newPipeline(seededStore())

	_, err := p.Analyze(context.Background(), "wh", 0)
	assert.ErrorIs(t, err, models.ErrWindowOutOfRange)

	_, err = p.Analyze(context.Background(), "wh", 366)
	assert.ErrorIs(t, err, models.ErrWindowOutOfRange)
}

func TestAnalyzeUnknownTenant(t *testing.T) {
	p := newPipeline(seededStore())
	_, err := p.Analyze(context.Background(), "nope", 30)
	assert.ErrorIs(t, err, models.ErrUnknownTenant)
}

func TestAnalyzeInsufficientData(t *testing.T) {
	m := metricstore.NewMock()
	m.Now = anchor
	for i := 0; i < 6; i++ {
		for d := -13; d <= 0; d++ {
			m.Add("wh", models.AdRecord{
				AdID: fmt.Sprintf("ad-%d", i), Date: anchor.AddDate(0, 0, d),
				Spend: 100, ROAS: 2.0 + 0.1*float64(i),
			})
		}
	}
	p := newPipeline(m)

	res, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	assert.True(t, res.InsufficientData)
	assert.Empty(t, res.Anomalies)
	assert.Equal(t, 6, res.AdsAnalyzed)

	_, err = p.Sessions.Get(res.SessionID)
	assert.NoError(t, err, "an insufficient run still creates a session")
}

func TestRecommendStoresOnSession(t *testing.T) {
	p := newPipeline(seededStore())
	analysis, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	res, err := p.Recommend(context.Background(), analysis.SessionID, false)
	require.NoError(t, err)
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "ad-bad", res.Recommendations[0].AdID)
	assert.Equal(t, res.Summary.Total, len(res.Recommendations))

	s, err := p.Sessions.Get(analysis.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.Recommendations, s.Recommendations)
}

func TestRecommendUnknownSession(t *testing.T) {
	p := newPipeline(seededStore())
	_, err := p.Recommend(context.Background(), "nope", false)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestExecuteApprovalFlow(t *testing.T) {
	p := newPipeline(seededStore())
	analysis, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)
	_, err = p.Recommend(context.Background(), analysis.SessionID, false)
	require.NoError(t, err)

	res, err := p.Execute(context.Background(), analysis.SessionID, []string{"no-such-ad"}, true)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	for _, r := range res.Results {
		assert.Equal(t, models.ExecutionSkipped, r.Status, "nothing in the approval list matches")
	}
	assert.Equal(t, len(res.Results), res.Summary.Skipped)
	assert.Zero(t, res.Summary.Success)

	res, err = p.Execute(context.Background(), analysis.SessionID, nil, true)
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.Equal(t, models.ExecutionSuccess, r.Status)
		assert.True(t, r.DryRun)
	}
	assert.Equal(t, len(res.Results), res.Summary.Success)
	assert.Zero(t, res.Summary.Failed)
}

func TestExecuteGeneratesRecommendationsWhenMissing(t *testing.T) {
	p := newPipeline(seededStore())
	analysis, err := p.Analyze(context.Background(), "wh", 30)
	require.NoError(t, err)

	res, err := p.Execute(context.Background(), analysis.SessionID, nil, true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Results)
}
