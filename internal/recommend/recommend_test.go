package recommend

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

func newGenerator(provider llm.Provider) *Generator {
	return New(provider, 2, observability.NewNoOpRegistry(), zap.NewNop())
}

func baselineROAS(mean float64) models.AccountBaseline {
	return models.AccountBaseline{
		Metrics: map[models.Metric]models.MetricBaseline{
			models.MetricROAS: {Metric: models.MetricROAS, Mean: mean, Sufficient: true},
		},
	}
}

func roasAnomaly(adID string) models.Anomaly {
	return models.Anomaly{
		AdID: adID, Metric: models.MetricROAS, ZScore: -2.5,
		Direction: models.DirectionLow, Severity: models.SeveritySignificant,
		Polarity: models.PolarityBad,
	}
}

func TestGenerateScalesHealthyWinner(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-b", AdName: "Brand Hero", Provider: models.ProviderFacebook, Spend: 212000, ROAS: 29.58, DaysActive: 30},
		},
		Baseline: baselineROAS(6.88),
	}
	recs, sum := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.ActionScale, rec.Action)
	assert.Equal(t, 100.0, rec.ProposedChangePct, "a 4.3x winner pins at the +100% cap")
	assert.InDelta(t, 424000, rec.ProposedNewSpend, 0.01)
	assert.Equal(t, 6270960.0, rec.ExpectedRevenueDelta)
	assert.Equal(t, models.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, "A", rec.Grade)
	assert.Equal(t, 1, sum.ByAction[models.ActionScale])
	assert.Equal(t, 6270960.0, sum.PotentialRevenue)
}

func TestGenerateWaitsOnThinHistory(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-c", AdName: "New Launch", Spend: 800, ROAS: 2.5, DaysActive: 4},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-c")},
	}
	recs, _ := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionWait, recs[0].Action)
	assert.Equal(t, 0.0, recs[0].ExpectedRevenueDelta)
	assert.Equal(t, recs[0].CurrentSpend, recs[0].ProposedNewSpend)
	assert.Equal(t, "C", recs[0].Grade)
}

func TestGeneratePausesZeroReturn(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-z", Spend: 88000, ROAS: 0, DaysActive: 45},
		},
		Baseline:  baselineROAS(6.88),
		Anomalies: []models.Anomaly{roasAnomaly("ad-z")},
	}
	recs, _ := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.ActionPause, rec.Action)
	assert.Equal(t, -100.0, rec.ProposedChangePct)
	assert.Equal(t, 0.0, rec.ProposedNewSpend, "pausing zeroes the budget")
	assert.Equal(t, 0.0, rec.ExpectedRevenueDelta)
	assert.Equal(t, "D", rec.Grade)
}

func TestGenerateReducesUnderperformer(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-r", Spend: 20000, ROAS: 1.2, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-r")},
	}
	recs, sum := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.ActionReduce, rec.Action)
	assert.Equal(t, -44.0, rec.ProposedChangePct, "ratio 0.6 lands between the -20 and -50 bounds")
	assert.InDelta(t, 11200, rec.ProposedNewSpend, 0.01)
	assert.Equal(t, -10560.0, rec.ExpectedRevenueDelta)
	assert.Equal(t, 10560.0, sum.PotentialSavings)
	assert.Equal(t, -10560.0, sum.NetImpact)
}

func TestGenerateVerdictOverridesAction(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-f", Spend: 5000, ROAS: 2.4, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-f")},
		Verdicts: []models.RootCauseVerdict{
			{AdID: "ad-f", Cause: models.CauseCreativeFatigue, Confidence: models.ConfidenceHigh},
		},
	}
	recs, _ := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionRefreshCreative, recs[0].Action)
	assert.Contains(t, recs[0].Rationale, "creative fatigue")
	assert.Equal(t, models.CauseCreativeFatigue, recs[0].RootCause)
	assert.Equal(t, models.ConfidenceHigh, recs[0].Confidence)
}

func TestGenerateSeasonalityHoldsBudget(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-s", Spend: 50000, ROAS: 8.0, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-s")},
		Verdicts: []models.RootCauseVerdict{
			{AdID: "ad-s", Cause: models.CauseSeasonality, Confidence: models.ConfidenceMedium},
		},
	}
	recs, _ := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionMonitor, recs[0].Action)
	assert.Equal(t, 0.0, recs[0].ExpectedRevenueDelta)
}

func TestGenerateScalingScanCapsAtFive(t *testing.T) {
	in := Input{Baseline: baselineROAS(2.0)}
	for i := 0; i < 8; i++ {
		in.Summaries = append(in.Summaries, models.AdSummary{
			AdID: fmt.Sprintf("ad-%d", i), Spend: float64(2000 + i*1000), ROAS: 5.0, DaysActive: 30,
		})
	}
	recs, _ := newGenerator(nil).Generate(context.Background(), in, false)

	require.Len(t, recs, 5)
	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].ExpectedRevenueDelta, recs[i].ExpectedRevenueDelta,
			"scan keeps the biggest expected revenue first")
	}
	assert.Equal(t, "ad-7", recs[0].AdID)
}

func TestGenerateClassificationStable(t *testing.T) {
	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-b", Spend: 212000, ROAS: 29.58, DaysActive: 30},
			{AdID: "ad-r", Spend: 20000, ROAS: 1.2, DaysActive: 30},
			{AdID: "ad-z", Spend: 88000, ROAS: 0, DaysActive: 45},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-r"), roasAnomaly("ad-z")},
	}
	g := newGenerator(nil)

	first, firstSum := g.Generate(context.Background(), in, false)
	second, secondSum := g.Generate(context.Background(), in, false)

	assert.Equal(t, first, second, "the rule path re-applied to the same facts must not move")
	assert.Equal(t, firstSum, secondSum)
}

func TestGenerateModelPhrasingAdopted(t *testing.T) {
	modelJSON := `{"ad_id":"ad-m","action":"SCALE","current_spend":2000,
"proposed_change_pct":50,"proposed_new_spend":3000,"expected_revenue_delta":4000,
"roas":4.0,"confidence":"HIGH",
"rationale":"ROAS of 4.0 doubles the 2.0 account mean; scale by 50%.",
"reasoning":{"data":"ad-m spent $2000 at 4.0 ROAS over 30 days",
"comparison":"4.0 is twice the 2.0 account mean",
"qualification":"spend and history clear the scaling bar",
"classification":"profitable scaling candidate",
"confidence_rationale":"sustained over the full window"}}`
	provider := llm.NewMock().ScriptText(modelJSON)

	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-m", Spend: 2000, ROAS: 4.0, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-m")},
	}
	recs, _ := newGenerator(provider).Generate(context.Background(), in, true)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.ActionScale, rec.Action)
	assert.Equal(t, 50.0, rec.ProposedChangePct)
	assert.Equal(t, 3000.0, rec.ProposedNewSpend)
	assert.Equal(t, 4000.0, rec.ExpectedRevenueDelta)
	assert.Contains(t, rec.Rationale, "doubles")
	assert.Empty(t, rec.Violations)
}

func TestGenerateModelValidationFailureFallsBack(t *testing.T) {
	// spend claim is $500 off the measured value on every attempt
	bad := `{"ad_id":"ad-m","action":"SCALE","current_spend":2500,
"proposed_change_pct":50,"proposed_new_spend":3750,"expected_revenue_delta":7000,
"roas":4.0,"confidence":"HIGH","rationale":"scale it",
"reasoning":{"data":"d","comparison":"c","qualification":"q",
"classification":"cl","confidence_rationale":"cr"}}`
	provider := llm.NewMock().ScriptText(bad).ScriptText(bad).ScriptText(bad)

	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-m", Spend: 2000, ROAS: 4.0, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-m")},
	}
	recs, _ := newGenerator(provider).Generate(context.Background(), in, true)

	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, models.ActionScale, rec.Action, "guideline table takes over")
	assert.Contains(t, rec.Violations, "ungrounded_spend")
	assert.Len(t, provider.Calls, 3, "initial attempt plus two retries")
}

func TestGenerateModelErrorFallsBack(t *testing.T) {
	provider := llm.NewMock()
	provider.Err = errors.New("api down")

	in := Input{
		Summaries: []models.AdSummary{
			{AdID: "ad-m", Spend: 2000, ROAS: 4.0, DaysActive: 30},
		},
		Baseline:  baselineROAS(2.0),
		Anomalies: []models.Anomaly{roasAnomaly("ad-m")},
	}
	recs, _ := newGenerator(provider).Generate(context.Background(), in, true)

	require.Len(t, recs, 1)
	assert.Equal(t, models.ActionScale, recs[0].Action)
	assert.Contains(t, recs[0].Violations, "model_error")
}

func TestScalePctBounds(t *testing.T) {
	assert.Equal(t, 30.0, scalePct(2.0))
	assert.Equal(t, 65.0, scalePct(3.0))
	assert.Equal(t, 100.0, scalePct(4.0))
	assert.Equal(t, 100.0, scalePct(12.0))
}

func TestReducePctBounds(t *testing.T) {
	assert.Equal(t, -20.0, reducePct(1.0))
	assert.Equal(t, -35.0, reducePct(0.75))
	assert.Equal(t, -50.0, reducePct(0.5))
}
