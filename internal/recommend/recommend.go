// Package recommend turns anomalies, verdicts and ad summaries into
// actionable budget recommendations with dollar impact.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// Guideline table thresholds.
const (
	scaleROASRatio = 2.0
	scaleMinSpend  = 1000.0
	reduceMinSpend = 10000.0
	pauseMinSpend  = 5000.0
	minDaysActive  = 7
	maxScalingScan = 5
	scaleMinPct    = 30.0
	scaleMaxPct    = 100.0
	reduceMinPct   = -20.0
	reduceMaxPct   = -50.0
)

// Input is everything the generator reads. All fields are frozen session
// state; the generator never refetches.
type Input struct {
	Tenant    string
	Summaries []models.AdSummary
	Baseline  models.AccountBaseline
	Anomalies []models.Anomaly
	Verdicts  []models.RootCauseVerdict
}

// Summary aggregates a recommendation batch.
type Summary struct {
	Total            int                   `json:"total"`
	ByAction         map[models.Action]int `json:"by_action"`
	ByGrade          map[string]int        `json:"by_grade"`
	PotentialSavings float64               `json:"potential_savings"`
	PotentialRevenue float64               `json:"potential_revenue"`
	NetImpact        float64               `json:"net_impact"`
}

// Generator produces recommendations, rule-based by default with an optional
// model-phrased path that is validated against the facts.
type Generator struct {
	Provider llm.Provider
	RetryMax int
	Metrics  observability.MetricsRegistry
	Logger   *zap.Logger
}

// New creates a Generator.
func New(provider llm.Provider, retryMax int, metrics observability.MetricsRegistry, logger *zap.Logger) *Generator {
	return &Generator{Provider: provider, RetryMax: retryMax, Metrics: metrics, Logger: logger}
}

// Generate builds one recommendation per anomalous ad plus up to five
// scaling opportunities among the healthy ads. With useModel set, the model
// phrases each anomalous ad's recommendation and the validator holds it to
// the facts; on repeated violation the guideline table takes over.
func (g *Generator) Generate(ctx context.Context, in Input, useModel bool) ([]models.Recommendation, Summary) {
	meanROAS := in.Baseline.ForMetric(models.MetricROAS).Mean
	byAd := make(map[string]models.AdSummary, len(in.Summaries))
	for _, s := range in.Summaries {
		byAd[s.AdID] = s
	}
	verdictByAd := make(map[string]models.RootCauseVerdict, len(in.Verdicts))
	for _, v := range in.Verdicts {
		if _, seen := verdictByAd[v.AdID]; !seen {
			verdictByAd[v.AdID] = v
		}
	}

	var recs []models.Recommendation

	// anomalous ads first, one recommendation per ad, anomaly order is
	// already strongest-first
	seen := make(map[string]bool)
	for _, a := range in.Anomalies {
		if seen[a.AdID] {
			continue
		}
		seen[a.AdID] = true
		s, ok := byAd[a.AdID]
		if !ok {
			continue
		}
		verdict, hasVerdict := verdictByAd[a.AdID]
		rec := g.classify(s, meanROAS, verdict, hasVerdict)
		if useModel {
			rec = g.modelPhrase(ctx, rec, s, a)
		}
		recs = append(recs, rec)
	}

	// scaling scan over the healthy ads
	recs = append(recs, g.scalingOpportunities(byAd, seen, meanROAS)...)

	for i := range recs {
		recs[i].Grade = gradeFor(recs[i].Action)
		g.Metrics.IncrementRecommendations(string(recs[i].Action))
	}
	return recs, summarize(recs)
}

// classify applies the guideline table with verdict overrides.
func (g *Generator) classify(s models.AdSummary, meanROAS float64, verdict models.RootCauseVerdict, hasVerdict bool) models.Recommendation {
	rec := models.Recommendation{
		AdID:         s.AdID,
		AdName:       s.AdName,
		Provider:     s.Provider,
		CurrentSpend: s.Spend,
		ROAS:         s.ROAS,
		Confidence:   models.ConfidenceMedium,
	}
	if hasVerdict {
		rec.RootCause = verdict.Cause
		rec.Confidence = verdict.Confidence
	}

	var ratio float64
	if meanROAS > 0 {
		ratio = s.ROAS / meanROAS
	}

	switch {
	case s.Spend < scaleMinSpend || s.DaysActive < minDaysActive:
		rec.Action = models.ActionWait
		rec.Rationale = fmt.Sprintf("only $%.2f spend over %d days; too early to judge", s.Spend, s.DaysActive)
	case s.ROAS == 0 && s.Spend >= pauseMinSpend:
		rec.Action = models.ActionPause
		rec.Rationale = fmt.Sprintf("$%.2f spent with zero return", s.Spend)
	case ratio >= scaleROASRatio:
		rec.Action = models.ActionScale
		rec.ProposedChangePct = scalePct(ratio)
		rec.Rationale = fmt.Sprintf("ROAS %.2f runs %.1fx the account mean; scaling by %.0f%%", s.ROAS, ratio, rec.ProposedChangePct)
	case ratio >= 1:
		rec.Action = models.ActionMonitor
		rec.Rationale = fmt.Sprintf("ROAS %.2f sits at %.1fx the account mean; hold and watch", s.ROAS, ratio)
	case ratio >= 0.5 && s.Spend >= reduceMinSpend:
		rec.Action = models.ActionReduce
		rec.ProposedChangePct = reducePct(ratio)
		rec.Rationale = fmt.Sprintf("ROAS %.2f runs below the account mean on $%.2f spend; cutting %.0f%%", s.ROAS, s.Spend, -rec.ProposedChangePct)
	case s.Spend >= reduceMinSpend:
		rec.Action = models.ActionReduce
		rec.ProposedChangePct = reduceMaxPct
		rec.Rationale = fmt.Sprintf("ROAS %.2f is under half the account mean on $%.2f spend; cutting 50%%", s.ROAS, s.Spend)
	default:
		rec.Action = models.ActionMonitor
		rec.Rationale = fmt.Sprintf("ROAS %.2f is below the account mean but spend is modest; hold and watch", s.ROAS)
	}

	// verdict overrides per the diagnosis
	if hasVerdict {
		switch verdict.Cause {
		case models.CauseCreativeFatigue:
			rec.Action = models.ActionRefreshCreative
			rec.ProposedChangePct = 0
			rec.Rationale = "diagnosis found creative fatigue; refresh the creative before moving budget"
		case models.CauseSeasonality:
			rec.Action = models.ActionMonitor
			rec.ProposedChangePct = 0
			rec.Rationale = "diagnosis found a recurring seasonal pattern; no budget change warranted"
		case models.CauseTracking, models.CauseLandingPage:
			rec.Rationale = fmt.Sprintf("%s; diagnosis: %s", rec.Rationale, verdict.SuggestedAction)
		}
	}

	applyArithmetic(&rec)
	return rec
}

// scalingOpportunities finds healthy winners worth more budget, capped at
// the top five by expected revenue.
func (g *Generator) scalingOpportunities(byAd map[string]models.AdSummary, exclude map[string]bool, meanROAS float64) []models.Recommendation {
	if meanROAS <= 0 {
		return nil
	}
	var out []models.Recommendation
	for _, s := range byAd {
		if exclude[s.AdID] {
			continue
		}
		ratio := s.ROAS / meanROAS
		if ratio < scaleROASRatio || s.Spend < scaleMinSpend || s.DaysActive < minDaysActive {
			continue
		}
		rec := models.Recommendation{
			AdID:              s.AdID,
			AdName:            s.AdName,
			Provider:          s.Provider,
			Action:            models.ActionScale,
			CurrentSpend:      s.Spend,
			ROAS:              s.ROAS,
			ProposedChangePct: scalePct(ratio),
			Confidence:        models.ConfidenceMedium,
			Rationale:         fmt.Sprintf("ROAS %.2f runs %.1fx the account mean with no anomaly; scaling candidate", s.ROAS, ratio),
		}
		if ratio >= 3 {
			rec.Confidence = models.ConfidenceHigh
		}
		applyArithmetic(&rec)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpectedRevenueDelta != out[j].ExpectedRevenueDelta {
			return out[i].ExpectedRevenueDelta > out[j].ExpectedRevenueDelta
		}
		return out[i].AdID < out[j].AdID
	})
	if len(out) > maxScalingScan {
		out = out[:maxScalingScan]
	}
	return out
}

// scalePct maps the ROAS ratio onto +30..+100: ratio 2 starts at +30, ratio
// 4 and beyond pins at +100.
func scalePct(ratio float64) float64 {
	pct := scaleMinPct + (ratio-scaleROASRatio)/2*(scaleMaxPct-scaleMinPct)
	return math.Round(math.Min(scaleMaxPct, math.Max(scaleMinPct, pct)))
}

// reducePct maps the ROAS ratio onto -20..-50: ratio 1 cuts 20%, ratio 0.5
// cuts 50%.
func reducePct(ratio float64) float64 {
	pct := reduceMinPct + (1-ratio)/0.5*(reduceMaxPct-reduceMinPct)
	return math.Round(math.Max(reduceMaxPct, math.Min(reduceMinPct, pct)))
}

// applyArithmetic derives the proposed spend and revenue delta from the
// change percentage. Revenue delta rounds to the nearest dollar. A pause is
// a -100% change with the delta pinned to zero: the budget goes away and no
// revenue is forecast for spend that was returning nothing.
func applyArithmetic(rec *models.Recommendation) {
	switch rec.Action {
	case models.ActionPause:
		rec.ProposedChangePct = -100
		rec.ProposedNewSpend = 0
		rec.ExpectedRevenueDelta = 0
	case models.ActionScale, models.ActionReduce:
		rec.ProposedNewSpend = rec.CurrentSpend * (1 + rec.ProposedChangePct/100)
		rec.ExpectedRevenueDelta = math.Round((rec.ProposedNewSpend - rec.CurrentSpend) * rec.ROAS)
	default:
		rec.ProposedNewSpend = rec.CurrentSpend
		rec.ExpectedRevenueDelta = 0
	}
}

// gradeFor derives the display-only letter grade. Grades never influence
// actions.
func gradeFor(action models.Action) string {
	switch action {
	case models.ActionScale:
		return "A"
	case models.ActionMonitor:
		return "B"
	case models.ActionRefreshCreative, models.ActionWait:
		return "C"
	default:
		return "D"
	}
}

func summarize(recs []models.Recommendation) Summary {
	sum := Summary{
		Total:    len(recs),
		ByAction: make(map[models.Action]int),
		ByGrade:  make(map[string]int),
	}
	for _, r := range recs {
		sum.ByAction[r.Action]++
		sum.ByGrade[r.Grade]++
		if r.ExpectedRevenueDelta > 0 {
			sum.PotentialRevenue += r.ExpectedRevenueDelta
		} else {
			sum.PotentialSavings += -r.ExpectedRevenueDelta
		}
	}
	sum.NetImpact = sum.PotentialRevenue - sum.PotentialSavings
	return sum
}
