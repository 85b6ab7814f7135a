package probes

import (
	"context"
	"fmt"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

const (
	// fatigueDeclineThreshold is the relative CTR decline that counts as fatigue.
	fatigueDeclineThreshold = 0.15
	// fatigueMinDeliveryRatio guards against reading a delivery collapse as
	// fatigue: recent impressions must stay above this share of prior volume.
	fatigueMinDeliveryRatio = 0.5
	// fatigueRecentDays is the trailing comparison window.
	fatigueRecentDays = 7
)

// CreativeFatigue looks for a sustained CTR decline while delivery volume
// holds. The audience has seen the creative too often.
type CreativeFatigue struct{}

func (p *CreativeFatigue) Name() string { return NameCreativeFatigue }

func (p *CreativeFatigue) Description() string {
	return "Check whether the ad's click-through rate declined more than 15% over the last week " +
		"while impression volume held steady. Use when a CTR drop or worsening ROAS could come " +
		"from audience fatigue with the creative."
}

func (p *CreativeFatigue) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	series, err := store.FetchDailySeries(ctx, req.Tenant, req.AdID, models.MetricCTR, req.WindowDays)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("ctr series: %w", err)
	}

	ev := models.Evidence{Probe: p.Name(), Measurements: map[string]float64{}}
	if len(series) > 0 {
		ev.WindowStart = series[0].Date
		ev.WindowEnd = series[len(series)-1].Date
	}

	prior, recent := splitRecent(series, fatigueRecentDays)
	if len(recent) < fatigueRecentDays || len(prior) < 3 {
		ev.Inconclusive = true
		ev.Interpretation = fmt.Sprintf("not enough CTR history (%d days)", len(series))
		return ev, nil
	}

	priorCTR := avgValues(prior)
	recentCTR := avgValues(recent)
	ev.Measurements["prior_ctr"] = priorCTR
	ev.Measurements["recent_ctr"] = recentCTR
	if priorCTR == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no prior CTR to compare against"
		return ev, nil
	}

	decline := -relChange(recentCTR, priorCTR)
	ev.Measurements["decline_pct"] = decline * 100
	ev.Measurements["ctr_slope_per_day"] = slopePerDay(series)

	priorImp := avgImpressions(prior)
	recentImp := avgImpressions(recent)
	var deliveryRatio float64
	if priorImp > 0 {
		deliveryRatio = recentImp / priorImp
	}
	ev.Measurements["delivery_ratio"] = deliveryRatio

	switch {
	case decline > fatigueDeclineThreshold && deliveryRatio >= fatigueMinDeliveryRatio:
		ev.Fired = true
		ev.Strength = strengthFor(decline, fatigueDeclineThreshold)
		ev.Interpretation = fmt.Sprintf("CTR declined %.0f%% (%.4f -> %.4f) with delivery holding at %.0f%% of prior volume",
			decline*100, priorCTR, recentCTR, deliveryRatio*100)
	case decline > fatigueDeclineThreshold:
		ev.Interpretation = fmt.Sprintf("CTR declined %.0f%% but delivery also fell to %.0f%% of prior volume; not fatigue",
			decline*100, deliveryRatio*100)
	default:
		ev.Interpretation = fmt.Sprintf("CTR change %.0f%% is within normal range", -decline*100)
	}
	return ev, nil
}
