package probes

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

const (
	// landingCTRStability bounds how much CTR may move for the signal to
	// isolate the post-click funnel.
	landingCTRStability = 0.10
	// landingCVRDecline is the relative conversion rate drop that fires.
	landingCVRDecline = 0.30
	// landingWindowHours is the recent funnel window.
	landingWindowHours = 7 * 24
)

// LandingPage detects a broken post-click experience: people still click at
// the usual rate but stop converting.
type LandingPage struct{}

func (p *LandingPage) Name() string { return NameLandingPage }

func (p *LandingPage) Description() string {
	return "Check whether the ad's click-through rate is stable (within 10%) while its conversion " +
		"rate dropped more than 30% over the last week. Use when a CPA spike or ROAS drop could come " +
		"from a broken landing page rather than the ad itself."
}

func (p *LandingPage) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	snap, err := store.FetchFunnelSnapshot(ctx, req.Tenant, req.AdID, landingWindowHours)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("funnel snapshot: %w", err)
	}

	ev := models.Evidence{
		Probe: p.Name(),
		Measurements: map[string]float64{
			"recent_ctr":     snap.CTR,
			"historical_ctr": snap.HistoricalCTR,
			"recent_cvr":     snap.CVR,
			"historical_cvr": snap.HistoricalCVR,
		},
		WindowEnd:   time.Now().UTC(),
		WindowStart: time.Now().UTC().Add(-landingWindowHours * time.Hour),
	}

	if snap.HistoricalCTR == 0 || snap.HistoricalCVR == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no historical funnel to compare against"
		return ev, nil
	}

	ctrShift := relChange(snap.CTR, snap.HistoricalCTR)
	cvrShift := relChange(snap.CVR, snap.HistoricalCVR)
	ev.Measurements["ctr_shift_pct"] = ctrShift * 100
	ev.Measurements["cvr_shift_pct"] = cvrShift * 100

	ctrStable := math.Abs(ctrShift) <= landingCTRStability
	cvrBroken := cvrShift < -landingCVRDecline

	switch {
	case ctrStable && cvrBroken:
		ev.Fired = true
		ev.Strength = strengthFor(cvrShift, landingCVRDecline)
		ev.Interpretation = fmt.Sprintf("CTR held (%.0f%% shift) while CVR fell %.0f%% (%.4f -> %.4f); the post-click funnel is broken",
			ctrShift*100, -cvrShift*100, snap.HistoricalCVR, snap.CVR)
	case cvrBroken:
		ev.Interpretation = fmt.Sprintf("CVR fell %.0f%% but CTR also shifted %.0f%%; cannot isolate the landing page", -cvrShift*100, ctrShift*100)
	default:
		ev.Interpretation = fmt.Sprintf("conversion rate shift %.0f%% is within normal range", cvrShift*100)
	}
	return ev, nil
}
