package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

// trackingWindowHours is how long a converting ad must record zero
// conversions before tracking breakage is suspected.
const trackingWindowHours = 48

// Tracking detects a dead conversion pixel: the ad keeps getting clicks but
// records zero conversions despite a converting history.
type Tracking struct{}

func (p *Tracking) Name() string { return NameTracking }

func (p *Tracking) Description() string {
	return "Check whether the ad received clicks but recorded zero conversions over the last 48 hours " +
		"despite converting historically. Use when a sudden ROAS or CPA collapse could be a broken " +
		"conversion pixel rather than real performance."
}

func (p *Tracking) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	snap, err := store.FetchFunnelSnapshot(ctx, req.Tenant, req.AdID, trackingWindowHours)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("funnel snapshot: %w", err)
	}

	expected := float64(snap.Clicks) * snap.HistoricalCVR
	ev := models.Evidence{
		Probe: p.Name(),
		Measurements: map[string]float64{
			"clicks":               float64(snap.Clicks),
			"conversions":          float64(snap.Conversions),
			"historical_cvr":       snap.HistoricalCVR,
			"expected_conversions": expected,
		},
		WindowEnd:   time.Now().UTC(),
		WindowStart: time.Now().UTC().Add(-trackingWindowHours * time.Hour),
	}

	if snap.Clicks == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no clicks in the window, nothing to test"
		return ev, nil
	}
	if snap.HistoricalCVR == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "ad has no converting history to compare against"
		return ev, nil
	}

	if snap.Conversions == 0 {
		ev.Fired = true
		// a converting ad flatlining to zero is always a strong signal; the
		// more conversions were expected, the stronger
		if expected >= 10 {
			ev.Strength = models.SeverityExtreme
		} else {
			ev.Strength = models.SeveritySignificant
		}
		ev.Interpretation = fmt.Sprintf("%d clicks and 0 conversions in 48h where history predicts ~%.0f conversions",
			snap.Clicks, expected)
	} else {
		ev.Interpretation = fmt.Sprintf("%d conversions recorded in 48h; tracking is alive", snap.Conversions)
	}
	return ev, nil
}
