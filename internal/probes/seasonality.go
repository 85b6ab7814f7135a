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
	// seasonalityTolerance is the relative distance within which a prior
	// period counts as a repeat of the current level.
	seasonalityTolerance = 0.25
	// seasonalityRecentDays is the current comparison window.
	seasonalityRecentDays = 3
	// seasonalityYearOffset compares against the same weekday one year back.
	seasonalityYearOffset = 364
)

// Seasonality checks whether the account-level metric repeated the same move
// a week or a year ago. A recurring pattern is weather, not breakage.
type Seasonality struct{}

func (p *Seasonality) Name() string { return NameSeasonality }

func (p *Seasonality) Description() string {
	return "Check whether the account-level metric sits within 25% of its level 7 days ago or " +
		"364 days ago. Use when a deviation could be a recurring weekly or yearly pattern " +
		"rather than something broken."
}

func (p *Seasonality) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	// a year of history when available; falls back to whatever exists
	days := req.WindowDays
	if days < seasonalityYearOffset+seasonalityRecentDays {
		days = seasonalityYearOffset + seasonalityRecentDays
	}
	series, err := store.FetchAccountDailyTotals(ctx, req.Tenant, req.Metric, days)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("account totals: %w", err)
	}

	ev := models.Evidence{Probe: p.Name(), Measurements: map[string]float64{}}
	if len(series) > 0 {
		ev.WindowStart = series[0].Date
		ev.WindowEnd = series[len(series)-1].Date
	}
	if len(series) < seasonalityRecentDays {
		ev.Inconclusive = true
		ev.Interpretation = "not enough account history"
		return ev, nil
	}

	byDate := make(map[time.Time]float64, len(series))
	for _, pt := range series {
		byDate[pt.Date] = pt.Value
	}
	end := series[len(series)-1].Date

	recent, ok := periodAvg(byDate, end, 0)
	if !ok || recent == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no recent account level to compare"
		return ev, nil
	}
	ev.Measurements["recent"] = recent

	checked := false
	for _, offset := range []int{7, seasonalityYearOffset} {
		prior, ok := periodAvg(byDate, end, offset)
		if !ok || prior == 0 {
			continue
		}
		checked = true
		dist := math.Abs(relChange(recent, prior))
		key := fmt.Sprintf("dist_%dd_pct", offset)
		ev.Measurements[key] = dist * 100
		ev.Measurements[fmt.Sprintf("prior_%dd", offset)] = prior
		if dist <= seasonalityTolerance {
			ev.Fired = true
			ev.Strength = models.SeveritySignificant
			ev.Interpretation = fmt.Sprintf("account %s sits within %.0f%% of its level %d days ago; the pattern repeats",
				req.Metric, dist*100, offset)
			return ev, nil
		}
	}

	if !checked {
		ev.Inconclusive = true
		ev.Interpretation = "no prior period with account data to compare"
		return ev, nil
	}
	ev.Interpretation = fmt.Sprintf("account %s does not match its level 7 or %d days ago", req.Metric, seasonalityYearOffset)
	return ev, nil
}

// periodAvg averages the seasonalityRecentDays ending offset days before end.
// ok is false when none of the days have data.
func periodAvg(byDate map[time.Time]float64, end time.Time, offset int) (float64, bool) {
	var sum float64
	var n int
	for i := 0; i < seasonalityRecentDays; i++ {
		d := end.AddDate(0, 0, -offset-i)
		if v, ok := byDate[d]; ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
