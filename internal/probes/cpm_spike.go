package probes

import (
	"context"
	"fmt"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

// cpmSpikeThreshold is the relative CPM increase that counts as a spike.
const cpmSpikeThreshold = 0.25

// CPMSpike compares the ad's CPM over the trailing three days against the
// prior window average. Rising media cost with unchanged creative points at
// auction pressure rather than ad quality.
type CPMSpike struct{}

func (p *CPMSpike) Name() string { return NameCPMSpike }

func (p *CPMSpike) Description() string {
	return "Check whether the ad's cost per mille rose more than 25% in the last 3 days " +
		"compared to its prior average. Use when rising media cost could explain a ROAS drop " +
		"or a CPA/CPM spike."
}

func (p *CPMSpike) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	series, err := store.FetchDailySeries(ctx, req.Tenant, req.AdID, models.MetricCPM, req.WindowDays)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("cpm series: %w", err)
	}

	ev := models.Evidence{Probe: p.Name(), Measurements: map[string]float64{}}
	if len(series) > 0 {
		ev.WindowStart = series[0].Date
		ev.WindowEnd = series[len(series)-1].Date
	}

	prior, recent := splitRecent(series, 3)
	if len(recent) < 3 || len(prior) == 0 {
		ev.Inconclusive = true
		ev.Interpretation = fmt.Sprintf("not enough CPM history (%d days)", len(series))
		return ev, nil
	}

	priorAvg := avgValues(prior)
	recentAvg := avgValues(recent)
	ev.Measurements["prior_cpm"] = priorAvg
	ev.Measurements["recent_cpm"] = recentAvg
	if priorAvg == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no prior CPM to compare against"
		return ev, nil
	}

	change := relChange(recentAvg, priorAvg)
	ev.Measurements["change_pct"] = change * 100
	if onset := spikeOnsetDay(series); onset >= 0 {
		ev.Measurements["days_since_onset"] = float64(onset)
	}
	if change > cpmSpikeThreshold {
		ev.Fired = true
		ev.Strength = strengthFor(change, cpmSpikeThreshold)
		ev.Interpretation = fmt.Sprintf("CPM rose %.0f%% (%.2f -> %.2f) over the last 3 days", change*100, priorAvg, recentAvg)
	} else {
		ev.Interpretation = fmt.Sprintf("CPM change %.0f%% is within normal range", change*100)
	}
	return ev, nil
}

// spikeOnsetDay finds the first day whose trailing 3-day mean CPM exceeded
// 1.25x the mean of the 7 days before it. Returns the offset in days before
// the window end, or -1 when no day crossed.
func spikeOnsetDay(series []metricstore.DailyPoint) int {
	for i := 9; i < len(series); i++ {
		recent := avgValues(series[i-2 : i+1])
		prior := avgValues(series[i-9 : i-2])
		if prior > 0 && recent > prior*(1+cpmSpikeThreshold) {
			return len(series) - 1 - i
		}
	}
	return -1
}
