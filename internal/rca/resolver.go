package rca

import (
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/probes"
)

// probePreference orders probes by diagnostic value for each metric. The
// model is steered toward this order and the deterministic fallback runs it
// directly.
var probePreference = map[models.Metric][]string{
	models.MetricROAS:  {probes.NameCPMSpike, probes.NameCreativeFatigue},
	models.MetricCPA:   {probes.NameLandingPage, probes.NameCPMSpike},
	models.MetricCPM:   {probes.NameCPMSpike, probes.NameSeasonality},
	models.MetricCTR:   {probes.NameCreativeFatigue, probes.NameSeasonality},
	models.MetricSpend: {probes.NameBudgetExhaustion, probes.NameCPMSpike},
}

// probeCause maps each probe to the root cause it establishes when fired.
var probeCause = map[string]models.RootCause{
	probes.NameCPMSpike:         models.CauseCPMSpike,
	probes.NameCreativeFatigue:  models.CauseCreativeFatigue,
	probes.NameLandingPage:      models.CauseLandingPage,
	probes.NameTracking:         models.CauseTracking,
	probes.NameBudgetExhaustion: models.CauseBudgetExhaustion,
	probes.NameSeasonality:      models.CauseSeasonality,
}

// causeAction maps each root cause to its suggested operator action.
var causeAction = map[models.RootCause]string{
	models.CauseCPMSpike:         "adjust bids or targeting",
	models.CauseCreativeFatigue:  "refresh the creative",
	models.CauseLandingPage:      "fix the landing page before touching budgets",
	models.CauseTracking:         "repair conversion tracking before touching budgets",
	models.CauseBudgetExhaustion: "raise the daily budget or accept the delivery cap",
	models.CauseSeasonality:      "wait out the recurring pattern",
	models.CauseUnknown:          "monitor and gather more data",
}

// preferredProbes returns the probe order for a metric, falling back to the
// catalog order for metrics without an entry.
func preferredProbes(metric models.Metric, catalogOrder []string) []string {
	if pref, ok := probePreference[metric]; ok {
		return pref
	}
	return catalogOrder
}

// probeRank orders probes for tie-breaking: preferred probes first in
// preference order, then the rest in catalog order.
func probeRank(metric models.Metric, catalogOrder []string) map[string]int {
	rank := make(map[string]int, len(catalogOrder))
	next := 0
	for _, name := range probePreference[metric] {
		if _, seen := rank[name]; !seen {
			rank[name] = next
			next++
		}
	}
	for _, name := range catalogOrder {
		if _, seen := rank[name]; !seen {
			rank[name] = next
			next++
		}
	}
	return rank
}

// resolve turns accumulated evidence into a verdict. The strongest fired
// probe wins; equal strength breaks on the metric's preference order. The
// model never picks the tag.
func resolve(anomaly models.Anomaly, evidence []models.Evidence, catalogOrder []string) (models.RootCause, models.Confidence, models.Evidence, bool) {
	rank := probeRank(anomaly.Metric, catalogOrder)

	var best models.Evidence
	found := false
	for _, ev := range evidence {
		if !ev.Fired {
			continue
		}
		if !found {
			best, found = ev, true
			continue
		}
		if ev.Strength != best.Strength {
			if ev.Strength.AtLeast(best.Strength) {
				best = ev
			}
			continue
		}
		if rank[ev.Probe] < rank[best.Probe] {
			best = ev
		}
	}

	if !found {
		return models.CauseUnknown, models.ConfidenceLow, models.Evidence{}, false
	}

	cause, ok := probeCause[best.Probe]
	if !ok {
		return models.CauseUnknown, models.ConfidenceLow, models.Evidence{}, false
	}
	confidence := models.ConfidenceLow
	switch best.Strength {
	case models.SeverityExtreme:
		confidence = models.ConfidenceHigh
	case models.SeveritySignificant:
		confidence = models.ConfidenceMedium
	}
	return cause, confidence, best, true
}
