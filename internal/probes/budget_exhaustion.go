package probes

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

// budgetUtilizationThreshold is the spend/budget ratio above which delivery
// is considered budget-capped.
const budgetUtilizationThreshold = 0.95

// BudgetExhaustion detects delivery capped by the daily budget: spend pins
// at the cap, so the platform throttles delivery to the cheapest inventory.
type BudgetExhaustion struct{}

func (p *BudgetExhaustion) Name() string { return NameBudgetExhaustion }

func (p *BudgetExhaustion) Description() string {
	return "Check whether the ad spent more than 95% of its daily budget over the last 3 days. " +
		"Use when a spend anomaly or delivery shift could come from the budget capping out."
}

func (p *BudgetExhaustion) Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error) {
	posture, err := store.FetchBudgetPosture(ctx, req.Tenant, req.AdID)
	if err != nil {
		return models.Evidence{}, fmt.Errorf("budget posture: %w", err)
	}

	ev := models.Evidence{
		Probe: p.Name(),
		Measurements: map[string]float64{
			"daily_budget": posture.DailyBudget,
			"utilization":  posture.Utilization,
		},
		WindowEnd:   time.Now().UTC(),
		WindowStart: time.Now().UTC().AddDate(0, 0, -3),
	}

	if posture.DailyBudget == 0 {
		ev.Inconclusive = true
		ev.Interpretation = "no daily budget recorded for this ad"
		return ev, nil
	}

	if posture.Utilization > budgetUtilizationThreshold {
		ev.Fired = true
		ev.Strength = models.SeveritySignificant
		if posture.Utilization >= 0.99 {
			ev.Strength = models.SeverityExtreme
		}
		ev.Interpretation = fmt.Sprintf("spend ran at %.0f%% of the $%.2f daily budget over the last 3 days",
			posture.Utilization*100, posture.DailyBudget)
	} else {
		ev.Interpretation = fmt.Sprintf("budget utilization %.0f%% leaves delivery headroom", posture.Utilization*100)
	}
	return ev, nil
}
