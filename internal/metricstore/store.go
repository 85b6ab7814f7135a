// Package metricstore reads per-ad advertising performance data from the
// metric warehouse. The warehouse is read-only; this package never writes.
package metricstore

import (
	"context"
	"time"

	"github.com/patrickwarner/adsentry/internal/models"
)

// DailyPoint is one UTC calendar day of a single metric series.
type DailyPoint struct {
	Date        time.Time `json:"date"`
	Value       float64   `json:"value"`
	Spend       float64   `json:"spend"`
	Impressions int64     `json:"impressions"`
}

// FunnelSnapshot compares the recent click-to-conversion funnel of one ad
// against its historical funnel. Recent covers the trailing WindowHours;
// historical covers the analysis window before that.
type FunnelSnapshot struct {
	AdID          string  `json:"ad_id"`
	WindowHours   int     `json:"window_hours"`
	Clicks        int64   `json:"clicks"`
	Conversions   int64   `json:"conversions"`
	CTR           float64 `json:"ctr"`
	CVR           float64 `json:"cvr"`
	HistoricalCTR float64 `json:"historical_ctr"`
	HistoricalCVR float64 `json:"historical_cvr"`
}

// BudgetPosture reports how close an ad's recent spend runs to its daily
// budget. Utilization is the mean of spend/budget over the trailing days.
type BudgetPosture struct {
	AdID        string       `json:"ad_id"`
	DailyBudget float64      `json:"daily_budget"`
	Days        []DailyPoint `json:"days"` // trailing days, spend in Value
	Utilization float64      `json:"utilization"`
}

// Store is the read interface over the metric warehouse. All methods resolve
// the tenant code through the registry and return models.ErrUnknownTenant for
// unregistered codes. Terminal warehouse failures surface as
// models.ErrUpstreamUnavailable after the retry budget is spent.
type Store interface {
	// FetchAdSummaries returns one spend-weighted summary per ad over the
	// trailing windowDays, along with the count of warehouse rows dropped
	// for unparsable numeric fields.
	FetchAdSummaries(ctx context.Context, tenant string, windowDays int) ([]models.AdSummary, int, error)

	// FetchDailySeries returns the per-day series of one metric for one ad.
	FetchDailySeries(ctx context.Context, tenant, adID string, metric models.Metric, windowDays int) ([]DailyPoint, error)

	// FetchAccountDailyTotals returns the account-wide per-day series of one
	// metric, spend-weighted across ads where the metric is a ratio.
	FetchAccountDailyTotals(ctx context.Context, tenant string, metric models.Metric, windowDays int) ([]DailyPoint, error)

	// FetchFunnelSnapshot returns the trailing windowHours funnel of one ad
	// next to its historical funnel.
	FetchFunnelSnapshot(ctx context.Context, tenant, adID string, windowHours int) (FunnelSnapshot, error)

	// FetchBudgetPosture returns spend-vs-budget posture for one ad over the
	// trailing three days.
	FetchBudgetPosture(ctx context.Context, tenant, adID string) (BudgetPosture, error)
}
