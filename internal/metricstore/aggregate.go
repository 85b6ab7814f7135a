package metricstore

import (
	"sort"
	"time"

	"github.com/patrickwarner/adsentry/internal/models"
)

// Summarize collapses per-(ad, day) rows into one summary per ad. Ratio
// metrics are spend-weighted: sum(metric*spend)/sum(spend). CPA and CPM are
// recomputed from window totals. Output is sorted by ad ID for determinism.
func Summarize(records []models.AdRecord) []models.AdSummary {
	byAd := make(map[string][]models.AdRecord)
	for _, r := range records {
		byAd[r.AdID] = append(byAd[r.AdID], r)
	}

	out := make([]models.AdSummary, 0, len(byAd))
	for adID, rows := range byAd {
		s := models.AdSummary{AdID: adID}
		var spendSum, roasWeighted, ctrWeighted, ctrSpend float64
		var impressions, clicks, conversions int64
		for _, r := range rows {
			s.AdName = r.AdName
			s.Provider = r.Provider
			s.Store = r.Store
			spendSum += r.Spend
			roasWeighted += r.ROAS * r.Spend
			if r.HasCTR() {
				ctrWeighted += r.CTR() * r.Spend
				ctrSpend += r.Spend
			}
			impressions += r.Impressions
			clicks += r.Clicks
			conversions += r.Conversions
			if r.Spend > 0 {
				s.DaysActive++
			}
			if s.FirstActive.IsZero() || r.Date.Before(s.FirstActive) {
				s.FirstActive = r.Date
			}
			if r.Date.After(s.LastActive) {
				s.LastActive = r.Date
			}
		}
		// ads with no spend across the window are excluded
		if spendSum == 0 {
			continue
		}
		s.Spend = spendSum
		s.ROAS = roasWeighted / spendSum
		if ctrSpend > 0 {
			s.CTR = ctrWeighted / ctrSpend
		}
		if conversions > 0 {
			s.CPA = spendSum / float64(conversions)
		}
		if impressions > 0 {
			s.CPM = spendSum / float64(impressions) * 1000
		}
		s.Conversions = conversions
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AdID < out[j].AdID })
	return out
}

// metricOf extracts one monitored metric from a daily row. The second result
// is false when the metric is undefined for the row.
func metricOf(r models.AdRecord, m models.Metric) (float64, bool) {
	switch m {
	case models.MetricSpend:
		return r.Spend, true
	case models.MetricROAS:
		return r.ROAS, true
	case models.MetricCTR:
		return r.CTR(), r.HasCTR()
	case models.MetricCPA:
		return r.CPA, r.Conversions > 0
	case models.MetricCPM:
		return r.CPM, r.Impressions > 0
	default:
		return 0, false
	}
}

// SeriesFor builds the daily series of one metric for one ad, oldest first.
func SeriesFor(records []models.AdRecord, adID string, metric models.Metric) []DailyPoint {
	var out []DailyPoint
	for _, r := range records {
		if r.AdID != adID {
			continue
		}
		v, ok := metricOf(r, metric)
		if !ok {
			continue
		}
		out = append(out, DailyPoint{Date: r.Date, Value: v, Spend: r.Spend, Impressions: r.Impressions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// BuildFunnelSnapshot splits one ad's rows at now-windowHours: rows after the
// cut form the recent funnel, rows before it the historical one.
func BuildFunnelSnapshot(records []models.AdRecord, adID string, windowHours int, now time.Time) FunnelSnapshot {
	cut := now.Add(-time.Duration(windowHours) * time.Hour).Truncate(24 * time.Hour)
	snap := FunnelSnapshot{AdID: adID, WindowHours: windowHours}

	var recImp, histImp, histClicks, histConv int64
	for _, r := range records {
		if r.AdID != adID {
			continue
		}
		if r.Date.Before(cut) {
			histImp += r.Impressions
			histClicks += r.Clicks
			histConv += r.Conversions
		} else {
			recImp += r.Impressions
			snap.Clicks += r.Clicks
			snap.Conversions += r.Conversions
		}
	}
	if recImp > 0 {
		snap.CTR = float64(snap.Clicks) / float64(recImp)
	}
	if snap.Clicks > 0 {
		snap.CVR = float64(snap.Conversions) / float64(snap.Clicks)
	}
	if histImp > 0 {
		snap.HistoricalCTR = float64(histClicks) / float64(histImp)
	}
	if histClicks > 0 {
		snap.HistoricalCVR = float64(histConv) / float64(histClicks)
	}
	return snap
}

// BuildBudgetPosture derives spend-vs-budget utilization for one ad from its
// trailing daily rows. Days without a recorded budget are excluded from the
// utilization mean.
func BuildBudgetPosture(records []models.AdRecord, adID string) BudgetPosture {
	posture := BudgetPosture{AdID: adID}
	var utilSum float64
	var utilDays int
	for _, r := range records {
		if r.AdID != adID {
			continue
		}
		posture.Days = append(posture.Days, DailyPoint{Date: r.Date, Value: r.Spend, Spend: r.Spend, Impressions: r.Impressions})
		if r.DailyBudget > 0 {
			posture.DailyBudget = r.DailyBudget
			utilSum += r.Spend / r.DailyBudget
			utilDays++
		}
	}
	sort.Slice(posture.Days, func(i, j int) bool { return posture.Days[i].Date.Before(posture.Days[j].Date) })
	if utilDays > 0 {
		posture.Utilization = utilSum / float64(utilDays)
	}
	return posture
}

// TimelineSummary compares the trailing week of one account metric against
// the week before it.
type TimelineSummary struct {
	Metric    models.Metric `json:"metric"`
	RecentAvg float64       `json:"recent_avg"`
	PriorAvg  float64       `json:"prior_avg"`
	ChangePct float64       `json:"change_pct"` // zero when the prior week is empty
}

// WeekOverWeek builds the week-over-week summary from account daily totals.
// Averages are spend-weighted like the points themselves.
func WeekOverWeek(points []DailyPoint, metric models.Metric, now time.Time) TimelineSummary {
	recentCut := now.UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	priorCut := now.UTC().AddDate(0, 0, -14).Truncate(24 * time.Hour)

	var recentW, recentSpend, priorW, priorSpend float64
	for _, p := range points {
		switch {
		case !p.Date.Before(recentCut):
			recentW += p.Value * p.Spend
			recentSpend += p.Spend
		case !p.Date.Before(priorCut):
			priorW += p.Value * p.Spend
			priorSpend += p.Spend
		}
	}

	sum := TimelineSummary{Metric: metric}
	if recentSpend > 0 {
		sum.RecentAvg = recentW / recentSpend
	}
	if priorSpend > 0 {
		sum.PriorAvg = priorW / priorSpend
	}
	if sum.PriorAvg != 0 {
		sum.ChangePct = (sum.RecentAvg - sum.PriorAvg) / sum.PriorAvg * 100
	}
	return sum
}

// AccountTotals builds the account-wide daily series of one metric. Spend is
// summed per day; ratio metrics are spend-weighted across ads.
func AccountTotals(records []models.AdRecord, metric models.Metric) []DailyPoint {
	type acc struct {
		weighted    float64
		spend       float64
		impressions int64
	}
	byDay := make(map[time.Time]*acc)
	for _, r := range records {
		v, ok := metricOf(r, metric)
		if !ok {
			continue
		}
		day := r.Date.UTC().Truncate(24 * time.Hour)
		a := byDay[day]
		if a == nil {
			a = &acc{}
			byDay[day] = a
		}
		if metric == models.MetricSpend {
			a.weighted += v
		} else {
			a.weighted += v * r.Spend
		}
		a.spend += r.Spend
		a.impressions += r.Impressions
	}

	out := make([]DailyPoint, 0, len(byDay))
	for day, a := range byDay {
		p := DailyPoint{Date: day, Spend: a.spend, Impressions: a.impressions}
		if metric == models.MetricSpend {
			p.Value = a.weighted
		} else if a.spend > 0 {
			p.Value = a.weighted / a.spend
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
