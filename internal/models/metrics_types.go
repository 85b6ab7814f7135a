// Package models defines the domain types shared across the anomaly
// detection and root cause analysis pipeline: per-ad records and summaries,
// account baselines, anomalies, probe evidence, verdicts and recommendations.
package models

import "time"

// Metric identifies one of the monitored performance metrics.
type Metric string

const (
	MetricSpend Metric = "spend"
	MetricROAS  Metric = "roas"
	MetricCTR   Metric = "ctr"
	MetricCPA   Metric = "cpa"
	MetricCPM   Metric = "cpm"
)

// MonitoredMetrics is the fixed set of metrics the detector examines,
// in a stable order.
var MonitoredMetrics = []Metric{MetricSpend, MetricROAS, MetricCTR, MetricCPA, MetricCPM}

// Provider is the advertising platform that served an ad.
type Provider string

const (
	ProviderFacebook Provider = "facebook_ads"
	ProviderGoogle   Provider = "google_ads"
	ProviderTikTok   Provider = "tiktok_ads"
	ProviderAmazon   Provider = "amazon_ads"
	ProviderOther    Provider = "other"
)

// Direction is the side of the baseline an observation fell on.
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Severity bands the magnitude of a z-score.
type Severity string

const (
	SeverityMild        Severity = "mild"
	SeveritySignificant Severity = "significant"
	SeverityExtreme     Severity = "extreme"
)

// Severity band thresholds on |z|.
const (
	MildSigma        = 1.5
	SignificantSigma = 2.0
	ExtremeSigma     = 3.0
)

// SeverityFor bands an absolute z-score. Values below the mild threshold
// return an empty severity.
func SeverityFor(absZ float64) Severity {
	switch {
	case absZ >= ExtremeSigma:
		return SeverityExtreme
	case absZ >= SignificantSigma:
		return SeveritySignificant
	case absZ >= MildSigma:
		return SeverityMild
	default:
		return ""
	}
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	rank := func(v Severity) int {
		switch v {
		case SeverityExtreme:
			return 3
		case SeveritySignificant:
			return 2
		case SeverityMild:
			return 1
		default:
			return 0
		}
	}
	return rank(s) >= rank(other)
}

// Polarity is the business goodness of a deviation.
type Polarity string

const (
	PolarityGood    Polarity = "good"
	PolarityBad     Polarity = "bad"
	PolarityUnknown Polarity = "unknown"
)

// PolarityFor applies the fixed direction/polarity table: a ROAS drop and a
// CPA or CPM spike are bad, a high CTR is surfaced with unknown polarity
// (possible click fraud), and spend deviations in either direction are
// surfaced as unknown so the diagnosis can decide between delivery problems
// and waste.
func PolarityFor(metric Metric, dir Direction) Polarity {
	switch metric {
	case MetricROAS:
		if dir == DirectionLow {
			return PolarityBad
		}
		return PolarityGood
	case MetricCPA, MetricCPM:
		if dir == DirectionHigh {
			return PolarityBad
		}
		return PolarityGood
	case MetricCTR:
		if dir == DirectionLow {
			return PolarityBad
		}
		return PolarityUnknown
	case MetricSpend:
		return PolarityUnknown
	default:
		return PolarityUnknown
	}
}

// AdRecord is one immutable (ad, day) row from the warehouse. CTR is only
// meaningful when Impressions > 0; callers must check HasCTR.
type AdRecord struct {
	AdID           string    `json:"ad_id"`
	AdName         string    `json:"ad_name"`
	Provider       Provider  `json:"provider"`
	Store          string    `json:"store"`
	CampaignStatus string    `json:"campaign_status"`
	Date           time.Time `json:"date"` // UTC calendar day
	Spend          float64   `json:"spend"`
	ROAS           float64   `json:"roas"`
	Impressions    int64     `json:"impressions"`
	Clicks         int64     `json:"clicks"`
	Conversions    int64     `json:"conversions"`
	CPM            float64   `json:"cpm"`
	CPA            float64   `json:"cpa"`
	DailyBudget    float64   `json:"daily_budget"`
}

// HasCTR reports whether a click-through rate is defined for this row.
func (r AdRecord) HasCTR() bool { return r.Impressions > 0 }

// CTR returns clicks/impressions. Zero when undefined.
func (r AdRecord) CTR() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions)
}

// AdSummary aggregates one ad over the analysis window. ROAS and CTR are
// spend-weighted; unweighted averages are a defect.
type AdSummary struct {
	AdID        string    `json:"ad_id"`
	AdName      string    `json:"ad_name"`
	Provider    Provider  `json:"provider"`
	Store       string    `json:"store,omitempty"`
	Spend       float64   `json:"spend"`
	ROAS        float64   `json:"roas"`
	CTR         float64   `json:"ctr"`
	CPA         float64   `json:"cpa"`
	CPM         float64   `json:"cpm"`
	Conversions int64     `json:"conversions"`
	DaysActive  int       `json:"days_active"`
	FirstActive time.Time `json:"first_active"`
	LastActive  time.Time `json:"last_active"`
}

// MetricValue returns the summary's value for a monitored metric and whether
// the metric is defined for this ad.
func (s AdSummary) MetricValue(m Metric) (float64, bool) {
	switch m {
	case MetricSpend:
		return s.Spend, true
	case MetricROAS:
		return s.ROAS, true
	case MetricCTR:
		return s.CTR, s.CTR > 0 || s.Conversions > 0
	case MetricCPA:
		return s.CPA, s.CPA > 0
	case MetricCPM:
		return s.CPM, s.CPM > 0
	default:
		return 0, false
	}
}

// MetricBaseline holds account-level statistics for one metric over the
// analysis window. Sufficient tracks the sample size only: it is true iff at
// least the configured minimum number of ads contributed. Uniform flags a
// near-zero deviation separately; no anomalies are emitted for a metric that
// is insufficient or uniform.
type MetricBaseline struct {
	Metric     Metric  `json:"metric"`
	Mean       float64 `json:"mean"` // spend-weighted where applicable
	StdDev     float64 `json:"std_dev"`
	Median     float64 `json:"median"`
	Count      int     `json:"count"`
	Sufficient bool    `json:"sufficient"`
	Uniform    bool    `json:"uniform"`
}

// AccountBaseline groups per-metric baselines for one (tenant, window).
type AccountBaseline struct {
	Tenant     string                    `json:"tenant"`
	WindowDays int                       `json:"window_days"`
	Metrics    map[Metric]MetricBaseline `json:"metrics"`
}

// ForMetric returns the baseline for m, or a zero baseline with
// Sufficient=false when the metric was never computed.
func (b AccountBaseline) ForMetric(m Metric) MetricBaseline {
	if mb, ok := b.Metrics[m]; ok {
		return mb
	}
	return MetricBaseline{Metric: m}
}

// Sufficient reports whether any metric baseline has enough data.
func (b AccountBaseline) Sufficient() bool {
	for _, mb := range b.Metrics {
		if mb.Sufficient {
			return true
		}
	}
	return false
}
