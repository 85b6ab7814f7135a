// Package anomaly scores ad summaries against the account baseline and
// surfaces deviations worth diagnosing.
package anomaly

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// Detector flags ads whose metrics deviate from the account baseline.
// Only bad-or-unknown polarity deviations are surfaced; good news is not an
// anomaly worth a diagnosis.
type Detector struct {
	ThresholdSigma float64
	MinSpend       float64
	MaxPerMetric   int
	Metrics        observability.MetricsRegistry
	Logger         *zap.Logger
}

// New creates a Detector.
func New(thresholdSigma, minSpend float64, maxPerMetric int, metrics observability.MetricsRegistry, logger *zap.Logger) *Detector {
	return &Detector{
		ThresholdSigma: thresholdSigma,
		MinSpend:       minSpend,
		MaxPerMetric:   maxPerMetric,
		Metrics:        metrics,
		Logger:         logger,
	}
}

// Detect scores every summary on every metric whose baseline is sufficient
// and not uniform. Each metric is capped at MaxPerMetric anomalies, strongest
// first. An ad deviating on several metrics yields one anomaly per metric.
func (d *Detector) Detect(baseline models.AccountBaseline, summaries []models.AdSummary) []models.Anomaly {
	var out []models.Anomaly
	for _, metric := range models.MonitoredMetrics {
		mb := baseline.ForMetric(metric)
		if !mb.Sufficient || mb.Uniform {
			continue
		}

		var candidates []models.Anomaly
		for _, s := range summaries {
			if s.Spend < d.MinSpend {
				continue
			}
			v, ok := s.MetricValue(metric)
			if !ok {
				continue
			}
			z := (v - mb.Mean) / mb.StdDev
			if math.Abs(z) < d.ThresholdSigma {
				continue
			}

			dir := models.DirectionHigh
			if z < 0 {
				dir = models.DirectionLow
			}
			polarity := models.PolarityFor(metric, dir)
			if polarity == models.PolarityGood {
				continue
			}

			var pct float64
			if mb.Mean != 0 {
				pct = (v - mb.Mean) / mb.Mean * 100
			}
			candidates = append(candidates, models.Anomaly{
				AdID:         s.AdID,
				AdName:       s.AdName,
				Provider:     s.Provider,
				Metric:       metric,
				Observed:     v,
				BaselineMean: mb.Mean,
				BaselineStd:  mb.StdDev,
				ZScore:       z,
				PctChange:    pct,
				Direction:    dir,
				Severity:     models.SeverityFor(math.Abs(z)),
				Polarity:     polarity,
				Spend:        s.Spend,
			})
		}

		sortAnomalies(candidates)
		if len(candidates) > d.MaxPerMetric {
			d.Logger.Info("anomaly cap applied",
				zap.String("metric", string(metric)),
				zap.Int("found", len(candidates)),
				zap.Int("cap", d.MaxPerMetric),
			)
			candidates = candidates[:d.MaxPerMetric]
		}
		for _, a := range candidates {
			d.Metrics.IncrementAnomalies(string(a.Metric), string(a.Severity))
		}
		out = append(out, candidates...)
	}

	sortAnomalies(out)
	return out
}

// sortAnomalies orders by |z| descending, then spend descending, then ad ID
// for a stable total order.
func sortAnomalies(anomalies []models.Anomaly) {
	sort.Slice(anomalies, func(i, j int) bool {
		zi, zj := math.Abs(anomalies[i].ZScore), math.Abs(anomalies[j].ZScore)
		if zi != zj {
			return zi > zj
		}
		if anomalies[i].Spend != anomalies[j].Spend {
			return anomalies[i].Spend > anomalies[j].Spend
		}
		if anomalies[i].AdID != anomalies[j].AdID {
			return anomalies[i].AdID < anomalies[j].AdID
		}
		return anomalies[i].Metric < anomalies[j].Metric
	})
}
