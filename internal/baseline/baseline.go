// Package baseline computes account-level statistical baselines used to
// score individual ads.
package baseline

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
)

// minStdDev guards against division by near-zero deviation on uniform
// metrics.
const minStdDev = 1e-6

// Engine derives per-metric baselines from ad summaries.
type Engine struct {
	MinSampleSize int
	Logger        *zap.Logger
}

// New creates an Engine.
func New(minSampleSize int, logger *zap.Logger) *Engine {
	return &Engine{MinSampleSize: minSampleSize, Logger: logger}
}

// Compute builds the account baseline for one (tenant, window). Each metric
// uses only the ads where the metric is defined. Mean is spend-weighted for
// ratio metrics; stdev is the population deviation of the raw values.
func (e *Engine) Compute(tenant string, windowDays int, summaries []models.AdSummary) models.AccountBaseline {
	out := models.AccountBaseline{
		Tenant:     tenant,
		WindowDays: windowDays,
		Metrics:    make(map[models.Metric]models.MetricBaseline, len(models.MonitoredMetrics)),
	}

	for _, metric := range models.MonitoredMetrics {
		var values, weights []float64
		for _, s := range summaries {
			v, ok := s.MetricValue(metric)
			if !ok {
				continue
			}
			values = append(values, v)
			weights = append(weights, s.Spend)
		}

		mb := models.MetricBaseline{Metric: metric, Count: len(values)}
		if len(values) > 0 {
			if metric == models.MetricSpend {
				mb.Mean = mean(values)
			} else {
				mb.Mean = weightedMean(values, weights)
			}
			mb.StdDev = populationStdDev(values)
			mb.Median = median(values)
		}
		mb.Sufficient = mb.Count >= e.MinSampleSize
		mb.Uniform = mb.Count > 0 && mb.StdDev <= minStdDev
		out.Metrics[metric] = mb

		if !mb.Sufficient || mb.Uniform {
			e.Logger.Debug("baseline not scoreable",
				zap.String("tenant", tenant),
				zap.String("metric", string(metric)),
				zap.Int("count", mb.Count),
				zap.Float64("std_dev", mb.StdDev),
			)
		}
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// weightedMean returns sum(v*w)/sum(w), falling back to the unweighted mean
// when all weights are zero.
func weightedMean(values, weights []float64) float64 {
	var num, den float64
	for i, v := range values {
		num += v * weights[i]
		den += weights[i]
	}
	if den == 0 {
		return mean(values)
	}
	return num / den
}

// populationStdDev returns the population (not sample) standard deviation.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
