package probes

import (
	"math"

	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
)

func avgValues(points []metricstore.DailyPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func avgImpressions(points []metricstore.DailyPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += float64(p.Impressions)
	}
	return sum / float64(len(points))
}

// relChange returns (current-prior)/prior. Callers must guard prior != 0.
func relChange(current, prior float64) float64 {
	return (current - prior) / prior
}

// strengthFor bands a fired measurement: crossing the threshold is
// significant, crossing twice the threshold is extreme.
func strengthFor(magnitude, threshold float64) models.Severity {
	if math.Abs(magnitude) >= 2*threshold {
		return models.SeverityExtreme
	}
	return models.SeveritySignificant
}

// slopePerDay fits a least-squares line through the daily values, x being
// the day index. Zero when fewer than two points.
func slopePerDay(points []metricstore.DailyPoint) float64 {
	n := float64(len(points))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, p := range points {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

// splitRecent separates the trailing n points from the rest.
func splitRecent(points []metricstore.DailyPoint, n int) (prior, recent []metricstore.DailyPoint) {
	if len(points) <= n {
		return nil, points
	}
	return points[:len(points)-n], points[len(points)-n:]
}
