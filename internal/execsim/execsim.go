// Package execsim simulates applying recommendations. Executions never
// mutate anything upstream; a dry run walks each recommendation through the
// same approval and lookup gates a live run would and reports the terminal
// state it would have reached.
package execsim

import (
	"sort"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// Simulator applies the execution state machine to a recommendation batch.
type Simulator struct {
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger
}

// New creates a Simulator.
func New(metrics observability.MetricsRegistry, logger *zap.Logger) *Simulator {
	return &Simulator{Metrics: metrics, Logger: logger}
}

// Run processes each recommendation to a terminal state. With a non-empty
// approved list only listed ads are attempted; the rest end SKIPPED. An
// attempted ad that is no longer part of the session ends FAILED. Attempted
// ads end SUCCESS under dry run. Results come back in ad id order and the
// whole operation is idempotent: re-running the same batch yields the same
// states.
func (s *Simulator) Run(recs []models.Recommendation, approved []string, knownAds map[string]bool, dryRun bool) []models.ExecutionResult {
	approvedSet := make(map[string]bool, len(approved))
	for _, id := range approved {
		approvedSet[id] = true
	}

	results := make([]models.ExecutionResult, 0, len(recs))
	for _, rec := range recs {
		res := models.ExecutionResult{
			AdID:   rec.AdID,
			AdName: rec.AdName,
			Action: rec.Action,
			DryRun: dryRun,
		}
		switch {
		case len(approved) > 0 && !approvedSet[rec.AdID]:
			res.Status = models.ExecutionSkipped
			res.Message = "not approved"
		case !knownAds[rec.AdID]:
			res.Status = models.ExecutionFailed
			res.Message = "ad is no longer part of the session"
		case !dryRun:
			res.Status = models.ExecutionFailed
			res.Message = "live execution is not enabled"
		default:
			res.Status = models.ExecutionSuccess
			res.Message = simulatedMessage(rec)
		}

		s.Metrics.IncrementExecutions(string(res.Status))
		s.Logger.Info("execution simulated",
			zap.String("ad_id", res.AdID),
			zap.String("action", string(res.Action)),
			zap.String("status", string(res.Status)),
			zap.Bool("dry_run", dryRun),
		)
		results = append(results, res)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].AdID < results[j].AdID })
	return results
}

// Summary counts a result batch by terminal state.
type Summary struct {
	Success int `json:"success"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Summarize tallies results for the response summary.
func Summarize(results []models.ExecutionResult) Summary {
	var sum Summary
	for _, r := range results {
		switch r.Status {
		case models.ExecutionSuccess:
			sum.Success++
		case models.ExecutionSkipped:
			sum.Skipped++
		case models.ExecutionFailed:
			sum.Failed++
		}
	}
	return sum
}

func simulatedMessage(rec models.Recommendation) string {
	switch rec.Action {
	case models.ActionScale, models.ActionReduce:
		return "would move daily budget from current to proposed spend"
	case models.ActionPause:
		return "would pause the ad"
	case models.ActionRefreshCreative:
		return "would flag the creative for refresh"
	default:
		return "no change to apply"
	}
}
