// Package pipeline wires the analysis stages together: fetch and aggregate,
// baseline, detect, diagnose, recommend and simulate. Each run freezes its
// results into a session so later calls operate on exactly the data that was
// analyzed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/anomaly"
	"github.com/patrickwarner/adsentry/internal/baseline"
	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/execsim"
	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/probes"
	"github.com/patrickwarner/adsentry/internal/rca"
	"github.com/patrickwarner/adsentry/internal/recommend"
	"github.com/patrickwarner/adsentry/internal/session"
)

// Analysis window bounds in days.
const (
	MinWindowDays = 1
	MaxWindowDays = 365
)

// Pipeline runs the full analysis flow for one deployment.
type Pipeline struct {
	Store           metricstore.Store
	Baseline        *baseline.Engine
	Detector        *anomaly.Detector
	Orchestrator    *rca.Orchestrator
	Recommender     *recommend.Generator
	Simulator       *execsim.Simulator
	Sessions        *session.Manager
	SessionDeadline time.Duration
	Logger          *zap.Logger
}

// New wires a Pipeline from configuration.
func New(cfg *config.Config, store metricstore.Store, provider llm.Provider, metrics observability.MetricsRegistry, logger *zap.Logger) *Pipeline {
	catalog := probes.NewCatalog(store, cfg.ProbeTimeout, metrics, logger)
	return &Pipeline{
		Store:           store,
		Baseline:        baseline.New(cfg.MinSampleSize, logger),
		Detector:        anomaly.New(cfg.ThresholdSigma, cfg.MinSpend, cfg.MaxAnomaliesPerMetric, metrics, logger),
		Orchestrator:    rca.New(catalog, provider, cfg.RCAMaxSteps, cfg.RCAConcurrency, cfg.ModelTimeout, cfg.AnomalyDeadline, metrics, logger),
		Recommender:     recommend.New(provider, cfg.ValidatorRetryMax, metrics, logger),
		Simulator:       execsim.New(metrics, logger),
		Sessions:        session.NewManager(cfg.SessionTTL, metrics, logger),
		SessionDeadline: cfg.SessionDeadline,
		Logger:          logger,
	}
}

// AnalyzeResult is the output of one analysis run.
type AnalyzeResult struct {
	SessionID        string                        `json:"session_id"`
	Tenant           string                        `json:"tenant"`
	WindowDays       int                           `json:"window_days"`
	AdsAnalyzed      int                           `json:"ads_analyzed"`
	DroppedRecords   int                           `json:"dropped_records"`
	InsufficientData bool                          `json:"insufficient_data"`
	Baseline         models.AccountBaseline        `json:"baseline"`
	Anomalies        []models.Anomaly              `json:"anomalies"`
	Verdicts         []models.RootCauseVerdict     `json:"verdicts"`
	Timeline         []metricstore.TimelineSummary `json:"timeline,omitempty"`
}

// Analyze runs detection and diagnosis for one tenant and freezes the result
// into a new session. With too few ads for a baseline the run still creates a
// session, flagged insufficient with no anomalies.
func (p *Pipeline) Analyze(ctx context.Context, tenant string, windowDays int) (*AnalyzeResult, error) {
	if windowDays < MinWindowDays || windowDays > MaxWindowDays {
		return nil, fmt.Errorf("%w: %d days (allowed %d-%d)", models.ErrWindowOutOfRange, windowDays, MinWindowDays, MaxWindowDays)
	}
	ctx, cancel := context.WithTimeout(ctx, p.SessionDeadline)
	defer cancel()

	summaries, dropped, err := p.Store.FetchAdSummaries(ctx, tenant, windowDays)
	if err != nil {
		return nil, err
	}

	base := p.Baseline.Compute(tenant, windowDays, summaries)

	var anomalies []models.Anomaly
	var verdicts []models.RootCauseVerdict
	insufficient := !base.Sufficient()
	if insufficient {
		p.Logger.Info("insufficient data for baseline",
			zap.String("tenant", tenant),
			zap.Int("ads", len(summaries)),
		)
	} else {
		anomalies = p.Detector.Detect(base, summaries)
		verdicts = p.Orchestrator.DiagnoseAll(ctx, tenant, windowDays, anomalies)
	}

	s := p.Sessions.Create(tenant, windowDays)
	s.Do(func(s *session.Session) {
		s.Summaries = summaries
		s.Baseline = base
		s.Anomalies = anomalies
		s.Verdicts = verdicts
		s.DroppedRecords = dropped
		s.InsufficientData = insufficient
	})

	timeline := p.accountTimeline(ctx, tenant)

	p.Logger.Info("analysis complete",
		zap.String("session_id", s.ID),
		zap.String("tenant", tenant),
		zap.Int("ads", len(summaries)),
		zap.Int("anomalies", len(anomalies)),
		zap.Int("dropped_records", dropped),
	)
	return &AnalyzeResult{
		SessionID:        s.ID,
		Tenant:           tenant,
		WindowDays:       windowDays,
		AdsAnalyzed:      len(summaries),
		DroppedRecords:   dropped,
		InsufficientData: insufficient,
		Baseline:         base,
		Anomalies:        anomalies,
		Verdicts:         verdicts,
		Timeline:         timeline,
	}, nil
}

// accountTimeline builds the week-over-week CPM and ROAS summaries for the
// analyze response. The reference day is the latest day with data, so a feed
// that lags a day still compares two full weeks. Failures only drop the
// timeline from the response.
func (p *Pipeline) accountTimeline(ctx context.Context, tenant string) []metricstore.TimelineSummary {
	var out []metricstore.TimelineSummary
	for _, metric := range []models.Metric{models.MetricCPM, models.MetricROAS} {
		points, err := p.Store.FetchAccountDailyTotals(ctx, tenant, metric, 14)
		if err != nil {
			p.Logger.Warn("account timeline unavailable",
				zap.String("tenant", tenant),
				zap.String("metric", string(metric)),
				zap.Error(err),
			)
			continue
		}
		if len(points) == 0 {
			continue
		}
		ref := points[len(points)-1].Date.AddDate(0, 0, 1)
		out = append(out, metricstore.WeekOverWeek(points, metric, ref))
	}
	return out
}

// RecommendResult is the output of one recommendation run.
type RecommendResult struct {
	SessionID       string                  `json:"session_id"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Summary         recommend.Summary       `json:"summary"`
}

// Recommend generates recommendations from a session's frozen analysis and
// stores them back on the session for later execution.
func (p *Pipeline) Recommend(ctx context.Context, sessionID string, useModel bool) (*RecommendResult, error) {
	s, err := p.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var out *RecommendResult
	s.Do(func(s *session.Session) {
		recs, sum := p.Recommender.Generate(ctx, recommend.Input{
			Tenant:    s.Tenant,
			Summaries: s.Summaries,
			Baseline:  s.Baseline,
			Anomalies: s.Anomalies,
			Verdicts:  s.Verdicts,
		}, useModel)
		s.Recommendations = recs
		out = &RecommendResult{SessionID: s.ID, Recommendations: recs, Summary: sum}
	})
	return out, nil
}

// ExecuteResult is the output of one simulated execution run.
type ExecuteResult struct {
	SessionID string                   `json:"session_id"`
	DryRun    bool                     `json:"dry_run"`
	Results   []models.ExecutionResult `json:"results"`
	Summary   execsim.Summary          `json:"summary"`
}

// Execute simulates applying a session's stored recommendations. When none
// were generated yet, the rule-based generator runs first so execute is
// usable straight after analyze.
func (p *Pipeline) Execute(ctx context.Context, sessionID string, approved []string, dryRun bool) (*ExecuteResult, error) {
	s, err := p.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	var out *ExecuteResult
	s.Do(func(s *session.Session) {
		if len(s.Recommendations) == 0 {
			recs, _ := p.Recommender.Generate(ctx, recommend.Input{
				Tenant:    s.Tenant,
				Summaries: s.Summaries,
				Baseline:  s.Baseline,
				Anomalies: s.Anomalies,
				Verdicts:  s.Verdicts,
			}, false)
			s.Recommendations = recs
		}
		results := p.Simulator.Run(s.Recommendations, approved, s.KnownAds(), dryRun)
		out = &ExecuteResult{SessionID: s.ID, DryRun: dryRun, Results: results, Summary: execsim.Summarize(results)}
	})
	return out, nil
}
