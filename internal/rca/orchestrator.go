// Package rca drives root cause analysis for detected anomalies. A language
// model chooses which diagnostic probes to run; the verdict itself is
// resolved deterministically from the probe evidence.
package rca

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/probes"
)

const systemPrompt = `You are a diagnostic assistant for advertising performance anomalies.
You are given one anomaly with its measured facts. Decide which diagnostic
probe to run next; each probe measures one possible cause against warehouse
data. Run one probe at a time, read its evidence, and stop as soon as the
evidence establishes or rules out a cause. Never state a cause yourself and
never invent numbers: every claim must come from the anomaly facts or a probe
result. When you are done, reply with a short summary of what the evidence
showed.`

// Orchestrator runs the bounded probe loop for each anomaly.
type Orchestrator struct {
	Catalog         *probes.Catalog
	Provider        llm.Provider
	MaxSteps        int
	Concurrency     int
	ModelTimeout    time.Duration
	AnomalyDeadline time.Duration
	Metrics         observability.MetricsRegistry
	Logger          *zap.Logger
}

// New creates an Orchestrator.
func New(catalog *probes.Catalog, provider llm.Provider, maxSteps, concurrency int, modelTimeout, anomalyDeadline time.Duration, metrics observability.MetricsRegistry, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Catalog:         catalog,
		Provider:        provider,
		MaxSteps:        maxSteps,
		Concurrency:     concurrency,
		ModelTimeout:    modelTimeout,
		AnomalyDeadline: anomalyDeadline,
		Metrics:         metrics,
		Logger:          logger,
	}
}

// DiagnoseAll fans out across anomalies with a bounded worker pool. Results
// keep the input order. Individual failures never sink the batch; they show
// up as UNKNOWN verdicts with violations.
func (o *Orchestrator) DiagnoseAll(ctx context.Context, tenant string, windowDays int, anomalies []models.Anomaly) []models.RootCauseVerdict {
	verdicts := make([]models.RootCauseVerdict, len(anomalies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Concurrency)
	for i, a := range anomalies {
		g.Go(func() error {
			verdicts[i] = o.Diagnose(ctx, tenant, windowDays, a)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors
	return verdicts
}

// Diagnose runs the bounded tool loop for one anomaly and resolves the
// verdict from the gathered evidence.
func (o *Orchestrator) Diagnose(ctx context.Context, tenant string, windowDays int, anomaly models.Anomaly) models.RootCauseVerdict {
	ctx, cancel := context.WithTimeout(ctx, o.AnomalyDeadline)
	defer cancel()

	verdict := models.RootCauseVerdict{AdID: anomaly.AdID, Metric: anomaly.Metric}
	req := probes.Request{Tenant: tenant, AdID: anomaly.AdID, Metric: anomaly.Metric, WindowDays: windowDays}
	ran := make(map[string]bool)

	messages := []llm.Message{{Role: llm.RoleUser, Content: buildContext(anomaly, preferredProbes(anomaly.Metric, o.Catalog.Names()))}}
	tools := o.Catalog.Definitions()

loop:
	for verdict.Steps < o.MaxSteps {
		resp, err := o.chat(ctx, messages, tools)
		if err != nil {
			if ctx.Err() != nil {
				verdict.Violations = append(verdict.Violations, "timeout")
			} else {
				verdict.Violations = append(verdict.Violations, "model_error")
				o.Logger.Warn("model call failed",
					zap.String("ad_id", anomaly.AdID),
					zap.Error(err),
				)
			}
			break
		}
		if len(resp.ToolCalls) == 0 {
			break
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
		results := llm.Message{Role: llm.RoleUser}
		for _, call := range resp.ToolCalls {
			if verdict.Steps >= o.MaxSteps {
				break
			}
			assistant.ToolUse = append(assistant.ToolUse, call)
			result := llm.ToolResultBlock{ToolUseID: call.ID}
			switch {
			case !o.Catalog.Has(call.Name):
				result.Content = fmt.Sprintf("unknown probe %q", call.Name)
				result.IsError = true
				verdict.Violations = append(verdict.Violations, "unknown_probe:"+call.Name)
			case ran[call.Name]:
				result.Content = "probe already ran; see earlier result"
			default:
				ev, err := o.Catalog.Run(ctx, call.Name, req)
				if err != nil {
					result.Content = err.Error()
					result.IsError = true
				} else {
					ran[call.Name] = true
					verdict.Evidence = append(verdict.Evidence, ev)
					result.Content = encodeEvidence(ev)
				}
			}
			verdict.Steps++
			results.ToolResult = append(results.ToolResult, result)
			if ctx.Err() != nil {
				verdict.Violations = append(verdict.Violations, "timeout")
				break loop
			}
		}
		messages = append(messages, assistant, results)
	}

	// deterministic completion: when the loop ends without a fired probe,
	// make sure the metric's preferred probes have actually run
	if ctx.Err() == nil && !anyFired(verdict.Evidence) {
		for _, name := range preferredProbes(anomaly.Metric, o.Catalog.Names()) {
			if ran[name] || verdict.Steps >= o.MaxSteps {
				continue
			}
			ev, err := o.Catalog.Run(ctx, name, req)
			if err != nil {
				continue
			}
			ran[name] = true
			verdict.Steps++
			verdict.Evidence = append(verdict.Evidence, ev)
			if ctx.Err() != nil {
				verdict.Violations = append(verdict.Violations, "timeout")
				break
			}
		}
	}

	cause, confidence, best, found := resolve(anomaly, verdict.Evidence, o.Catalog.Names())
	verdict.Cause = cause
	verdict.Confidence = confidence
	verdict.SuggestedAction = causeAction[cause]
	if found {
		o.Logger.Info("root cause resolved",
			zap.String("ad_id", anomaly.AdID),
			zap.String("metric", string(anomaly.Metric)),
			zap.String("cause", string(cause)),
			zap.String("probe", best.Probe),
			zap.Int("steps", verdict.Steps),
		)
	}
	return verdict
}

// chat calls the provider under the per-call timeout and records metrics.
func (o *Orchestrator) chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, o.ModelTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.Provider.Chat(ctx, systemPrompt, messages, tools)
	o.Metrics.RecordModelCallLatency(o.Provider.Name(), time.Since(start))
	switch {
	case err == nil:
		o.Metrics.IncrementModelCalls(o.Provider.Name(), "ok")
	case ctx.Err() != nil:
		o.Metrics.IncrementModelCalls(o.Provider.Name(), "timeout")
	default:
		o.Metrics.IncrementModelCalls(o.Provider.Name(), "error")
	}
	return resp, err
}

// buildContext renders the grounded anomaly facts handed to the model. Facts
// only; the model adds nothing.
func buildContext(a models.Anomaly, preferred []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ad %q (%s, %s) is anomalous on %s.\n", a.AdName, a.AdID, a.Provider, a.Metric)
	fmt.Fprintf(&b, "Observed %.4f against a baseline mean of %.4f (stdev %.4f): z-score %.2f, a %.1f%% %s deviation (%s severity).\n",
		a.Observed, a.BaselineMean, a.BaselineStd, a.ZScore, a.PctChange, a.Direction, a.Severity)
	fmt.Fprintf(&b, "The ad spent $%.2f in the analysis window.\n", a.Spend)
	fmt.Fprintf(&b, "Probes most likely to explain a %s anomaly, in order: %s.\n", a.Metric, strings.Join(preferred, ", "))
	return b.String()
}

func encodeEvidence(ev models.Evidence) string {
	raw, err := json.Marshal(ev)
	if err != nil {
		return ev.Interpretation
	}
	return string(raw)
}

func anyFired(evidence []models.Evidence) bool {
	for _, ev := range evidence {
		if ev.Fired {
			return true
		}
	}
	return false
}
