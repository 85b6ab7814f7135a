package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/validate"
)

const recommendPrompt = `You are a budget advisor for advertising campaigns.
You are given the measured facts for one anomalous ad and a baseline
recommendation derived from fixed guidelines. Phrase the recommendation for a
human operator. You may adjust the action only when the root cause verdict
clearly warrants it, and you must cite the verdict when you do. Every number
you state must come from the facts; never invent or round beyond them.
Answer with a single JSON object and nothing else, using this shape:
{"ad_id": "...", "action": "SCALE|REDUCE|PAUSE|REFRESH_CREATIVE|MONITOR|WAIT",
"current_spend": 0, "proposed_change_pct": 0, "proposed_new_spend": 0,
"expected_revenue_delta": 0, "roas": 0, "confidence": "HIGH|MEDIUM|LOW",
"rationale": "...", "reasoning": {"data": "...", "comparison": "...",
"qualification": "...", "classification": "...", "confidence_rationale": "..."}}`

// modelPhrase asks the model to phrase the recommendation for one anomalous
// ad and validates the answer against the measured facts. Validation failures
// get one corrective retry per attempt up to RetryMax; after that the
// rule-based recommendation stands, annotated with the violations.
func (g *Generator) modelPhrase(ctx context.Context, fallback models.Recommendation, s models.AdSummary, a models.Anomaly) models.Recommendation {
	if g.Provider == nil {
		return fallback
	}
	facts := validate.AdFacts{AdID: s.AdID, CurrentSpend: s.Spend, ROAS: s.ROAS, ZScore: a.ZScore}

	messages := []llm.Message{{Role: llm.RoleUser, Content: buildFacts(fallback, s, a)}}
	var lastViolations []string
	for attempt := 0; attempt <= g.RetryMax; attempt++ {
		resp, err := g.Provider.Chat(ctx, recommendPrompt, messages, nil)
		if err != nil {
			g.Logger.Warn("recommendation model call failed",
				zap.String("ad_id", s.AdID),
				zap.Error(err),
			)
			fallback.Violations = append(fallback.Violations, "model_error")
			return fallback
		}

		out, err := parseModelOutput(resp.Content)
		if err != nil {
			lastViolations = []string{"unparsable_output"}
			g.Metrics.IncrementValidatorFailures("unparsable_output")
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
				llm.Message{Role: llm.RoleUser, Content: "Your previous answer was not valid JSON. Answer again with a single JSON object in the required shape."},
			)
			continue
		}

		violations := validate.Check(out, facts)
		if len(violations) == 0 {
			return mergeModelOutput(fallback, out)
		}
		lastViolations = violations
		for _, v := range violations {
			code, _, _ := strings.Cut(v, ":")
			g.Metrics.IncrementValidatorFailures(code)
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: validate.Feedback(violations)},
		)
	}

	g.Logger.Warn("model recommendation failed validation; using rule-based fallback",
		zap.String("ad_id", s.AdID),
		zap.Strings("violations", lastViolations),
	)
	fallback.Violations = append(fallback.Violations, lastViolations...)
	return fallback
}

// mergeModelOutput adopts the validated model answer, recomputing the derived
// figures so the stored recommendation is exact rather than tolerance-close.
func mergeModelOutput(rec models.Recommendation, out validate.ModelOutput) models.Recommendation {
	rec.Action = models.Action(out.Action)
	rec.ProposedChangePct = out.ProposedChangePct
	rec.Confidence = models.Confidence(out.Confidence)
	rec.Rationale = out.Rationale
	applyArithmetic(&rec)
	return rec
}

// buildFacts renders the measured facts and the guideline baseline for the
// prompt.
func buildFacts(rec models.Recommendation, s models.AdSummary, a models.Anomaly) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ad %q (%s, %s).\n", s.AdName, s.AdID, s.Provider)
	fmt.Fprintf(&b, "Facts: current_spend=%.2f, roas=%.4f, days_active=%d.\n", s.Spend, s.ROAS, s.DaysActive)
	fmt.Fprintf(&b, "Anomaly: %s z-score %.2f (%s, %s severity).\n", a.Metric, a.ZScore, a.Direction, a.Severity)
	if rec.RootCause != "" {
		fmt.Fprintf(&b, "Root cause verdict: %s (%s confidence).\n", rec.RootCause, rec.Confidence)
	}
	fmt.Fprintf(&b, "Guideline recommendation: action=%s, proposed_change_pct=%.0f, rationale=%q.\n",
		rec.Action, rec.ProposedChangePct, rec.Rationale)
	return b.String()
}

// parseModelOutput extracts the first JSON object from the model text.
func parseModelOutput(content string) (validate.ModelOutput, error) {
	var out validate.ModelOutput
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return out, fmt.Errorf("%w: no JSON object in model output", models.ErrModelProtocol)
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return out, fmt.Errorf("%w: %v", models.ErrModelProtocol, err)
	}
	return out, nil
}
