// Package validate checks model-generated recommendations against session
// facts. The model may phrase the rationale, but every number it uses must
// trace back to a measured fact within tolerance.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/patrickwarner/adsentry/internal/models"
)

// Tolerances for numeric grounding.
const (
	// SpendTolerance is the absolute dollar tolerance for spend figures.
	SpendTolerance = 1.0
	// RatioTolerance is the relative tolerance for ratio metrics (ROAS, CTR).
	RatioTolerance = 0.01
	// ZScoreTolerance is the absolute tolerance for quoted z-scores.
	ZScoreTolerance = 0.05
)

// Chain is the structured reasoning the model must fill in. Each field walks
// one step from data to conclusion.
type Chain struct {
	Data                string `json:"data"`
	Comparison          string `json:"comparison"`
	Qualification       string `json:"qualification"`
	Classification      string `json:"classification"`
	ConfidenceRationale string `json:"confidence_rationale"`
}

// ModelOutput is the structured recommendation the model returns for one ad.
type ModelOutput struct {
	AdID                 string   `json:"ad_id"`
	Action               string   `json:"action"`
	CurrentSpend         float64  `json:"current_spend"`
	ProposedChangePct    float64  `json:"proposed_change_pct"`
	ProposedNewSpend     float64  `json:"proposed_new_spend"`
	ExpectedRevenueDelta float64  `json:"expected_revenue_delta"`
	ROAS                 float64  `json:"roas"`
	Confidence           string   `json:"confidence"`
	Rationale            string   `json:"rationale"`
	Reasoning            Chain    `json:"reasoning"`
	QuotedZScore         *float64 `json:"quoted_z_score,omitempty"`
}

// AdFacts are the measured session facts an output is validated against.
type AdFacts struct {
	AdID         string
	CurrentSpend float64
	ROAS         float64
	ZScore       float64
}

// Check validates one model output against the facts and returns violation
// codes. Empty means valid.
func Check(out ModelOutput, facts AdFacts) []string {
	var violations []string

	// schema completeness
	if out.Action == "" {
		violations = append(violations, "missing_field:action")
	}
	if out.Rationale == "" {
		violations = append(violations, "missing_field:rationale")
	}
	for name, v := range map[string]string{
		"reasoning.data":                 out.Reasoning.Data,
		"reasoning.comparison":           out.Reasoning.Comparison,
		"reasoning.qualification":        out.Reasoning.Qualification,
		"reasoning.classification":       out.Reasoning.Classification,
		"reasoning.confidence_rationale": out.Reasoning.ConfidenceRationale,
	} {
		if strings.TrimSpace(v) == "" {
			violations = append(violations, "missing_field:"+name)
		}
	}

	// enum membership
	if out.Action != "" && !validAction(out.Action) {
		violations = append(violations, "invalid_action:"+out.Action)
	}
	switch models.Confidence(out.Confidence) {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		violations = append(violations, "invalid_confidence:"+out.Confidence)
	}

	// numeric grounding
	if math.Abs(out.CurrentSpend-facts.CurrentSpend) > SpendTolerance {
		violations = append(violations, "ungrounded_spend")
	}
	if !ratioClose(out.ROAS, facts.ROAS) {
		violations = append(violations, "ungrounded_roas")
	}
	if out.QuotedZScore != nil && math.Abs(*out.QuotedZScore-facts.ZScore) > ZScoreTolerance {
		violations = append(violations, "ungrounded_zscore")
	}

	// arithmetic consistency for budget-moving actions
	action := models.Action(out.Action)
	if action == models.ActionScale || action == models.ActionReduce {
		wantNew := facts.CurrentSpend * (1 + out.ProposedChangePct/100)
		if math.Abs(out.ProposedNewSpend-wantNew) > SpendTolerance {
			violations = append(violations, "arithmetic_new_spend")
		}
		wantDelta := (wantNew - facts.CurrentSpend) * facts.ROAS
		if math.Abs(out.ExpectedRevenueDelta-wantDelta) > SpendTolerance {
			violations = append(violations, "arithmetic_revenue_delta")
		}
	}

	return violations
}

func validAction(action string) bool {
	for _, a := range models.ValidActions {
		if string(a) == action {
			return true
		}
	}
	return false
}

// ratioCloseEps absorbs float rounding so a value exactly at the relative
// tolerance is still accepted.
const ratioCloseEps = 1e-9

func ratioClose(got, want float64) bool {
	if want == 0 {
		return math.Abs(got) <= RatioTolerance
	}
	return math.Abs(got-want) <= RatioTolerance*math.Abs(want)+ratioCloseEps
}

// Feedback renders violations as corrective instructions for the retry
// prompt.
func Feedback(violations []string) string {
	var b strings.Builder
	b.WriteString("Your previous answer failed validation. Fix the following and answer again with the same JSON shape:\n")
	for _, v := range violations {
		code, detail, _ := strings.Cut(v, ":")
		switch code {
		case "missing_field":
			fmt.Fprintf(&b, "- field %q is required and was empty\n", detail)
		case "invalid_action":
			fmt.Fprintf(&b, "- action %q is not allowed; use one of SCALE, REDUCE, PAUSE, REFRESH_CREATIVE, MONITOR, WAIT\n", detail)
		case "invalid_confidence":
			fmt.Fprintf(&b, "- confidence %q is not allowed; use HIGH, MEDIUM or LOW\n", detail)
		case "ungrounded_spend":
			b.WriteString("- current_spend does not match the measured spend; copy it exactly from the facts\n")
		case "ungrounded_roas":
			b.WriteString("- roas does not match the measured value; copy it exactly from the facts\n")
		case "ungrounded_zscore":
			b.WriteString("- the quoted z-score does not match the measured value\n")
		case "arithmetic_new_spend":
			b.WriteString("- proposed_new_spend must equal current_spend * (1 + proposed_change_pct/100)\n")
		case "arithmetic_revenue_delta":
			b.WriteString("- expected_revenue_delta must equal (proposed_new_spend - current_spend) * roas\n")
		default:
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	return b.String()
}
