package models

import (
	"fmt"
	"time"
)

// Anomaly is one detected deviation of a single ad on a single metric.
// An ad exceeding thresholds on several metrics produces one Anomaly per
// metric; de-duplication by ad happens when the final output is grouped.
type Anomaly struct {
	AdID         string    `json:"ad_id"`
	AdName       string    `json:"ad_name"`
	Provider     Provider  `json:"provider"`
	Metric       Metric    `json:"metric"`
	Observed     float64   `json:"observed"`
	BaselineMean float64   `json:"baseline_mean"`
	BaselineStd  float64   `json:"baseline_std"`
	ZScore       float64   `json:"z_score"`
	PctChange    float64   `json:"pct_change"`
	Direction    Direction `json:"direction"`
	Severity     Severity  `json:"severity"`
	Polarity     Polarity  `json:"polarity"`
	Spend        float64   `json:"spend"` // window spend of the ad, used for tie-breaks
}

// Interpretation renders a one-line human summary of the anomaly.
func (a Anomaly) Interpretation() string {
	verb := "dropped"
	if a.Direction == DirectionHigh {
		verb = "spiked"
	}
	return fmt.Sprintf("%s %s %.0f%% (%.2f -> %.2f), z=%.2f (%s)",
		a.Metric, verb, abs(a.PctChange), a.BaselineMean, a.Observed, a.ZScore, a.Severity)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Evidence is the structured output of one diagnostic probe run. It is
// immutable once emitted. A probe that ran but could not decide sets
// Inconclusive; a probe that decided "no" sets neither Fired nor Inconclusive.
type Evidence struct {
	Probe          string             `json:"probe"`
	Fired          bool               `json:"fired"`
	Inconclusive   bool               `json:"inconclusive"`
	Strength       Severity           `json:"strength,omitempty"` // severity of the probe's own measurement
	Measurements   map[string]float64 `json:"measurements"`
	Interpretation string             `json:"interpretation"`
	WindowStart    time.Time          `json:"window_start"`
	WindowEnd      time.Time          `json:"window_end"`
}

// RootCause is one tag from the closed diagnosis ontology.
type RootCause string

const (
	CauseCPMSpike         RootCause = "CPM_SPIKE"
	CauseCreativeFatigue  RootCause = "CREATIVE_FATIGUE"
	CauseLandingPage      RootCause = "LANDING_PAGE"
	CauseTracking         RootCause = "TRACKING"
	CauseBudgetExhaustion RootCause = "BUDGET_EXHAUSTION"
	CauseSeasonality      RootCause = "SEASONALITY"
	CauseUnknown          RootCause = "UNKNOWN"
)

// Confidence expresses how strongly the evidence supports a verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// RootCauseVerdict is the orchestrator's conclusion for one anomaly. The tag
// is resolved deterministically from the accumulated evidence, never by the
// model.
type RootCauseVerdict struct {
	AdID            string     `json:"ad_id"`
	Metric          Metric     `json:"metric"`
	Cause           RootCause  `json:"cause"`
	Confidence      Confidence `json:"confidence"`
	Evidence        []Evidence `json:"evidence"`
	SuggestedAction string     `json:"suggested_action"`
	Steps           int        `json:"steps"`
	Violations      []string   `json:"violations,omitempty"`
}

// Action is the recommendation verb for one ad.
type Action string

const (
	ActionScale           Action = "SCALE"
	ActionReduce          Action = "REDUCE"
	ActionPause           Action = "PAUSE"
	ActionRefreshCreative Action = "REFRESH_CREATIVE"
	ActionMonitor         Action = "MONITOR"
	ActionWait            Action = "WAIT"
)

// ValidActions is the closed action set, used by the output validator.
var ValidActions = []Action{ActionScale, ActionReduce, ActionPause, ActionRefreshCreative, ActionMonitor, ActionWait}

// Recommendation is one actionable decision for one ad. ExpectedRevenueDelta
// for SCALE/REDUCE is (ProposedNewSpend - CurrentSpend) * ROAS, rounded to
// the nearest dollar.
type Recommendation struct {
	AdID                 string     `json:"ad_id"`
	AdName               string     `json:"ad_name"`
	Provider             Provider   `json:"provider"`
	Action               Action     `json:"action"`
	CurrentSpend         float64    `json:"current_spend"`
	ProposedChangePct    float64    `json:"proposed_change_pct"`
	ProposedNewSpend     float64    `json:"proposed_new_spend"`
	ExpectedRevenueDelta float64    `json:"expected_revenue_delta"`
	ROAS                 float64    `json:"roas"`
	Confidence           Confidence `json:"confidence"`
	Rationale            string     `json:"rationale"`
	RootCause            RootCause  `json:"root_cause,omitempty"`
	Grade                string     `json:"grade,omitempty"` // display-only A/B/C/D view
	Violations           []string   `json:"violations,omitempty"`
}

// ExecutionStatus is the terminal state of one simulated execution.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
	ExecutionSkipped ExecutionStatus = "SKIPPED"
)

// ExecutionResult is the outcome of processing one Recommendation.
type ExecutionResult struct {
	AdID    string          `json:"ad_id"`
	AdName  string          `json:"ad_name"`
	Action  Action          `json:"action"`
	Status  ExecutionStatus `json:"status"`
	Message string          `json:"message"`
	DryRun  bool            `json:"dry_run"`
}
