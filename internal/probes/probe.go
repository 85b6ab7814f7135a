// Package probes implements the diagnostic probes the orchestrator can run
// against an anomalous ad. Each probe reads warehouse data and emits
// structured evidence; probes never classify, they only measure.
package probes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
)

// Probe names form a closed set; the orchestrator rejects anything else.
const (
	NameCPMSpike         = "cpm_spike"
	NameCreativeFatigue  = "creative_fatigue"
	NameLandingPage      = "landing_page"
	NameTracking         = "tracking"
	NameBudgetExhaustion = "budget_exhaustion"
	NameSeasonality      = "seasonality"
)

// Request carries the anomaly context a probe runs against.
type Request struct {
	Tenant     string
	AdID       string
	Metric     models.Metric
	WindowDays int
}

// Probe is one diagnostic measurement.
type Probe interface {
	// Name is the stable identifier exposed to the model as a tool name.
	Name() string

	// Description tells the model what the probe measures and when to use it.
	Description() string

	// Run executes the measurement. An error means the probe could not read
	// its data; an inconclusive measurement is evidence, not an error.
	Run(ctx context.Context, store metricstore.Store, req Request) (models.Evidence, error)
}

// adInputSchema is the shared tool input schema: every probe takes the ad
// under diagnosis.
func adInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ad_id": map[string]interface{}{
				"type":        "string",
				"description": "Identifier of the ad under diagnosis",
			},
		},
		"required": []string{"ad_id"},
	}
}

// Catalog holds the probe set and dispatches runs with timeouts and metrics.
type Catalog struct {
	Store   metricstore.Store
	Timeout time.Duration
	Metrics observability.MetricsRegistry
	Logger  *zap.Logger

	probes map[string]Probe
	order  []string
}

// NewCatalog builds the full probe set.
func NewCatalog(store metricstore.Store, timeout time.Duration, metrics observability.MetricsRegistry, logger *zap.Logger) *Catalog {
	c := &Catalog{
		Store:   store,
		Timeout: timeout,
		Metrics: metrics,
		Logger:  logger,
		probes:  make(map[string]Probe),
	}
	for _, p := range []Probe{
		&CPMSpike{},
		&CreativeFatigue{},
		&LandingPage{},
		&Tracking{},
		&BudgetExhaustion{},
		&Seasonality{},
	} {
		c.probes[p.Name()] = p
		c.order = append(c.order, p.Name())
	}
	return c
}

// Names returns probe names in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Definitions exposes the probes as model tool definitions.
func (c *Catalog) Definitions() []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		p := c.probes[name]
		out = append(out, llm.ToolDefinition{
			Name:        p.Name(),
			Description: p.Description(),
			InputSchema: adInputSchema(),
		})
	}
	return out
}

// Has reports whether name is a known probe.
func (c *Catalog) Has(name string) bool {
	_, ok := c.probes[name]
	return ok
}

// Run executes one probe under the catalog timeout. A timeout or read error
// is recorded as inconclusive evidence so a single slow probe cannot sink the
// diagnosis.
func (c *Catalog) Run(ctx context.Context, name string, req Request) (models.Evidence, error) {
	p, ok := c.probes[name]
	if !ok {
		return models.Evidence{}, fmt.Errorf("unknown probe %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	ev, err := p.Run(ctx, c.Store, req)
	c.Metrics.RecordProbeLatency(name, time.Since(start))

	if err != nil {
		outcome := "error"
		if ctx.Err() != nil {
			outcome = "timeout"
		}
		c.Metrics.IncrementProbeRuns(name, outcome)
		c.Logger.Warn("probe failed",
			zap.String("probe", name),
			zap.String("ad_id", req.AdID),
			zap.Error(err),
		)
		return models.Evidence{
			Probe:          name,
			Inconclusive:   true,
			Interpretation: fmt.Sprintf("probe did not complete: %v", err),
		}, nil
	}

	switch {
	case ev.Fired:
		c.Metrics.IncrementProbeRuns(name, "fired")
	case ev.Inconclusive:
		c.Metrics.IncrementProbeRuns(name, "inconclusive")
	default:
		c.Metrics.IncrementProbeRuns(name, "no_fire")
	}
	return ev, nil
}
