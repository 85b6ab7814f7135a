package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8790", cfg.Port)
	assert.Equal(t, 2.0, cfg.ThresholdSigma)
	assert.Equal(t, 10, cfg.MinSampleSize)
	assert.Equal(t, 100.0, cfg.MinSpend)
	assert.Equal(t, 50, cfg.MaxAnomaliesPerMetric)
	assert.Equal(t, 6, cfg.RCAMaxSteps)
	assert.Equal(t, 4, cfg.RCAConcurrency)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 60*time.Second, cfg.AnomalyDeadline)
	assert.Equal(t, 120*time.Second, cfg.SessionDeadline)
	assert.Equal(t, 2, cfg.ValidatorRetryMax)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "mock", cfg.ModelProvider)
	assert.False(t, cfg.CacheEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANOMALY_THRESHOLD_SIGMA", "2.5")
	t.Setenv("RCA_MAX_STEPS", "8")
	t.Setenv("SESSION_TTL", "600")
	t.Setenv("PROBE_TIMEOUT", "3s")
	t.Setenv("MODEL_PROVIDER", "anthropic")

	cfg := Load()

	assert.Equal(t, 2.5, cfg.ThresholdSigma)
	assert.Equal(t, 8, cfg.RCAMaxSteps)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 3*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, "anthropic", cfg.ModelProvider)
}

func TestParseTenants(t *testing.T) {
	m := parseTenants("wh=tenant_wh_ads, tl = tenant_tl_ads ,bad,=x,y=")
	require.Len(t, m, 2)
	assert.Equal(t, "tenant_wh_ads", m["wh"])
	assert.Equal(t, "tenant_tl_ads", m["tl"])
}

func TestEnvHelpersInvalidValues(t *testing.T) {
	t.Setenv("ANOMALY_MIN_SAMPLE_SIZE", "not-a-number")
	t.Setenv("CACHE_ENABLED", "maybe")
	t.Setenv("ANOMALY_MIN_SPEND", "abc")

	cfg := Load()

	assert.Equal(t, 10, cfg.MinSampleSize)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 100.0, cfg.MinSpend)
}
