package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/models"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/pipeline"
)

func newToolServer() *toolServer {
	anchor := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	m := metricstore.NewMock()
	m.Now = anchor
	for i := 0; i < 11; i++ {
		for d := -13; d <= 0; d++ {
			m.Add("wh", models.AdRecord{
				AdID: fmt.Sprintf("ad-n%02d", i), Date: anchor.AddDate(0, 0, d),
				Spend: 100, ROAS: 3.0 + 0.05*float64(i),
			})
		}
	}
	for d := -13; d <= 0; d++ {
		m.Add("wh", models.AdRecord{AdID: "ad-bad", Date: anchor.AddDate(0, 0, d), Spend: 100, ROAS: 0.1})
	}

	cfg := config.Load()
	return &toolServer{
		pipeline: pipeline.New(&cfg, m, llm.NewMock(), observability.NewNoOpRegistry(), zap.NewNop()),
		logger:   zap.NewNop(),
	}
}

func TestToolFlow(t *testing.T) {
	ts := newToolServer()
	ctx := context.Background()

	_, analysis, err := ts.AnalyzeAds(ctx, nil, AnalyzeAdsInput{Tenant: "wh"})
	require.NoError(t, err)
	require.NotNil(t, analysis)
	assert.NotEmpty(t, analysis.SessionID)
	require.Len(t, analysis.Anomalies, 1)

	_, recs, err := ts.RecommendBudgets(ctx, nil, RecommendBudgetsInput{SessionID: analysis.SessionID})
	require.NoError(t, err)
	require.NotEmpty(t, recs.Recommendations)

	_, exec, err := ts.ExecuteRecommendations(ctx, nil, ExecuteRecommendationsInput{SessionID: analysis.SessionID})
	require.NoError(t, err)
	assert.True(t, exec.DryRun)
	require.NotEmpty(t, exec.Results)
	assert.Equal(t, models.ExecutionSuccess, exec.Results[0].Status)
}

func TestAnalyzeAdsUnknownTenant(t *testing.T) {
	ts := newToolServer()
	_, _, err := ts.AnalyzeAds(context.Background(), nil, AnalyzeAdsInput{Tenant: "nope"})
	assert.ErrorIs(t, err, models.ErrUnknownTenant)
}

func TestServerRegistersTools(t *testing.T) {
	server := newMCPServer(newToolServer())
	assert.NotNil(t, server)
}
