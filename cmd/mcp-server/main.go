package main

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/pipeline"
)

// AnalyzeAdsInput selects the tenant and window to analyze.
type AnalyzeAdsInput struct {
	Tenant     string `json:"tenant"`
	WindowDays int    `json:"window_days,omitempty"`
}

// RecommendBudgetsInput references a session from a prior analyze_ads call.
type RecommendBudgetsInput struct {
	SessionID         string `json:"session_id"`
	UseModelReasoning bool   `json:"use_model_reasoning,omitempty"`
}

// ExecuteRecommendationsInput simulates applying a session's recommendations.
type ExecuteRecommendationsInput struct {
	SessionID     string   `json:"session_id"`
	ApprovedAdIDs []string `json:"approved_ad_ids,omitempty"`
	DryRun        *bool    `json:"dry_run,omitempty"`
}

// toolServer holds the pipeline behind the MCP tools.
type toolServer struct {
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

// AnalyzeAds implements the analyze_ads tool.
func (s *toolServer) AnalyzeAds(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeAdsInput) (*mcp.CallToolResult, *pipeline.AnalyzeResult, error) {
	if input.WindowDays == 0 {
		input.WindowDays = 30
	}
	s.logger.Info("analyze_ads",
		zap.String("tenant", input.Tenant),
		zap.Int("window_days", input.WindowDays),
	)
	res, err := s.pipeline.Analyze(ctx, input.Tenant, input.WindowDays)
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

// RecommendBudgets implements the recommend_budgets tool.
func (s *toolServer) RecommendBudgets(ctx context.Context, req *mcp.CallToolRequest, input RecommendBudgetsInput) (*mcp.CallToolResult, *pipeline.RecommendResult, error) {
	res, err := s.pipeline.Recommend(ctx, input.SessionID, input.UseModelReasoning)
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

// ExecuteRecommendations implements the execute_recommendations tool.
func (s *toolServer) ExecuteRecommendations(ctx context.Context, req *mcp.CallToolRequest, input ExecuteRecommendationsInput) (*mcp.CallToolResult, *pipeline.ExecuteResult, error) {
	dryRun := true
	if input.DryRun != nil {
		dryRun = *input.DryRun
	}
	res, err := s.pipeline.Execute(ctx, input.SessionID, input.ApprovedAdIDs, dryRun)
	if err != nil {
		return nil, nil, err
	}
	return nil, res, nil
}

// newMCPServer registers the three pipeline tools.
func newMCPServer(ts *toolServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "adsentry",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze_ads",
		Description: "Detect performance anomalies across a tenant's ads and diagnose their root causes",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"tenant": map[string]interface{}{
					"type":        "string",
					"description": "Tenant code from the registry",
				},
				"window_days": map[string]interface{}{
					"type":        "integer",
					"minimum":     1,
					"maximum":     365,
					"description": "Analysis window in days (optional, defaults to 30)",
				},
			},
			"required": []string{"tenant"},
		},
	}, ts.AnalyzeAds)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommend_budgets",
		Description: "Generate grounded budget recommendations from a prior analyze_ads session",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id returned by analyze_ads",
				},
				"use_model_reasoning": map[string]interface{}{
					"type":        "boolean",
					"description": "Let the model phrase recommendations, validated against the facts (optional)",
				},
			},
			"required": []string{"session_id"},
		},
	}, ts.RecommendBudgets)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute_recommendations",
		Description: "Dry-run the stored recommendations and report the state each would reach",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id returned by analyze_ads",
				},
				"approved_ad_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Ads approved for execution (optional, empty approves all)",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Simulate only (optional, defaults to true; live execution is refused)",
				},
			},
			"required": []string{"session_id"},
		},
	}, ts.ExecuteRecommendations)

	return server
}

func main() {
	// stdio carries the protocol, so all logging goes to stderr
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.MessageKey = "msg"

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("adsentry-mcp").With(zap.String("service", "adsentry-mcp"))

	cfg := config.Load()
	metricsRegistry := observability.NewPrometheusRegistry()

	warehouse, err := metricstore.InitClickHouse(cfg.ClickHouseDSN, cfg.Tenants, metricstore.PoolConfig{
		MaxOpenConns:    cfg.CHMaxOpenConns,
		MaxIdleConns:    cfg.CHMaxIdleConns,
		ConnMaxLifetime: cfg.CHConnMaxLifetime,
		ConnMaxIdleTime: cfg.CHConnMaxIdleTime,
	}, cfg.StoreRetryMax, metricsRegistry, logger)
	if err != nil {
		logger.Fatal("failed to connect clickhouse", zap.Error(err))
	}
	defer warehouse.Close()

	var store metricstore.Store = warehouse
	if cfg.CacheEnabled {
		cached, err := metricstore.InitCache(warehouse, cfg.RedisAddr, cfg.CacheTTL, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		store = cached
	}

	var provider llm.Provider
	switch cfg.ModelProvider {
	case "anthropic":
		// key comes from the environment and is never logged
		provider = llm.NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"), llm.Config{
			Model:     cfg.ModelName,
			MaxTokens: cfg.ModelMaxTokens,
		})
	default:
		provider = llm.NewMock()
	}

	ts := &toolServer{
		pipeline: pipeline.New(&cfg, store, provider, metricsRegistry, logger),
		logger:   logger,
	}
	server := newMCPServer(ts)

	logger.Info("adsentry MCP server running via stdio")
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
