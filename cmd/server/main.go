package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickwarner/adsentry/internal/api"
	"github.com/patrickwarner/adsentry/internal/config"
	"github.com/patrickwarner/adsentry/internal/llm"
	"github.com/patrickwarner/adsentry/internal/metricstore"
	"github.com/patrickwarner/adsentry/internal/observability"
	"github.com/patrickwarner/adsentry/internal/pipeline"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLoggerWithService(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	metricsRegistry := observability.NewPrometheusRegistry()

	warehouse, err := metricstore.InitClickHouse(cfg.ClickHouseDSN, cfg.Tenants, metricstore.PoolConfig{
		MaxOpenConns:    cfg.CHMaxOpenConns,
		MaxIdleConns:    cfg.CHMaxIdleConns,
		ConnMaxLifetime: cfg.CHConnMaxLifetime,
		ConnMaxIdleTime: cfg.CHConnMaxIdleTime,
	}, cfg.StoreRetryMax, metricsRegistry, logger)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer warehouse.Close()

	var store metricstore.Store = warehouse
	if cfg.CacheEnabled {
		cached, err := metricstore.InitCache(warehouse, cfg.RedisAddr, cfg.CacheTTL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		store = cached
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	logger.Info("model provider ready",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
	)

	p := pipeline.New(&cfg, store, provider, metricsRegistry, logger)
	srvDeps := api.NewServer(logger, p, metricsRegistry, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(srvDeps.Router(), "http"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("adsentry running", zap.String("addr", srv.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}

// buildProvider selects the model provider. The API key is read from the
// environment and never logged.
func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.ModelProvider {
	case "anthropic":
		return llm.NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"), llm.Config{
			Model:     cfg.ModelName,
			MaxTokens: cfg.ModelMaxTokens,
		}), nil
	case "mock":
		return llm.NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}
