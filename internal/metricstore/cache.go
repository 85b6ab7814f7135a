package metricstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
)

// CachedStore is a Redis read-through layer over a Store. Summary and series
// reads are cached with a short TTL; funnel and budget reads always hit the
// warehouse because the probes that consume them need fresh data.
type CachedStore struct {
	Inner  Store
	Client *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

var _ Store = (*CachedStore)(nil)

// InitCache initializes a Redis client with tracing instrumentation and wraps
// the given store.
func InitCache(inner Store, addr string, ttl time.Duration, logger *zap.Logger) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("Connected to Redis", zap.String("addr", addr))
	return &CachedStore{Inner: inner, Client: client, TTL: ttl, Logger: logger}, nil
}

// Close shuts down the Redis client.
func (c *CachedStore) Close() {
	if c != nil && c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.Logger.Error("redis close", zap.Error(err))
		}
	}
}

// lookup fills dst from the cache and reports a hit. Cache failures degrade
// to a warehouse read.
func (c *CachedStore) lookup(ctx context.Context, key string, dst interface{}) bool {
	raw, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Logger.Warn("cache get", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.Logger.Warn("cache decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CachedStore) fill(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
		c.Logger.Warn("cache set", zap.String("key", key), zap.Error(err))
	}
}

type summariesEntry struct {
	Summaries []models.AdSummary `json:"summaries"`
	Dropped   int                `json:"dropped"`
}

// FetchAdSummaries implements Store.
func (c *CachedStore) FetchAdSummaries(ctx context.Context, tenant string, windowDays int) ([]models.AdSummary, int, error) {
	key := fmt.Sprintf("summaries:%s:%d", tenant, windowDays)
	var entry summariesEntry
	if c.lookup(ctx, key, &entry) {
		return entry.Summaries, entry.Dropped, nil
	}
	summaries, dropped, err := c.Inner.FetchAdSummaries(ctx, tenant, windowDays)
	if err != nil {
		return nil, 0, err
	}
	c.fill(ctx, key, summariesEntry{Summaries: summaries, Dropped: dropped})
	return summaries, dropped, nil
}

// FetchDailySeries implements Store.
func (c *CachedStore) FetchDailySeries(ctx context.Context, tenant, adID string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	key := fmt.Sprintf("series:%s:%s:%s:%d", tenant, adID, metric, windowDays)
	var points []DailyPoint
	if c.lookup(ctx, key, &points) {
		return points, nil
	}
	points, err := c.Inner.FetchDailySeries(ctx, tenant, adID, metric, windowDays)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, points)
	return points, nil
}

// FetchAccountDailyTotals implements Store.
func (c *CachedStore) FetchAccountDailyTotals(ctx context.Context, tenant string, metric models.Metric, windowDays int) ([]DailyPoint, error) {
	key := fmt.Sprintf("totals:%s:%s:%d", tenant, metric, windowDays)
	var points []DailyPoint
	if c.lookup(ctx, key, &points) {
		return points, nil
	}
	points, err := c.Inner.FetchAccountDailyTotals(ctx, tenant, metric, windowDays)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, key, points)
	return points, nil
}

// FetchFunnelSnapshot implements Store. Not cached.
func (c *CachedStore) FetchFunnelSnapshot(ctx context.Context, tenant, adID string, windowHours int) (FunnelSnapshot, error) {
	return c.Inner.FetchFunnelSnapshot(ctx, tenant, adID, windowHours)
}

// FetchBudgetPosture implements Store. Not cached.
func (c *CachedStore) FetchBudgetPosture(ctx context.Context, tenant, adID string) (BudgetPosture, error) {
	return c.Inner.FetchBudgetPosture(ctx, tenant, adID)
}
