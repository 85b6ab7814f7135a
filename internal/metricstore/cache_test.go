package metricstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adsentry/internal/models"
)

func newCachedStore(t *testing.T, inner Store) (*CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return &CachedStore{Inner: inner, Client: client, TTL: time.Minute, Logger: zap.NewNop()}, mr
}

func TestCachedSummariesReadThrough(t *testing.T) {
	mock := NewMock()
	mock.Now = day(10)
	mock.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(9), Spend: 100, ROAS: 2.0})
	mock.Dropped["wh"] = 3

	cached, _ := newCachedStore(t, mock)
	ctx := context.Background()

	summaries, dropped, err := cached.FetchAdSummaries(ctx, "wh", 30)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, dropped)

	// second read must come from the cache, not the inner store
	mock.Err = models.ErrUpstreamUnavailable
	summaries, dropped, err = cached.FetchAdSummaries(ctx, "wh", 30)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "ad-1", summaries[0].AdID)
	assert.Equal(t, 3, dropped)
}

func TestCachedSeriesExpires(t *testing.T) {
	mock := NewMock()
	mock.Now = day(10)
	mock.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(9), Spend: 100, Impressions: 1000, CPM: 12})

	cached, mr := newCachedStore(t, mock)
	ctx := context.Background()

	points, err := cached.FetchDailySeries(ctx, "wh", "ad-1", models.MetricCPM, 30)
	require.NoError(t, err)
	require.Len(t, points, 1)

	mr.FastForward(2 * time.Minute)

	// after TTL the inner store is hit again
	mock.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(10), Spend: 100, Impressions: 1000, CPM: 14})
	points, err = cached.FetchDailySeries(ctx, "wh", "ad-1", models.MetricCPM, 30)
	require.NoError(t, err)
	require.Len(t, points, 2)
}

func TestCacheDoesNotMaskErrors(t *testing.T) {
	mock := NewMock()
	mock.Err = models.ErrUpstreamUnavailable

	cached, _ := newCachedStore(t, mock)
	_, _, err := cached.FetchAdSummaries(context.Background(), "wh", 30)
	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
}

func TestFunnelBypassesCache(t *testing.T) {
	mock := NewMock()
	mock.Now = day(10)
	mock.Add("wh", models.AdRecord{AdID: "ad-1", Date: day(10), Impressions: 1000, Clicks: 50, Conversions: 0})

	cached, _ := newCachedStore(t, mock)

	snap, err := cached.FetchFunnelSnapshot(context.Background(), "wh", "ad-1", 48)
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.Clicks)
}
