package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adops-backend/internal/common/logging"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
)

func setupCache(t *testing.T) (*MetricsCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewMetricsCache(client, logging.NewDefaultLogger()), mr
}

func dates(t *testing.T) (time.Time, time.Time) {
	t.Helper()
	start, err := time.Parse(DateLayout, "2024-01-01")
	require.NoError(t, err)
	end, err := time.Parse(DateLayout, "2024-01-31")
	require.NoError(t, err)
	return start, end
}

func TestMetricsCache_AggregationRoundTrip(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()
	start, end := dates(t)

	_, found := cache.GetAggregation(ctx, 42, start, end)
	assert.False(t, found)

	agg := &storage.MetricsAggregation{
		TotalImpressions: 10000,
		TotalClicks:      250,
		TotalCost:        125.5,
		TotalRevenue:     380.0,
		AvgCTR:           2.5,
		AvgROAS:          3.027,
	}
	cache.PutAggregation(ctx, 42, start, end, agg)

	got, found := cache.GetAggregation(ctx, 42, start, end)
	require.True(t, found)
	assert.Equal(t, agg.TotalImpressions, got.TotalImpressions)
	assert.Equal(t, agg.AvgCTR, got.AvgCTR)
}

func TestMetricsCache_KeyShape(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()
	start, end := dates(t)

	cache.PutAggregation(ctx, 42, start, end, &storage.MetricsAggregation{})
	assert.True(t, mr.Exists("metrics:42:2024-01-01:2024-01-31"))

	cache.PutDaily(ctx, 42, start, &storage.CampaignMetrics{CampaignID: 42})
	assert.True(t, mr.Exists("metrics:42:2024-01-01"))
}

func TestMetricsCache_AggregationExpires(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()
	start, end := dates(t)

	cache.PutAggregation(ctx, 42, start, end, &storage.MetricsAggregation{TotalClicks: 1})

	mr.FastForward(AggregationTTL + time.Second)

	_, found := cache.GetAggregation(ctx, 42, start, end)
	assert.False(t, found)
}

func TestMetricsCache_Invalidate(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()
	start, end := dates(t)

	cache.PutAggregation(ctx, 42, start, end, &storage.MetricsAggregation{})
	cache.PutDaily(ctx, 42, start, &storage.CampaignMetrics{})
	cache.PutAggregation(ctx, 99, start, end, &storage.MetricsAggregation{})

	require.NoError(t, cache.Invalidate(ctx, 42))

	_, found := cache.GetAggregation(ctx, 42, start, end)
	assert.False(t, found)
	_, found = cache.GetDaily(ctx, 42, start)
	assert.False(t, found)

	// other campaigns keep their entries
	_, found = cache.GetAggregation(ctx, 99, start, end)
	assert.True(t, found)
}

func TestMetricsCache_DailyRoundTrip(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()
	day, _ := dates(t)

	m := &storage.CampaignMetrics{CampaignID: 7, Impressions: 500, Clicks: 12}
	cache.PutDaily(ctx, 7, day, m)

	got, found := cache.GetDaily(ctx, 7, day)
	require.True(t, found)
	assert.Equal(t, int64(500), got.Impressions)
	assert.Equal(t, int64(12), got.Clicks)
}
