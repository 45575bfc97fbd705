// Package cache provides domain-keyed caching facades over the shared
// Redis client.
package cache

import (
	"context"
	"fmt"
	"time"

	"adops-backend/internal/common/logging"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
)

const (
	// AggregationTTL bounds how stale a cached range aggregation may get.
	AggregationTTL = 30 * time.Minute

	// DailyTTL covers single-day metric snapshots, which change less often.
	DailyTTL = time.Hour

	// DateLayout is the canonical date format used inside cache keys.
	DateLayout = "2006-01-02"
)

// MetricsCache caches computed campaign metrics under well-known key shapes:
//
//	metrics:{campaignId}:{date}                daily snapshot
//	metrics:{campaignId}:{startDate}:{endDate} range aggregation
//
// Both shapes share the metrics:{campaignId}: prefix so a single pattern
// delete invalidates everything cached for one campaign.
type MetricsCache struct {
	redis  *redis.Client
	logger logging.Logger
}

// NewMetricsCache creates a metrics cache backed by the given Redis client.
func NewMetricsCache(client *redis.Client, logger logging.Logger) *MetricsCache {
	return &MetricsCache{
		redis:  client,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "metrics_cache"}),
	}
}

func aggregationKey(campaignID int64, start, end time.Time) string {
	return fmt.Sprintf("metrics:%d:%s:%s", campaignID, start.Format(DateLayout), end.Format(DateLayout))
}

func dailyKey(campaignID int64, date time.Time) string {
	return fmt.Sprintf("metrics:%d:%s", campaignID, date.Format(DateLayout))
}

// GetAggregation returns the cached aggregation for a campaign and date
// range, reporting whether the entry was present. Cache backend failures
// are logged and reported as a miss so callers fall through to the
// database.
func (c *MetricsCache) GetAggregation(ctx context.Context, campaignID int64, start, end time.Time) (*storage.MetricsAggregation, bool) {
	var agg storage.MetricsAggregation
	found, err := c.redis.Get(ctx, aggregationKey(campaignID, start, end), &agg)
	if err != nil {
		c.logger.Warn("metrics cache read failed",
			logging.Field{Key: "campaign_id", Value: campaignID},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &agg, true
}

// PutAggregation stores a computed aggregation for later reads.
func (c *MetricsCache) PutAggregation(ctx context.Context, campaignID int64, start, end time.Time, agg *storage.MetricsAggregation) {
	if err := c.redis.Set(ctx, aggregationKey(campaignID, start, end), agg, AggregationTTL); err != nil {
		c.logger.Warn("metrics cache write failed",
			logging.Field{Key: "campaign_id", Value: campaignID},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// GetDaily returns the cached metrics snapshot for a single day.
func (c *MetricsCache) GetDaily(ctx context.Context, campaignID int64, date time.Time) (*storage.CampaignMetrics, bool) {
	var m storage.CampaignMetrics
	found, err := c.redis.Get(ctx, dailyKey(campaignID, date), &m)
	if err != nil {
		c.logger.Warn("metrics cache read failed",
			logging.Field{Key: "campaign_id", Value: campaignID},
			logging.Field{Key: "error", Value: err.Error()})
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &m, true
}

// PutDaily stores a single-day metrics snapshot.
func (c *MetricsCache) PutDaily(ctx context.Context, campaignID int64, date time.Time, m *storage.CampaignMetrics) {
	if err := c.redis.Set(ctx, dailyKey(campaignID, date), m, DailyTTL); err != nil {
		c.logger.Warn("metrics cache write failed",
			logging.Field{Key: "campaign_id", Value: campaignID},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// Invalidate removes every cached entry for a campaign. It must complete
// before the mutating call returns so subsequent reads never serve stale
// figures.
func (c *MetricsCache) Invalidate(ctx context.Context, campaignID int64) error {
	deleted, err := c.redis.DeleteByPattern(ctx, fmt.Sprintf("metrics:%d:", campaignID))
	if err != nil {
		return err
	}
	if deleted > 0 {
		c.logger.Debug("invalidated metrics cache",
			logging.Field{Key: "campaign_id", Value: campaignID},
			logging.Field{Key: "deleted", Value: deleted})
	}
	return nil
}
