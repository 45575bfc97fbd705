package app

import (
	"context"
	"fmt"

	"adops-backend/internal/cache"
	"adops-backend/internal/orchestrator"
	syncsvc "adops-backend/internal/sync"
)

// orchestratorFetcher satisfies sync.Fetcher by delegating the actual
// data pull to orchestrator DAGs. Each platform has a sync_{platform}
// DAG that fetches from the platform API and writes metrics rows; the
// campaign refresh DAG does the same for a single campaign.
type orchestratorFetcher struct {
	orch  *orchestrator.Client
	cache *cache.MetricsCache
}

func newOrchestratorFetcher(orch *orchestrator.Client, metricsCache *cache.MetricsCache) *orchestratorFetcher {
	return &orchestratorFetcher{orch: orch, cache: metricsCache}
}

func (f *orchestratorFetcher) FetchPlatform(ctx context.Context, userID int64, platform string, dateRange *syncsvc.DateRange) error {
	conf := map[string]interface{}{
		"user_id": userID,
	}
	if dateRange != nil {
		conf["start_date"] = dateRange.Start.Format(cache.DateLayout)
		conf["end_date"] = dateRange.End.Format(cache.DateLayout)
	}
	_, err := f.orch.TriggerRun(ctx, fmt.Sprintf("sync_%s", platform), conf)
	return err
}

func (f *orchestratorFetcher) FetchCampaign(ctx context.Context, campaignID int64) error {
	_, err := f.orch.TriggerRun(ctx, "campaign_refresh", map[string]interface{}{
		"campaign_id": campaignID,
	})
	if err != nil {
		return err
	}
	// fresh rows land behind our back, drop the cached aggregates
	return f.cache.Invalidate(ctx, campaignID)
}
