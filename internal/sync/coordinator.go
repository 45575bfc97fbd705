// Package sync coordinates metric synchronization from external ad
// platforms, serializing concurrent syncs with distributed locks.
package sync

import (
	"context"
	"fmt"
	"time"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/locks"
	"adops-backend/internal/redis"
)

const (
	// PlatformLockTimeout bounds a full platform sync; the lock expires
	// on its own if the worker dies mid-sync.
	PlatformLockTimeout = 5 * time.Minute

	// CampaignLockTimeout bounds a single-campaign refresh.
	CampaignLockTimeout = 10 * time.Second

	// statusTTL keeps sync status entries from outliving their usefulness.
	statusTTL = 24 * time.Hour

	defaultWorkers = 4
)

// Sync status values surfaced to clients.
const (
	StatusIdle      = "idle"
	StatusSyncing   = "syncing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Status describes the most recent sync for a user/platform pair.
type Status struct {
	Status   string     `json:"status"`
	LastSync *time.Time `json:"last_sync"`
	Error    string     `json:"error,omitempty"`
}

// DateRange bounds a platform sync to a metrics window. A nil range
// leaves the window up to the platform integration.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Fetcher pulls fresh data from an external ad platform. Implementations
// own the platform API details; the coordinator owns locking and status
// bookkeeping.
type Fetcher interface {
	FetchPlatform(ctx context.Context, userID int64, platform string, dateRange *DateRange) error
	FetchCampaign(ctx context.Context, campaignID int64) error
}

// Coordinator serializes syncs so at most one runs per user/platform pair
// and per campaign across all instances.
type Coordinator struct {
	locks   locks.Manager
	redis   *redis.Client
	fetcher Fetcher
	logger  logging.Logger

	// workers bounds fire-and-forget background syncs
	workers chan struct{}
}

// NewCoordinator creates a sync coordinator. workerCount bounds concurrent
// background syncs; zero or negative means the default.
func NewCoordinator(lockManager locks.Manager, redisClient *redis.Client, fetcher Fetcher, workerCount int, logger logging.Logger) *Coordinator {
	if workerCount <= 0 {
		workerCount = defaultWorkers
	}
	return &Coordinator{
		locks:   lockManager,
		redis:   redisClient,
		fetcher: fetcher,
		logger:  logger.WithFields(logging.Field{Key: "component", Value: "sync"}),
		workers: make(chan struct{}, workerCount),
	}
}

func platformLockName(userID int64, platform string) string {
	return fmt.Sprintf("sync:%d:%s", userID, platform)
}

func campaignLockName(campaignID int64) string {
	return fmt.Sprintf("sync:%d", campaignID)
}

func statusKey(userID int64, platform string) string {
	return fmt.Sprintf("sync_status:%d:%s", userID, platform)
}

// SyncPlatform runs a full sync for one user's platform, optionally
// bounded to a date range. If another sync for the same pair is in
// flight anywhere, it returns a conflict error.
func (c *Coordinator) SyncPlatform(ctx context.Context, userID int64, platform string, dateRange *DateRange) error {
	lock, err := c.locks.Acquire(ctx, platformLockName(userID, platform), PlatformLockTimeout)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeConflict) {
			return apperrors.ConflictError("sync already in progress").
				WithContext("user_id", userID).
				WithContext("platform", platform)
		}
		return err
	}
	defer func() {
		if _, releaseErr := lock.Release(ctx); releaseErr != nil {
			c.logger.Warn("failed to release sync lock",
				logging.Field{Key: "lock", Value: lock.Name()},
				logging.Field{Key: "error", Value: releaseErr.Error()})
		}
	}()

	c.setStatus(ctx, userID, platform, Status{Status: StatusSyncing})

	if err := c.fetcher.FetchPlatform(ctx, userID, platform, dateRange); err != nil {
		c.setStatus(ctx, userID, platform, Status{Status: StatusFailed, Error: err.Error()})
		c.logger.Error("platform sync failed", err,
			logging.Field{Key: "user_id", Value: userID},
			logging.Field{Key: "platform", Value: platform})
		return apperrors.UpstreamError(fmt.Sprintf("sync failed for platform %s", platform), err)
	}

	now := time.Now().UTC()
	c.setStatus(ctx, userID, platform, Status{Status: StatusCompleted, LastSync: &now})
	c.logger.Info("platform sync completed",
		logging.Field{Key: "user_id", Value: userID},
		logging.Field{Key: "platform", Value: platform})
	return nil
}

// SyncPlatformAsync starts a platform sync in the background, bounded by
// the worker pool. It returns immediately; progress is visible through
// SyncStatus.
func (c *Coordinator) SyncPlatformAsync(userID int64, platform string, dateRange *DateRange) {
	c.workers <- struct{}{}
	go func() {
		defer func() { <-c.workers }()

		ctx, cancel := context.WithTimeout(context.Background(), PlatformLockTimeout)
		defer cancel()

		if err := c.SyncPlatform(ctx, userID, platform, dateRange); err != nil {
			if !apperrors.IsType(err, apperrors.ErrTypeConflict) {
				c.logger.Warn("background sync failed",
					logging.Field{Key: "user_id", Value: userID},
					logging.Field{Key: "platform", Value: platform},
					logging.Field{Key: "error", Value: err.Error()})
			}
		}
	}()
}

// SyncCampaign refreshes a single campaign's metrics under a short lock.
func (c *Coordinator) SyncCampaign(ctx context.Context, campaignID int64) error {
	lock, err := c.locks.Acquire(ctx, campaignLockName(campaignID), CampaignLockTimeout)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeConflict) {
			return apperrors.ConflictError("campaign sync already in progress").
				WithContext("campaign_id", campaignID)
		}
		return err
	}
	defer func() {
		if _, releaseErr := lock.Release(ctx); releaseErr != nil {
			c.logger.Warn("failed to release sync lock",
				logging.Field{Key: "lock", Value: lock.Name()},
				logging.Field{Key: "error", Value: releaseErr.Error()})
		}
	}()

	if err := c.fetcher.FetchCampaign(ctx, campaignID); err != nil {
		return apperrors.UpstreamError("campaign sync failed", err)
	}
	return nil
}

// SyncStatus returns the last recorded sync status for a user/platform
// pair. A pair that has never synced reads as idle.
func (c *Coordinator) SyncStatus(ctx context.Context, userID int64, platform string) (*Status, error) {
	var status Status
	found, err := c.redis.Get(ctx, statusKey(userID, platform), &status)
	if err != nil {
		return nil, err
	}
	if !found {
		return &Status{Status: StatusIdle}, nil
	}
	return &status, nil
}

func (c *Coordinator) setStatus(ctx context.Context, userID int64, platform string, status Status) {
	if err := c.redis.Set(ctx, statusKey(userID, platform), status, statusTTL); err != nil {
		c.logger.Warn("failed to store sync status",
			logging.Field{Key: "user_id", Value: userID},
			logging.Field{Key: "platform", Value: platform},
			logging.Field{Key: "error", Value: err.Error()})
	}
}
