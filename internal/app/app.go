// Package app assembles the application: configuration, storage, Redis,
// services, HTTP surface and the background status poller.
package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"adops-backend/internal/auth"
	"adops-backend/internal/cache"
	"adops-backend/internal/campaigns"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/config"
	"adops-backend/internal/locks"
	"adops-backend/internal/orchestrator"
	"adops-backend/internal/pipeline"
	"adops-backend/internal/ratelimit"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
	syncsvc "adops-backend/internal/sync"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	Storage      storage.Storage
	RedisClient  *redis.Client
	LockManager  locks.Manager
	MetricsCache *cache.MetricsCache
	RateLimiter  *ratelimit.Limiter
	Auth         *auth.Service
	Campaigns    *campaigns.Service
	Pipelines    *pipeline.Manager
	Sync         *syncsvc.Coordinator
	Orchestrator *orchestrator.Client
	Logger       logging.Logger

	cron *cron.Cron
}

// New creates the application with all dependencies wired in dependency
// order.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}
	if err := app.initializeLocks(); err != nil {
		return nil, err
	}

	app.MetricsCache = cache.NewMetricsCache(app.RedisClient, app.Logger)

	app.RateLimiter = ratelimit.NewLimiter(app.RedisClient, &ratelimit.Config{
		Limit:   cfg.RateLimitDefault,
		Window:  cfg.RateLimitWindow,
		Enabled: cfg.RateLimitEnabled,
	})

	app.Orchestrator = orchestrator.NewClient(&orchestrator.Config{
		BaseURL:  cfg.OrchestratorBaseURL,
		Username: cfg.OrchestratorUsername,
		Password: cfg.OrchestratorPassword,
	}, app.Logger)

	app.Auth = auth.NewService(app.Storage, app.RedisClient, auth.Config{
		JWTSecret:         cfg.JWTSecret,
		AccessTokenExpiry: cfg.AccessTokenExpiry,
	}, app.Logger)

	app.Campaigns = campaigns.NewService(app.Storage, app.MetricsCache, app.Logger)
	app.Pipelines = pipeline.NewManager(app.Storage, app.Orchestrator, app.Logger)

	fetcher := newOrchestratorFetcher(app.Orchestrator, app.MetricsCache)
	app.Sync = syncsvc.NewCoordinator(app.LockManager, app.RedisClient, fetcher, cfg.SyncWorkers, app.Logger)

	if err := app.startPoller(); err != nil {
		return nil, err
	}

	return app, nil
}

func (app *App) initializeStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.NewPostgres(ctx, storage.PostgresConfig{
		URL:      app.Config.DatabaseURL,
		PoolSize: app.Config.DatabasePoolSize,
		Overflow: app.Config.DatabasePoolOverflow,
	})
	if err != nil {
		return err
	}

	app.Storage = store
	app.Logger.Info("storage initialized")
	return nil
}

func (app *App) initializeLocks() error {
	manager, err := locks.New(app.Config.LockBackend, app.RedisClient)
	if err != nil {
		return err
	}
	app.LockManager = manager
	app.Logger.Info("lock manager initialized",
		logging.Field{Key: "backend", Value: app.Config.LockBackend})
	return nil
}

// Cleanup releases every resource the app holds. Safe to call once.
func (app *App) Cleanup() {
	if app.cron != nil {
		ctx := app.cron.Stop()
		<-ctx.Done()
	}
	if app.LockManager != nil {
		if err := app.LockManager.Close(); err != nil {
			app.Logger.Warn("failed to close lock manager",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("failed to close redis client",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
}
