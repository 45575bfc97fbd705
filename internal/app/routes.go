package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"adops-backend/internal/auth"
	"adops-backend/internal/handlers"
	"adops-backend/internal/middleware"
	"adops-backend/internal/ratelimit"
)

// Routes builds the full HTTP routing table.
func (app *App) Routes() http.Handler {
	h := handlers.New(
		app.Storage,
		app.RedisClient,
		app.Auth,
		app.Campaigns,
		app.Pipelines,
		app.Sync,
		app.Orchestrator,
		app.Logger,
		app.Config.Debug,
	)

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)

	router.HandleFunc("/", h.Root).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// every API request is rate limited, keyed by user id when present and
	// remote address otherwise; only admin paths are exempt
	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(
		app.RateLimiter.HTTPMiddleware(ratelimit.ClientKey, "/api/admin")))

	// public auth endpoints
	api.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/password-reset", h.RequestPasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/password-reset/confirm", h.ConfirmPasswordReset).Methods(http.MethodPost)

	// everything else requires a token
	protected := api.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(app.Auth.Middleware))

	protected.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	protected.HandleFunc("/auth/api-key", h.GenerateAPIKey).Methods(http.MethodPost)

	protected.HandleFunc("/ad-accounts", h.ListAdAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/ad-accounts", h.CreateAdAccount).Methods(http.MethodPost)

	protected.HandleFunc("/campaigns", h.ListCampaigns).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns", h.CreateCampaign).Methods(http.MethodPost)
	protected.HandleFunc("/campaigns/export", h.ExportCampaigns).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns/bulk-update", h.BulkUpdateCampaigns).Methods(http.MethodPost)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.GetCampaign).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.UpdateCampaign).Methods(http.MethodPatch)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.DeleteCampaign).Methods(http.MethodDelete)
	protected.HandleFunc("/campaigns/{id:[0-9]+}/spend", h.AddCampaignSpend).Methods(http.MethodPost)
	protected.HandleFunc("/campaigns/{id:[0-9]+}/metrics", h.GetCampaignMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns/{id:[0-9]+}/metrics", h.RecordCampaignMetrics).Methods(http.MethodPost)

	protected.HandleFunc("/pipelines", h.ListPipelineJobs).Methods(http.MethodGet)
	protected.HandleFunc("/pipelines", h.CreatePipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/dags", h.ListDAGs).Methods(http.MethodGet)
	protected.HandleFunc("/pipelines/batch-trigger", h.BatchTriggerPipelineJobs).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}", h.GetPipelineJob).Methods(http.MethodGet)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/trigger", h.TriggerPipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/cancel", h.CancelPipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/refresh", h.RefreshPipelineJob).Methods(http.MethodPost)

	protected.HandleFunc("/sync/campaigns/{id:[0-9]+}", h.SyncCampaign).Methods(http.MethodPost)
	protected.HandleFunc("/sync/{platform}", h.TriggerPlatformSync).Methods(http.MethodPost)
	protected.HandleFunc("/sync/{platform}/status", h.GetSyncStatus).Methods(http.MethodGet)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(auth.RequireSuperuser))
	admin.HandleFunc("/stats", h.GetSystemStats).Methods(http.MethodGet)
	admin.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id:[0-9]+}", h.GetUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id:[0-9]+}/active", h.SetUserActive).Methods(http.MethodPut)
	admin.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)

	return router
}
