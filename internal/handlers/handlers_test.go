package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adops-backend/internal/auth"
	"adops-backend/internal/cache"
	"adops-backend/internal/campaigns"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/handlers"
	"adops-backend/internal/locks"
	"adops-backend/internal/orchestrator"
	"adops-backend/internal/pipeline"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
	syncsvc "adops-backend/internal/sync"
)

// memStorage is an in-memory storage.Storage for handler tests.
type memStorage struct {
	mu        sync.Mutex
	users     map[int64]*storage.User
	accounts  map[int64]*storage.AdAccount
	campaigns map[int64]*storage.Campaign
	metrics   []*storage.CampaignMetrics
	jobs      map[int64]*storage.PipelineJob
	nextID    int64
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:     map[int64]*storage.User{},
		accounts:  map[int64]*storage.AdAccount{},
		campaigns: map[int64]*storage.Campaign{},
		jobs:      map[int64]*storage.PipelineJob{},
		nextID:    1,
	}
}

func (m *memStorage) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStorage) CreateUser(_ context.Context, user *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.id()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStorage) GetUser(_ context.Context, id int64) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *memStorage) GetUserByEmail(_ context.Context, email string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStorage) GetUserByAPIKey(_ context.Context, apiKey string) (*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.APIKey != nil && *user.APIKey == apiKey {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStorage) ListUsers(_ context.Context, _ string, _, _ int) ([]*storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.User
	for _, user := range m.users {
		copied := *user
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStorage) UpdateUser(_ context.Context, user *storage.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStorage) CountUsers(_ context.Context, activeOnly bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, user := range m.users {
		if !activeOnly || user.IsActive {
			count++
		}
	}
	return count, nil
}

func (m *memStorage) CreateAdAccount(_ context.Context, account *storage.AdAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	account.ID = m.id()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *memStorage) GetAdAccount(_ context.Context, id int64) (*storage.AdAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (m *memStorage) ListAdAccounts(_ context.Context, userID int64) ([]*storage.AdAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.AdAccount
	for _, account := range m.accounts {
		if account.UserID == userID {
			copied := *account
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStorage) CountAdAccounts(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.accounts)), nil
}

func (m *memStorage) CreateCampaign(_ context.Context, campaign *storage.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign.ID = m.id()
	copied := *campaign
	m.campaigns[campaign.ID] = &copied
	return nil
}

func (m *memStorage) GetCampaign(_ context.Context, id, userID int64) (*storage.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[id]
	if !ok || campaign.UserID != userID {
		return nil, nil
	}
	copied := *campaign
	return &copied, nil
}

func (m *memStorage) ListCampaigns(_ context.Context, userID int64, status *storage.CampaignStatus, _, _ int) ([]*storage.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.Campaign
	for _, campaign := range m.campaigns {
		if campaign.UserID != userID {
			continue
		}
		if status != nil && campaign.Status != *status {
			continue
		}
		copied := *campaign
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStorage) UpdateCampaign(_ context.Context, campaign *storage.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *campaign
	m.campaigns[campaign.ID] = &copied
	return nil
}

func (m *memStorage) DeleteCampaign(_ context.Context, id, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	campaign, ok := m.campaigns[id]
	if !ok || campaign.UserID != userID {
		return false, nil
	}
	delete(m.campaigns, id)
	return true, nil
}

func (m *memStorage) CountCampaigns(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.campaigns)), nil
}

func (m *memStorage) CreateMetrics(_ context.Context, metrics *storage.CampaignMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics.ID = m.id()
	copied := *metrics
	m.metrics = append(m.metrics, &copied)
	return nil
}

func (m *memStorage) ListMetrics(_ context.Context, campaignID int64, start, end time.Time) ([]*storage.CampaignMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.CampaignMetrics
	for _, row := range m.metrics {
		if row.CampaignID == campaignID && !row.Date.Before(start) && !row.Date.After(end) {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStorage) CreatePipelineJob(_ context.Context, job *storage.PipelineJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.id()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memStorage) GetPipelineJob(_ context.Context, id, ownerID int64) (*storage.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.CreatedBy != ownerID {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (m *memStorage) ListPipelineJobs(_ context.Context, ownerID int64, _, _ int) ([]*storage.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.PipelineJob
	for _, job := range m.jobs {
		if job.CreatedBy == ownerID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStorage) ListPipelineJobsByStatus(_ context.Context, status string, _ int) ([]*storage.PipelineJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.PipelineJob
	for _, job := range m.jobs {
		if job.Status == status {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStorage) UpdatePipelineJob(_ context.Context, job *storage.PipelineJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.ID] = &copied
	return nil
}

func (m *memStorage) Close() {}

type stubFetcher struct{}

func (stubFetcher) FetchPlatform(context.Context, int64, string, *syncsvc.DateRange) error {
	return nil
}
func (stubFetcher) FetchCampaign(context.Context, int64) error { return nil }

type testEnv struct {
	router *mux.Router
	store  *memStorage
	auth   *auth.Service
	mr     *miniredis.Miniredis
	token  string
	userID int64

	// orchDown makes the stub orchestrator answer 502 while set
	orchDown *atomic.Bool
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Close() })

	orchDown := &atomic.Bool{}
	orchServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if orchDown.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateQueued})
	}))
	t.Cleanup(orchServer.Close)

	logger := logging.NewDefaultLogger()
	store := newMemStorage()
	metricsCache := cache.NewMetricsCache(redisClient, logger)

	authService := auth.NewService(store, redisClient, auth.Config{
		JWTSecret:         "handlers-test-secret-with-enough-entropy",
		AccessTokenExpiry: 30 * time.Minute,
	}, logger)

	orchClient := orchestrator.NewClient(&orchestrator.Config{
		BaseURL: orchServer.URL, Username: "admin", Password: "admin",
	}, logger)

	h := handlers.New(
		store,
		redisClient,
		authService,
		campaigns.NewService(store, metricsCache, logger),
		pipeline.NewManager(store, orchClient, logger),
		syncsvc.NewCoordinator(locks.NewRedisManager(redisClient), redisClient, stubFetcher{}, 2, logger),
		orchClient,
		logger,
		false,
	)

	router := mux.NewRouter()
	router.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(mux.MiddlewareFunc(authService.Middleware))
	protected.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	protected.HandleFunc("/ad-accounts", h.ListAdAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/ad-accounts", h.CreateAdAccount).Methods(http.MethodPost)
	protected.HandleFunc("/campaigns", h.ListCampaigns).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns", h.CreateCampaign).Methods(http.MethodPost)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.GetCampaign).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.UpdateCampaign).Methods(http.MethodPatch)
	protected.HandleFunc("/campaigns/{id:[0-9]+}", h.DeleteCampaign).Methods(http.MethodDelete)
	protected.HandleFunc("/campaigns/{id:[0-9]+}/metrics", h.GetCampaignMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/campaigns/{id:[0-9]+}/metrics", h.RecordCampaignMetrics).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines", h.CreatePipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/trigger", h.TriggerPipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/cancel", h.CancelPipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/pipelines/{id:[0-9]+}/refresh", h.RefreshPipelineJob).Methods(http.MethodPost)
	protected.HandleFunc("/sync/{platform}", h.TriggerPlatformSync).Methods(http.MethodPost)
	protected.HandleFunc("/sync/{platform}/status", h.GetSyncStatus).Methods(http.MethodGet)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(mux.MiddlewareFunc(auth.RequireSuperuser))
	admin.HandleFunc("/stats", h.GetSystemStats).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id:[0-9]+}", h.GetUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id:[0-9]+}/active", h.SetUserActive).Methods(http.MethodPut)
	admin.HandleFunc("/cache/clear", h.ClearCache).Methods(http.MethodPost)

	env := &testEnv{router: router, store: store, auth: authService, mr: mr, orchDown: orchDown}

	// registered user with one active ad account
	user, err := authService.Register(context.Background(), "ops@example.com", "correct-horse", "Ops")
	require.NoError(t, err)
	env.userID = user.ID

	require.NoError(t, store.CreateAdAccount(context.Background(), &storage.AdAccount{
		UserID: user.ID, Platform: "google_ads", AccountID: "123-456", IsActive: true,
	}))

	env.token, _, err = authService.Login(context.Background(), "ops@example.com", "correct-horse")
	require.NoError(t, err)
	return env
}

func (env *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) promote(t *testing.T) {
	t.Helper()
	user, err := env.store.GetUser(context.Background(), env.userID)
	require.NoError(t, err)
	user.IsSuperuser = true
	require.NoError(t, env.store.UpdateUser(context.Background(), user))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCampaignLifecycle(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/api/campaigns", map[string]interface{}{
		"ad_account_id": 2,
		"name":          "Summer Sale",
		"budget":        1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[storage.Campaign](t, rec)
	assert.Equal(t, storage.CampaignDraft, created.Status)

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/campaigns/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPatch, fmt.Sprintf("/api/campaigns/%d", created.ID),
		map[string]interface{}{"status": "active"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[storage.Campaign](t, rec)
	assert.Equal(t, storage.CampaignActive, updated.Status)

	rec = env.request(t, http.MethodDelete, fmt.Sprintf("/api/campaigns/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/campaigns/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCampaignMetricsEndpoints(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/api/campaigns", map[string]interface{}{
		"ad_account_id": 2, "name": "Summer Sale",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	campaign := decodeBody[storage.Campaign](t, rec)

	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/campaigns/%d/metrics", campaign.ID),
		map[string]interface{}{
			"date":        time.Now().UTC().Format(time.RFC3339),
			"impressions": 2000,
			"clicks":      50,
			"cost":        80,
			"revenue":     240,
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.request(t, http.MethodGet, fmt.Sprintf("/api/campaigns/%d/metrics", campaign.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agg := decodeBody[storage.MetricsAggregation](t, rec)
	assert.Equal(t, int64(2000), agg.TotalImpressions)
	assert.InDelta(t, 2.5, agg.AvgCTR, 0.001)
	assert.InDelta(t, 3.0, agg.AvgROAS, 0.001)

	t.Run("bad date rejected", func(t *testing.T) {
		rec := env.request(t, http.MethodGet,
			fmt.Sprintf("/api/campaigns/%d/metrics?start_date=01-01-2024", campaign.ID), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPipelineEndpoints(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/api/pipelines", map[string]interface{}{
		"job_name": "nightly sync", "dag_id": "campaign_sync",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	job := decodeBody[storage.PipelineJob](t, rec)

	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/trigger", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	triggered := decodeBody[storage.PipelineJob](t, rec)
	assert.Equal(t, pipeline.StatusRunning, triggered.Status)

	t.Run("double trigger conflicts", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/trigger", job.ID), nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/cancel", job.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decodeBody[storage.PipelineJob](t, rec)
	assert.Equal(t, pipeline.StatusCancelled, cancelled.Status)

	t.Run("orchestrator rejection returns the failed job", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/pipelines", map[string]interface{}{
			"job_name": "rejected run", "dag_id": "campaign_sync",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		job := decodeBody[storage.PipelineJob](t, rec)

		env.orchDown.Store(true)
		defer env.orchDown.Store(false)

		rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/trigger", job.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		failed := decodeBody[storage.PipelineJob](t, rec)
		assert.Equal(t, pipeline.StatusFailed, failed.Status)
		require.NotNil(t, failed.ErrorMessage)
	})

	t.Run("refresh swallows orchestrator failures", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/pipelines", map[string]interface{}{
			"job_name": "flaky refresh", "dag_id": "campaign_sync",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		job := decodeBody[storage.PipelineJob](t, rec)

		rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/trigger", job.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		env.orchDown.Store(true)
		defer env.orchDown.Store(false)

		rec = env.request(t, http.MethodPost, fmt.Sprintf("/api/pipelines/%d/refresh", job.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		refreshed := decodeBody[storage.PipelineJob](t, rec)
		assert.Equal(t, pipeline.StatusRunning, refreshed.Status)
	})
}

func TestSyncEndpoints(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodGet, "/api/sync/google_ads/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeBody[syncsvc.Status](t, rec)
	assert.Equal(t, syncsvc.StatusIdle, status.Status)

	rec = env.request(t, http.MethodPost, "/api/sync/google_ads", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	t.Run("unsupported platform", func(t *testing.T) {
		rec := env.request(t, http.MethodPost, "/api/sync/myspace", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthRequired(t *testing.T) {
	env := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdAccounts(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodPost, "/api/ad-accounts", map[string]string{
		"platform":     "naver",
		"account_id":   "naver-778",
		"account_name": "KR Search",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[storage.AdAccount](t, rec)
	assert.True(t, created.IsActive)

	rec = env.request(t, http.MethodGet, "/api/ad-accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decodeBody[[]storage.AdAccount](t, rec)
	assert.Len(t, accounts, 2)

	rec = env.request(t, http.MethodPost, "/api/ad-accounts", map[string]string{
		"platform":   "myspace_ads",
		"account_id": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRequiresSuperuser(t *testing.T) {
	env := setupEnv(t)

	rec := env.request(t, http.MethodGet, "/api/admin/stats", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the middleware reloads the user per request, so promotion is
	// visible with the same token
	user, err := env.store.GetUser(context.Background(), env.userID)
	require.NoError(t, err)
	user.IsSuperuser = true
	require.NoError(t, env.store.UpdateUser(context.Background(), user))

	rec = env.request(t, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[map[string]int64](t, rec)
	assert.Equal(t, int64(1), stats["users"])
}

func TestAdminUserManagement(t *testing.T) {
	env := setupEnv(t)
	env.promote(t)

	other, err := env.auth.Register(context.Background(), "analyst@example.com", "correct-horse", "Analyst")
	require.NoError(t, err)

	rec := env.request(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", other.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody[storage.User](t, rec)
	assert.Equal(t, "analyst@example.com", fetched.Email)

	rec = env.request(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/active", other.ID),
		map[string]bool{"is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	// a deactivated user can no longer log in
	_, _, err = env.auth.Login(context.Background(), "analyst@example.com", "correct-horse")
	assert.Error(t, err)

	rec = env.request(t, http.MethodGet, "/api/admin/users/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCacheClear(t *testing.T) {
	env := setupEnv(t)
	env.promote(t)

	require.NoError(t, env.mr.Set("metrics:1:2026-01-01", "{}"))
	require.NoError(t, env.mr.Set("metrics:2:2026-01-01", "{}"))
	require.NoError(t, env.mr.Set("lock:google_ads", "held"))

	rec := env.request(t, http.MethodPost, "/api/admin/cache/clear",
		map[string]string{"prefix": "metrics:"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decodeBody[map[string]int](t, rec)
	assert.Equal(t, 2, result["deleted"])
	assert.True(t, env.mr.Exists("lock:google_ads"))

	rec = env.request(t, http.MethodPost, "/api/admin/cache/clear",
		map[string]string{"prefix": "lock:"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
