package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "admin",
	}, logging.NewDefaultLogger())
}

func TestClient_TriggerRun(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Run{
			DagRunID: "manual__2024-01-01T00:00:00",
			DagID:    "campaign_sync",
			State:    StateQueued,
		})
	}))

	run, err := client.TriggerRun(context.Background(), "campaign_sync",
		map[string]interface{}{"campaign_id": 42})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/dags/campaign_sync/dagRuns", gotPath)
	assert.Equal(t, "admin:admin", gotAuth)
	assert.Equal(t, map[string]interface{}{"campaign_id": float64(42)}, gotBody["conf"])
	assert.Equal(t, "manual__2024-01-01T00:00:00", run.DagRunID)
	assert.Equal(t, StateQueued, run.State)
}

func TestClient_TriggerRun_NilConf(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{}, body["conf"])
		json.NewEncoder(w).Encode(Run{DagRunID: "r1", State: StateQueued})
	}))

	_, err := client.TriggerRun(context.Background(), "daily_report", nil)
	require.NoError(t, err)
}

func TestClient_GetRunStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dags/campaign_sync/dagRuns/r1", r.URL.Path)
		json.NewEncoder(w).Encode(Run{DagRunID: "r1", DagID: "campaign_sync", State: StateSuccess})
	}))

	run, err := client.GetRunStatus(context.Background(), "campaign_sync", "r1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, run.State)
}

func TestClient_GetRunStatus_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetRunStatus(context.Background(), "campaign_sync", "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestClient_UpstreamError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"scheduler down"}`))
	}))

	_, err := client.TriggerRun(context.Background(), "campaign_sync", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
	assert.Contains(t, err.Error(), "500")
}

func TestClient_ListDAGs(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/dags", r.URL.Path)
		json.NewEncoder(w).Encode(dagListResponse{
			DAGs: []DAG{
				{DagID: "campaign_sync", IsActive: true},
				{DagID: "daily_report", IsActive: true, IsPaused: true},
			},
			TotalCount: 2,
		})
	}))

	dags, err := client.ListDAGs(context.Background())
	require.NoError(t, err)
	require.Len(t, dags, 2)
	assert.Equal(t, "campaign_sync", dags[0].DagID)
	assert.True(t, dags[1].IsPaused)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.GetRunStatus(ctx, "d", "r")
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUpstream))
	}

	// breaker is open now, requests are rejected without hitting the server
	_, err := client.GetRunStatus(ctx, "d", "r")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeUnavailable))
}
