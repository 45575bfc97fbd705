// Package orchestrator talks to the workflow orchestrator's REST API to
// trigger and observe DAG runs.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
)

// Run states reported by the orchestrator.
const (
	StateQueued  = "queued"
	StateRunning = "running"
	StateSuccess = "success"
	StateFailed  = "failed"
)

const defaultTimeout = 30 * time.Second

// Config holds connection settings for the orchestrator API.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Run describes one DAG run as reported by the orchestrator.
type Run struct {
	DagRunID  string     `json:"dag_run_id"`
	DagID     string     `json:"dag_id"`
	State     string     `json:"state"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// DAG is one workflow definition known to the orchestrator.
type DAG struct {
	DagID    string `json:"dag_id"`
	IsPaused bool   `json:"is_paused"`
	IsActive bool   `json:"is_active"`
}

type dagListResponse struct {
	DAGs       []DAG `json:"dags"`
	TotalCount int   `json:"total_entries"`
}

// Client is an orchestrator API client. Calls go through a circuit
// breaker so a dead orchestrator fails fast instead of tying up
// request handlers for the full HTTP timeout.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     logging.Logger
}

// NewClient creates an orchestrator client from config.
func NewClient(config *Config, logger logging.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	log := logger.WithFields(logging.Field{Key: "component", Value: "orchestrator"})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "orchestrator",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()})
		},
	})

	return &Client{
		baseURL:    config.BaseURL,
		username:   config.Username,
		password:   config.Password,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     log,
	}
}

// TriggerRun starts a new run of the given DAG, passing conf through to
// the workflow. It returns the orchestrator-assigned run identifier.
func (c *Client) TriggerRun(ctx context.Context, dagID string, conf map[string]interface{}) (*Run, error) {
	if conf == nil {
		conf = map[string]interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"conf": conf})
	if err != nil {
		return nil, apperrors.InternalError("failed to encode trigger payload", err)
	}

	path := fmt.Sprintf("/api/v1/dags/%s/dagRuns", url.PathEscape(dagID))

	var run Run
	if err := c.do(ctx, http.MethodPost, path, body, &run); err != nil {
		return nil, err
	}

	c.logger.Info("triggered dag run",
		logging.Field{Key: "dag_id", Value: dagID},
		logging.Field{Key: "run_id", Value: run.DagRunID})
	return &run, nil
}

// GetRunStatus fetches the current state of a DAG run.
func (c *Client) GetRunStatus(ctx context.Context, dagID, runID string) (*Run, error) {
	path := fmt.Sprintf("/api/v1/dags/%s/dagRuns/%s", url.PathEscape(dagID), url.PathEscape(runID))

	var run Run
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListDAGs returns the workflow definitions the orchestrator knows about.
func (c *Client) ListDAGs(ctx context.Context) ([]DAG, error) {
	var resp dagListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/dags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.DAGs, nil
}

// Health reports whether the orchestrator API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.doRequest(ctx, method, path, body, dest)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperrors.UnavailableError("orchestrator circuit open", err)
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.InternalError("failed to build orchestrator request", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamError("orchestrator request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NotFoundError("dag run")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperrors.UpstreamError(
			fmt.Sprintf("orchestrator returned status %d: %s", resp.StatusCode, string(payload)), nil)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperrors.UpstreamError("failed to decode orchestrator response", err)
	}
	return nil
}
