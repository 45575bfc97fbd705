// Package handlers wires the HTTP surface: request decoding, auth
// context access and error-to-status translation around the services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"adops-backend/internal/auth"
	"adops-backend/internal/cache"
	"adops-backend/internal/campaigns"
	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/orchestrator"
	"adops-backend/internal/pipeline"
	"adops-backend/internal/redis"
	"adops-backend/internal/storage"
	syncsvc "adops-backend/internal/sync"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Platforms the sync endpoints accept.
var supportedPlatforms = map[string]bool{
	"google_ads": true,
	"facebook":   true,
	"naver":      true,
	"kakao":      true,
}

type Handlers struct {
	storage   storage.Storage
	redis     *redis.Client
	auth      *auth.Service
	campaigns *campaigns.Service
	pipelines *pipeline.Manager
	sync      *syncsvc.Coordinator
	orch      *orchestrator.Client
	logger    logging.Logger
	debug     bool
}

func New(
	store storage.Storage,
	redisClient *redis.Client,
	authService *auth.Service,
	campaignService *campaigns.Service,
	pipelineManager *pipeline.Manager,
	syncCoordinator *syncsvc.Coordinator,
	orchClient *orchestrator.Client,
	logger logging.Logger,
	debug bool,
) *Handlers {
	return &Handlers{
		storage:   store,
		redis:     redisClient,
		auth:      authService,
		campaigns: campaignService,
		pipelines: pipelineManager,
		sync:      syncCoordinator,
		orch:      orchClient,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "http"}),
		debug:     debug,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Type    string                 `json:"type"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	resp := errorResponse{Error: err.Error(), Type: string(apperrors.GetType(err))}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Context = appErr.Context
	}

	// Internal details only leak to clients in debug mode.
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", err)
		if !h.debug {
			resp.Error = "internal error"
			resp.Context = nil
		}
	}

	respondJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.ValidationError("invalid JSON body")
	}
	return nil
}

// currentUser returns the authenticated user; the auth middleware
// guarantees it is present on protected routes.
func currentUser(r *http.Request) *storage.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid " + name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryDate(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(cache.DateLayout, raw)
	if err != nil {
		return time.Time{}, apperrors.ValidationError(name + " must be formatted YYYY-MM-DD")
	}
	return parsed, nil
}
