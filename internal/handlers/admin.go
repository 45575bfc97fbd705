package handlers

import (
	"net/http"
	"strings"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/storage"
)

// Admin handlers, superuser only

type systemStats struct {
	Users       int64 `json:"users"`
	ActiveUsers int64 `json:"active_users"`
	AdAccounts  int64 `json:"ad_accounts"`
	Campaigns   int64 `json:"campaigns"`
}

// GetSystemStats returns system-wide entity counts
// @Summary Get system statistics
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} systemStats
// @Failure 403 {object} errorResponse "Superuser required"
// @Router /api/admin/stats [get]
func (h *Handlers) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := systemStats{}

	var err error
	if stats.Users, err = h.storage.CountUsers(ctx, false); err != nil {
		h.respondError(w, err)
		return
	}
	if stats.ActiveUsers, err = h.storage.CountUsers(ctx, true); err != nil {
		h.respondError(w, err)
		return
	}
	if stats.AdAccounts, err = h.storage.CountAdAccounts(ctx); err != nil {
		h.respondError(w, err)
		return
	}
	if stats.Campaigns, err = h.storage.CountCampaigns(ctx); err != nil {
		h.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ListUsers returns user accounts with optional search
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Match against email or name"
// @Param offset query int false "Page offset"
// @Param limit query int false "Page size"
// @Success 200 {array} storage.User
// @Failure 403 {object} errorResponse "Superuser required"
// @Router /api/admin/users [get]
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.storage.ListUsers(r.Context(), r.URL.Query().Get("search"),
		queryInt(r, "offset", 0), queryInt(r, "limit", 50))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if users == nil {
		users = []*storage.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// GetUser returns one user account
// @Summary Get a user
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} storage.User
// @Failure 404 {object} errorResponse "User not found"
// @Router /api/admin/users/{id} [get]
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.storage.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if user == nil {
		h.respondError(w, apperrors.NotFoundError("user"))
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetUserActive activates or deactivates a user account
// @Summary Activate or deactivate a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body setActiveRequest true "Target state"
// @Success 200 {object} storage.User
// @Failure 404 {object} errorResponse "User not found"
// @Router /api/admin/users/{id}/active [put]
func (h *Handlers) SetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	user, err := h.storage.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if user == nil {
		h.respondError(w, apperrors.NotFoundError("user"))
		return
	}

	user.IsActive = req.IsActive
	if err := h.storage.UpdateUser(r.Context(), user); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type clearCacheRequest struct {
	Prefix string `json:"prefix"`
}

// The only prefixes an operator may flush wholesale. Locks and rate
// limit counters are deliberately not clearable.
var clearablePrefixes = []string{"metrics:", "sync_status:"}

// ClearCache deletes cached entries under a prefix
// @Summary Clear cache entries by prefix
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body clearCacheRequest true "Key prefix"
// @Success 200 {object} map[string]int
// @Failure 400 {object} errorResponse "Prefix not clearable"
// @Router /api/admin/cache/clear [post]
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req clearCacheRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	allowed := false
	for _, prefix := range clearablePrefixes {
		if strings.HasPrefix(req.Prefix, prefix) {
			allowed = true
			break
		}
	}
	if !allowed {
		h.respondError(w, apperrors.ValidationError("prefix is not clearable").
			WithContext("prefix", req.Prefix))
		return
	}

	deleted, err := h.redis.DeleteByPattern(r.Context(), req.Prefix)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Root reports the service name and version
// @Summary Service info
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router / [get]
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"service": "adops-backend",
		"version": Version,
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck reports service health
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if err := h.redis.Health(); err != nil {
		resp.Status = "degraded"
		resp.Checks["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["redis"] = "ok"
	}

	respondJSON(w, status, resp)
}
