package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "adops-backend/internal/common/errors"
	syncsvc "adops-backend/internal/sync"
)

// Data sync handlers

// TriggerPlatformSync starts a background sync for one platform
// @Summary Trigger a platform data sync
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param platform path string true "Platform name"
// @Param start_date query string false "Sync window start, YYYY-MM-DD"
// @Param end_date query string false "Sync window end, YYYY-MM-DD (default today)"
// @Success 202 {object} map[string]string
// @Failure 400 {object} errorResponse "Unsupported platform"
// @Router /api/sync/{platform} [post]
func (h *Handlers) TriggerPlatformSync(w http.ResponseWriter, r *http.Request) {
	platform := mux.Vars(r)["platform"]
	if !supportedPlatforms[platform] {
		h.respondError(w, apperrors.ValidationError("unsupported platform").
			WithContext("platform", platform))
		return
	}

	var dateRange *syncsvc.DateRange
	if r.URL.Query().Get("start_date") != "" {
		start, err := queryDate(r, "start_date", time.Time{})
		if err != nil {
			h.respondError(w, err)
			return
		}
		end, err := queryDate(r, "end_date", time.Now().UTC())
		if err != nil {
			h.respondError(w, err)
			return
		}
		dateRange = &syncsvc.DateRange{Start: start, End: end}
	}

	h.sync.SyncPlatformAsync(currentUser(r).ID, platform, dateRange)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":   "sync started",
		"platform": platform,
	})
}

// GetSyncStatus reports the last sync for a platform
// @Summary Get platform sync status
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param platform path string true "Platform name"
// @Success 200 {object} sync.Status
// @Router /api/sync/{platform}/status [get]
func (h *Handlers) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	platform := mux.Vars(r)["platform"]
	if !supportedPlatforms[platform] {
		h.respondError(w, apperrors.ValidationError("unsupported platform").
			WithContext("platform", platform))
		return
	}

	status, err := h.sync.SyncStatus(r.Context(), currentUser(r).ID, platform)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// SyncCampaign refreshes a single campaign's metrics synchronously
// @Summary Sync one campaign now
// @Tags sync
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} errorResponse "Sync already in progress"
// @Router /api/sync/campaigns/{id} [post]
func (h *Handlers) SyncCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	// verify ownership before doing any work
	if _, err := h.campaigns.Get(r.Context(), id, currentUser(r).ID); err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.sync.SyncCampaign(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}
