package handlers

import (
	"net/http"
	"time"

	"adops-backend/internal/campaigns"
	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/storage"
)

// Campaign handlers

// ListCampaigns returns the caller's campaigns
// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param offset query int false "Page offset"
// @Param limit query int false "Page size"
// @Success 200 {array} storage.Campaign
// @Router /api/campaigns [get]
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var status *storage.CampaignStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		value := storage.CampaignStatus(raw)
		status = &value
	}

	result, err := h.campaigns.List(r.Context(), user.ID, status,
		queryInt(r, "offset", 0), queryInt(r, "limit", 50))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if result == nil {
		result = []*storage.Campaign{}
	}
	respondJSON(w, http.StatusOK, result)
}

// CreateCampaign creates a campaign
// @Summary Create a campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body campaigns.CreateInput true "Campaign fields"
// @Success 201 {object} storage.Campaign
// @Failure 400 {object} errorResponse "Validation failure"
// @Failure 404 {object} errorResponse "Ad account not found"
// @Router /api/campaigns [post]
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaigns.CreateInput
	if err := decodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}

	campaign, err := h.campaigns.Create(r.Context(), currentUser(r).ID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, campaign)
}

// GetCampaign returns one campaign
// @Summary Get a campaign
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 200 {object} storage.Campaign
// @Failure 404 {object} errorResponse "Campaign not found"
// @Router /api/campaigns/{id} [get]
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	campaign, err := h.campaigns.Get(r.Context(), id, currentUser(r).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

// UpdateCampaign applies a partial update
// @Summary Update a campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param body body campaigns.UpdateInput true "Fields to change"
// @Success 200 {object} storage.Campaign
// @Failure 404 {object} errorResponse "Campaign not found"
// @Router /api/campaigns/{id} [patch]
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var input campaigns.UpdateInput
	if err := decodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}

	campaign, err := h.campaigns.Update(r.Context(), id, currentUser(r).ID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

// DeleteCampaign removes a campaign and its metrics
// @Summary Delete a campaign
// @Tags campaigns
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Success 204 "Deleted"
// @Failure 404 {object} errorResponse "Campaign not found"
// @Router /api/campaigns/{id} [delete]
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.campaigns.Delete(r.Context(), id, currentUser(r).ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkUpdateRequest struct {
	CampaignIDs      []int64                 `json:"campaign_ids"`
	Status           *storage.CampaignStatus `json:"status,omitempty"`
	BudgetAdjustment *float64                `json:"budget_adjustment,omitempty"`
}

// BulkUpdateCampaigns applies a status change or budget delta to several campaigns
// @Summary Bulk update campaigns
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body bulkUpdateRequest true "Campaign ids and changes"
// @Success 200 {object} map[string]interface{}
// @Router /api/campaigns/bulk-update [post]
func (h *Handlers) BulkUpdateCampaigns(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	updated, err := h.campaigns.BulkUpdate(r.Context(), currentUser(r).ID, req.CampaignIDs, req.Status, req.BudgetAdjustment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"updated": updated})
}

type spendRequest struct {
	Amount float64 `json:"amount"`
}

// AddCampaignSpend increments a campaign's spent amount
// @Summary Add spend to a campaign
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param body body spendRequest true "Amount to add"
// @Success 200 {object} storage.Campaign
// @Failure 400 {object} errorResponse "Validation failure"
// @Router /api/campaigns/{id}/spend [post]
func (h *Handlers) AddCampaignSpend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req spendRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	campaign, err := h.campaigns.AddSpend(r.Context(), id, currentUser(r).ID, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, campaign)
}

func (h *Handlers) metricsRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start, err := queryDate(r, "start_date", now.AddDate(0, 0, -30))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := queryDate(r, "end_date", now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// GetCampaignMetrics returns aggregated metrics for a campaign
// @Summary Get aggregated campaign metrics
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param start_date query string false "Range start, YYYY-MM-DD (default 30 days ago)"
// @Param end_date query string false "Range end, YYYY-MM-DD (default today)"
// @Success 200 {object} storage.MetricsAggregation
// @Failure 404 {object} errorResponse "Campaign not found"
// @Router /api/campaigns/{id}/metrics [get]
func (h *Handlers) GetCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	start, end, err := h.metricsRange(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	agg, err := h.campaigns.Aggregate(r.Context(), id, currentUser(r).ID, start, end)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

// RecordCampaignMetrics stores a day of raw metrics
// @Summary Record daily campaign metrics
// @Tags campaigns
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Campaign ID"
// @Param body body storage.CampaignMetrics true "Daily figures"
// @Success 201 {object} storage.CampaignMetrics
// @Router /api/campaigns/{id}/metrics [post]
func (h *Handlers) RecordCampaignMetrics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var metrics storage.CampaignMetrics
	if err := decodeJSON(r, &metrics); err != nil {
		h.respondError(w, err)
		return
	}
	metrics.CampaignID = id
	if metrics.Date.IsZero() {
		h.respondError(w, apperrors.ValidationError("date is required"))
		return
	}

	if err := h.campaigns.RecordMetrics(r.Context(), currentUser(r).ID, &metrics); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, metrics)
}

// ExportCampaigns returns campaigns with aggregated metrics for reporting
// @Summary Export campaign performance
// @Tags campaigns
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param start_date query string false "Range start, YYYY-MM-DD"
// @Param end_date query string false "Range end, YYYY-MM-DD"
// @Success 200 {array} campaigns.ExportRow
// @Router /api/campaigns/export [get]
func (h *Handlers) ExportCampaigns(w http.ResponseWriter, r *http.Request) {
	var status *storage.CampaignStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		value := storage.CampaignStatus(raw)
		status = &value
	}

	start, end, err := h.metricsRange(r)
	if err != nil {
		h.respondError(w, err)
		return
	}

	rows, err := h.campaigns.Export(r.Context(), currentUser(r).ID, status, start, end)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
