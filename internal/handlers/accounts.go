package handlers

import (
	"net/http"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/storage"
)

// Ad account handlers

type createAccountRequest struct {
	Platform    string `json:"platform"`
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
}

// ListAdAccounts returns the caller's connected ad accounts
// @Summary List ad accounts
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} storage.AdAccount
// @Router /api/ad-accounts [get]
func (h *Handlers) ListAdAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.storage.ListAdAccounts(r.Context(), currentUser(r).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if accounts == nil {
		accounts = []*storage.AdAccount{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

// CreateAdAccount connects an ad account
// @Summary Connect an ad account
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body createAccountRequest true "Account details"
// @Success 201 {object} storage.AdAccount
// @Failure 400 {object} errorResponse "Validation failure"
// @Router /api/ad-accounts [post]
func (h *Handlers) CreateAdAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if !supportedPlatforms[req.Platform] {
		h.respondError(w, apperrors.ValidationError("unsupported platform").
			WithContext("platform", req.Platform))
		return
	}
	if req.AccountID == "" {
		h.respondError(w, apperrors.ValidationError("account_id is required"))
		return
	}

	account := &storage.AdAccount{
		UserID:      currentUser(r).ID,
		Platform:    req.Platform,
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
		IsActive:    true,
	}
	if err := h.storage.CreateAdAccount(r.Context(), account); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}
