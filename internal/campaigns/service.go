// Package campaigns implements campaign management and metrics
// aggregation on top of the relational store and the metrics cache.
package campaigns

import (
	"context"
	"time"

	"adops-backend/internal/cache"
	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/storage"
)

const maxPageSize = 100

// Store is the slice of the repository the campaign service needs.
type Store interface {
	storage.CampaignStore
	storage.MetricsStore
	GetAdAccount(ctx context.Context, id int64) (*storage.AdAccount, error)
}

// Service owns campaign reads, writes and derived metrics. Every write
// invalidates the campaign's cached metrics before returning, so a read
// issued after a write never sees stale aggregates.
type Service struct {
	store  Store
	cache  *cache.MetricsCache
	logger logging.Logger
}

// NewService creates a campaign service.
func NewService(store Store, metricsCache *cache.MetricsCache, logger logging.Logger) *Service {
	return &Service{
		store:  store,
		cache:  metricsCache,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "campaigns"}),
	}
}

// CreateInput carries the fields a client may set when creating a campaign.
type CreateInput struct {
	AdAccountID int64                  `json:"ad_account_id"`
	Name        string                 `json:"name"`
	Status      storage.CampaignStatus `json:"status,omitempty"`
	Budget      float64                `json:"budget"`
	StartDate   *time.Time             `json:"start_date,omitempty"`
	EndDate     *time.Time             `json:"end_date,omitempty"`
}

// UpdateInput carries optional campaign updates; nil fields are unchanged.
type UpdateInput struct {
	Name      *string                 `json:"name,omitempty"`
	Status    *storage.CampaignStatus `json:"status,omitempty"`
	Budget    *float64                `json:"budget,omitempty"`
	StartDate *time.Time              `json:"start_date,omitempty"`
	EndDate   *time.Time              `json:"end_date,omitempty"`
}

// Get returns one of the user's campaigns.
func (s *Service) Get(ctx context.Context, id, userID int64) (*storage.Campaign, error) {
	campaign, err := s.store.GetCampaign(ctx, id, userID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load campaign", err)
	}
	if campaign == nil {
		return nil, apperrors.NotFoundError("campaign")
	}
	return campaign, nil
}

// List returns a page of the user's campaigns, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID int64, status *storage.CampaignStatus, offset, limit int) ([]*storage.Campaign, error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.ValidationError("invalid campaign status").
			WithContext("status", string(*status))
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	campaigns, err := s.store.ListCampaigns(ctx, userID, status, offset, limit)
	if err != nil {
		return nil, apperrors.InternalError("failed to list campaigns", err)
	}
	return campaigns, nil
}

// Create validates input, checks the ad account belongs to the user, and
// stores a new campaign. Status defaults to draft.
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*storage.Campaign, error) {
	if input.Name == "" {
		return nil, apperrors.ValidationError("name is required")
	}
	if input.Budget < 0 {
		return nil, apperrors.ValidationError("budget must not be negative")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, apperrors.ValidationError("end_date must not precede start_date")
	}

	status := input.Status
	if status == "" {
		status = storage.CampaignDraft
	}
	if !status.Valid() {
		return nil, apperrors.ValidationError("invalid campaign status").
			WithContext("status", string(status))
	}

	account, err := s.store.GetAdAccount(ctx, input.AdAccountID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load ad account", err)
	}
	if account == nil || account.UserID != userID {
		return nil, apperrors.NotFoundError("ad account")
	}
	if !account.IsActive {
		return nil, apperrors.ValidationError("ad account is inactive")
	}

	campaign := &storage.Campaign{
		UserID:      userID,
		AdAccountID: input.AdAccountID,
		Name:        input.Name,
		Status:      status,
		Budget:      input.Budget,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.store.CreateCampaign(ctx, campaign); err != nil {
		return nil, apperrors.InternalError("failed to create campaign", err)
	}

	s.logger.Info("campaign created",
		logging.Field{Key: "campaign_id", Value: campaign.ID},
		logging.Field{Key: "user_id", Value: userID})
	return campaign, nil
}

// Update applies a partial update and invalidates the campaign's cached
// metrics before returning.
func (s *Service) Update(ctx context.Context, id, userID int64, input UpdateInput) (*storage.Campaign, error) {
	campaign, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apperrors.ValidationError("name must not be empty")
		}
		campaign.Name = *input.Name
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, apperrors.ValidationError("invalid campaign status").
				WithContext("status", string(*input.Status))
		}
		campaign.Status = *input.Status
	}
	if input.Budget != nil {
		if *input.Budget < 0 {
			return nil, apperrors.ValidationError("budget must not be negative")
		}
		campaign.Budget = *input.Budget
	}
	if input.StartDate != nil {
		campaign.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		campaign.EndDate = input.EndDate
	}
	if campaign.StartDate != nil && campaign.EndDate != nil && campaign.EndDate.Before(*campaign.StartDate) {
		return nil, apperrors.ValidationError("end_date must not precede start_date")
	}

	if err := s.store.UpdateCampaign(ctx, campaign); err != nil {
		return nil, apperrors.InternalError("failed to update campaign", err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete removes a campaign and its metrics, then invalidates the cache.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	deleted, err := s.store.DeleteCampaign(ctx, id, userID)
	if err != nil {
		return apperrors.InternalError("failed to delete campaign", err)
	}
	if !deleted {
		return apperrors.NotFoundError("campaign")
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return err
	}

	s.logger.Info("campaign deleted",
		logging.Field{Key: "campaign_id", Value: id},
		logging.Field{Key: "user_id", Value: userID})
	return nil
}

// BulkUpdate applies a status change and/or a budget adjustment to
// several campaigns at once. The adjustment is a delta added to each
// campaign's budget, which may be negative but never drives a budget
// below zero. It returns the ids actually updated; ids the user does
// not own are skipped, not errors.
func (s *Service) BulkUpdate(ctx context.Context, userID int64, ids []int64, status *storage.CampaignStatus, budgetAdjustment *float64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, apperrors.ValidationError("campaign_ids is required")
	}
	if status == nil && budgetAdjustment == nil {
		return nil, apperrors.ValidationError("status or budget_adjustment is required")
	}
	if status != nil && !status.Valid() {
		return nil, apperrors.ValidationError("invalid campaign status").
			WithContext("status", string(*status))
	}

	updated := make([]int64, 0, len(ids))
	for _, id := range ids {
		campaign, err := s.store.GetCampaign(ctx, id, userID)
		if err != nil {
			return updated, apperrors.InternalError("failed to load campaign", err)
		}
		if campaign == nil {
			continue
		}

		if status != nil {
			campaign.Status = *status
		}
		if budgetAdjustment != nil {
			campaign.Budget += *budgetAdjustment
			if campaign.Budget < 0 {
				campaign.Budget = 0
			}
		}
		if err := s.store.UpdateCampaign(ctx, campaign); err != nil {
			return updated, apperrors.InternalError("failed to update campaign", err)
		}
		if err := s.cache.Invalidate(ctx, id); err != nil {
			return updated, err
		}
		updated = append(updated, id)
	}
	return updated, nil
}

// AddSpend increments a campaign's spent amount, e.g. after a metrics
// sync, and invalidates its cached aggregates.
func (s *Service) AddSpend(ctx context.Context, id, userID int64, amount float64) (*storage.Campaign, error) {
	if amount < 0 {
		return nil, apperrors.ValidationError("amount must not be negative")
	}

	campaign, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	campaign.Spent += amount
	if err := s.store.UpdateCampaign(ctx, campaign); err != nil {
		return nil, apperrors.InternalError("failed to update campaign", err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return nil, err
	}
	return campaign, nil
}

// RecordMetrics stores one day of raw metrics for a campaign and drops
// the campaign's cached aggregates.
func (s *Service) RecordMetrics(ctx context.Context, userID int64, metrics *storage.CampaignMetrics) error {
	if _, err := s.Get(ctx, metrics.CampaignID, userID); err != nil {
		return err
	}
	if err := s.store.CreateMetrics(ctx, metrics); err != nil {
		return apperrors.InternalError("failed to store metrics", err)
	}
	return s.cache.Invalidate(ctx, metrics.CampaignID)
}

// Aggregate returns summed and derived metrics for a campaign over a date
// range, served from cache when possible.
func (s *Service) Aggregate(ctx context.Context, campaignID, userID int64, start, end time.Time) (*storage.MetricsAggregation, error) {
	if end.Before(start) {
		return nil, apperrors.ValidationError("end_date must not precede start_date")
	}
	if _, err := s.Get(ctx, campaignID, userID); err != nil {
		return nil, err
	}

	if agg, found := s.cache.GetAggregation(ctx, campaignID, start, end); found {
		return agg, nil
	}

	rows, err := s.store.ListMetrics(ctx, campaignID, start, end)
	if err != nil {
		return nil, apperrors.InternalError("failed to load metrics", err)
	}

	agg := aggregate(rows)
	s.cache.PutAggregation(ctx, campaignID, start, end, agg)
	return agg, nil
}

// aggregate sums raw daily rows and derives CTR and ROAS. An empty range
// yields the zero aggregation rather than an error.
func aggregate(rows []*storage.CampaignMetrics) *storage.MetricsAggregation {
	agg := &storage.MetricsAggregation{}
	for _, row := range rows {
		agg.TotalImpressions += row.Impressions
		agg.TotalClicks += row.Clicks
		agg.TotalConversions += row.Conversions
		agg.TotalCost += row.Cost
		agg.TotalRevenue += row.Revenue
	}

	if agg.TotalImpressions > 0 {
		agg.AvgCTR = float64(agg.TotalClicks) / float64(agg.TotalImpressions) * 100
	}
	if agg.TotalCost > 0 {
		agg.AvgROAS = agg.TotalRevenue / agg.TotalCost
	}
	return agg
}

// ExportRow is one line of a campaign performance export.
type ExportRow struct {
	Campaign    *storage.Campaign           `json:"campaign"`
	Aggregation *storage.MetricsAggregation `json:"metrics"`
}

// Export assembles campaign rows with their aggregated metrics for a date
// range, for download or reporting.
func (s *Service) Export(ctx context.Context, userID int64, status *storage.CampaignStatus, start, end time.Time) ([]ExportRow, error) {
	campaigns, err := s.List(ctx, userID, status, 0, maxPageSize)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportRow, 0, len(campaigns))
	for _, campaign := range campaigns {
		agg, err := s.Aggregate(ctx, campaign.ID, userID, start, end)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ExportRow{Campaign: campaign, Aggregation: agg})
	}
	return rows, nil
}
