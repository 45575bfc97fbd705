// Package storage defines the repository contract over the relational
// datastore and its PostgreSQL implementation. Lookup methods return
// (nil, nil) for absent rows; translating absence into a client-visible
// not-found error is the caller's job.
package storage

import (
	"context"
	"time"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*User, error)
	ListUsers(ctx context.Context, search string, offset, limit int) ([]*User, error)
	UpdateUser(ctx context.Context, user *User) error
	CountUsers(ctx context.Context, activeOnly bool) (int64, error)
}

type AdAccountStore interface {
	CreateAdAccount(ctx context.Context, account *AdAccount) error
	GetAdAccount(ctx context.Context, id int64) (*AdAccount, error)
	ListAdAccounts(ctx context.Context, userID int64) ([]*AdAccount, error)
	CountAdAccounts(ctx context.Context) (int64, error)
}

type CampaignStore interface {
	CreateCampaign(ctx context.Context, campaign *Campaign) error
	// GetCampaign scopes by owner: someone else's campaign reads as absent.
	GetCampaign(ctx context.Context, id, userID int64) (*Campaign, error)
	ListCampaigns(ctx context.Context, userID int64, status *CampaignStatus, offset, limit int) ([]*Campaign, error)
	UpdateCampaign(ctx context.Context, campaign *Campaign) error
	DeleteCampaign(ctx context.Context, id, userID int64) (bool, error)
	CountCampaigns(ctx context.Context) (int64, error)
}

type MetricsStore interface {
	CreateMetrics(ctx context.Context, metrics *CampaignMetrics) error
	ListMetrics(ctx context.Context, campaignID int64, start, end time.Time) ([]*CampaignMetrics, error)
}

type PipelineJobStore interface {
	CreatePipelineJob(ctx context.Context, job *PipelineJob) error
	// GetPipelineJob scopes by owner: a foreign job reads as absent.
	GetPipelineJob(ctx context.Context, id, ownerID int64) (*PipelineJob, error)
	ListPipelineJobs(ctx context.Context, ownerID int64, offset, limit int) ([]*PipelineJob, error)
	ListPipelineJobsByStatus(ctx context.Context, status string, limit int) ([]*PipelineJob, error)
	UpdatePipelineJob(ctx context.Context, job *PipelineJob) error
}

// Storage aggregates every repository the services need
type Storage interface {
	UserStore
	AdAccountStore
	CampaignStore
	MetricsStore
	PipelineJobStore

	Close()
}
