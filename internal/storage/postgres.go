package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Storage on a bounded pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// PostgresConfig controls the connection pool bounds: PoolSize connections
// are kept warm, Overflow more may be opened under load.
type PostgresConfig struct {
	URL      string
	PoolSize int
	Overflow int
}

// NewPostgres connects to PostgreSQL, verifies the connection, and applies
// schema migrations.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MinConns = int32(cfg.PoolSize)
		poolConfig.MaxConns = int32(cfg.PoolSize + cfg.Overflow)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Postgres{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			full_name VARCHAR(100) DEFAULT '',
			api_key VARCHAR(64) UNIQUE,
			is_active BOOLEAN DEFAULT TRUE,
			is_superuser BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ad_accounts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			platform VARCHAR(50) NOT NULL,
			account_id VARCHAR(100) NOT NULL,
			account_name VARCHAR(255) DEFAULT '',
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			ad_account_id BIGINT NOT NULL REFERENCES ad_accounts(id),
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			budget DOUBLE PRECISION DEFAULT 0,
			spent DOUBLE PRECISION DEFAULT 0,
			start_date TIMESTAMPTZ,
			end_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS campaign_metrics (
			id BIGSERIAL PRIMARY KEY,
			campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
			date TIMESTAMPTZ NOT NULL,
			impressions BIGINT DEFAULT 0,
			clicks BIGINT DEFAULT 0,
			conversions BIGINT DEFAULT 0,
			cost DOUBLE PRECISION DEFAULT 0,
			revenue DOUBLE PRECISION DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS data_pipeline_jobs (
			id BIGSERIAL PRIMARY KEY,
			job_name VARCHAR(255) NOT NULL,
			dag_id VARCHAR(255) NOT NULL,
			run_id VARCHAR(255),
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			error_message TEXT,
			created_by BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_user_id ON campaigns(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_campaign_metrics_campaign_date ON campaign_metrics(campaign_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_created_by ON data_pipeline_jobs(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_status ON data_pipeline_jobs(status)`,
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// User operations

func (s *Postgres) CreateUser(ctx context.Context, user *User) error {
	query := `INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		user.Email, user.HashedPassword, user.FullName, user.IsActive, user.IsSuperuser,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, hashed_password, full_name, api_key, is_active, is_superuser, created_at, updated_at
		 FROM users WHERE id = $1`, id))
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, hashed_password, full_name, api_key, is_active, is_superuser, created_at, updated_at
		 FROM users WHERE email = $1`, email))
}

func (s *Postgres) scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.FullName,
		&user.APIKey, &user.IsActive, &user.IsSuperuser, &user.CreatedAt, &user.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Postgres) GetUserByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, hashed_password, full_name, api_key, is_active, is_superuser, created_at, updated_at
		 FROM users WHERE api_key = $1`, apiKey))
}

func (s *Postgres) ListUsers(ctx context.Context, search string, offset, limit int) ([]*User, error) {
	query := `SELECT id, email, hashed_password, full_name, api_key, is_active, is_superuser, created_at, updated_at
			  FROM users
			  WHERE ($1 = '' OR email ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')
			  ORDER BY id
			  OFFSET $2 LIMIT $3`

	rows, err := s.pool.Query(ctx, query, search, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user := &User{}
		err := rows.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.FullName,
			&user.APIKey, &user.IsActive, &user.IsSuperuser, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Postgres) UpdateUser(ctx context.Context, user *User) error {
	query := `UPDATE users SET email = $1, hashed_password = $2, full_name = $3,
			  api_key = $4, is_active = $5, is_superuser = $6, updated_at = NOW()
			  WHERE id = $7`

	if _, err := s.pool.Exec(ctx, query,
		user.Email, user.HashedPassword, user.FullName, user.APIKey, user.IsActive, user.IsSuperuser, user.ID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *Postgres) CountUsers(ctx context.Context, activeOnly bool) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE $1 = FALSE OR is_active`, activeOnly).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Ad account operations

func (s *Postgres) CreateAdAccount(ctx context.Context, account *AdAccount) error {
	query := `INSERT INTO ad_accounts (user_id, platform, account_id, account_name, is_active)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		account.UserID, account.Platform, account.AccountID, account.AccountName, account.IsActive,
	).Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ad account: %w", err)
	}
	return nil
}

func (s *Postgres) GetAdAccount(ctx context.Context, id int64) (*AdAccount, error) {
	account := &AdAccount{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, platform, account_id, account_name, is_active, created_at
		 FROM ad_accounts WHERE id = $1`, id,
	).Scan(&account.ID, &account.UserID, &account.Platform, &account.AccountID,
		&account.AccountName, &account.IsActive, &account.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad account: %w", err)
	}
	return account, nil
}

func (s *Postgres) ListAdAccounts(ctx context.Context, userID int64) ([]*AdAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, platform, account_id, account_name, is_active, created_at
		 FROM ad_accounts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*AdAccount
	for rows.Next() {
		account := &AdAccount{}
		err := rows.Scan(&account.ID, &account.UserID, &account.Platform, &account.AccountID,
			&account.AccountName, &account.IsActive, &account.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Postgres) CountAdAccounts(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ad_accounts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ad accounts: %w", err)
	}
	return count, nil
}

// Campaign operations

func (s *Postgres) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	query := `INSERT INTO campaigns (user_id, ad_account_id, name, status, budget, spent, start_date, end_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		campaign.UserID, campaign.AdAccountID, campaign.Name, campaign.Status,
		campaign.Budget, campaign.Spent, campaign.StartDate, campaign.EndDate,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (s *Postgres) GetCampaign(ctx context.Context, id, userID int64) (*Campaign, error) {
	campaign := &Campaign{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, ad_account_id, name, status, budget, spent, start_date, end_date, created_at, updated_at
		 FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(&campaign.ID, &campaign.UserID, &campaign.AdAccountID, &campaign.Name, &campaign.Status,
		&campaign.Budget, &campaign.Spent, &campaign.StartDate, &campaign.EndDate,
		&campaign.CreatedAt, &campaign.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

func (s *Postgres) ListCampaigns(ctx context.Context, userID int64, status *CampaignStatus, offset, limit int) ([]*Campaign, error) {
	query := `SELECT id, user_id, ad_account_id, name, status, budget, spent, start_date, end_date, created_at, updated_at
			  FROM campaigns
			  WHERE user_id = $1 AND ($2::VARCHAR IS NULL OR status = $2)
			  ORDER BY id
			  OFFSET $3 LIMIT $4`

	rows, err := s.pool.Query(ctx, query, userID, status, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*Campaign
	for rows.Next() {
		campaign := &Campaign{}
		err := rows.Scan(&campaign.ID, &campaign.UserID, &campaign.AdAccountID, &campaign.Name,
			&campaign.Status, &campaign.Budget, &campaign.Spent, &campaign.StartDate,
			&campaign.EndDate, &campaign.CreatedAt, &campaign.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

func (s *Postgres) UpdateCampaign(ctx context.Context, campaign *Campaign) error {
	query := `UPDATE campaigns SET name = $1, status = $2, budget = $3, spent = $4,
			  start_date = $5, end_date = $6, updated_at = NOW()
			  WHERE id = $7 AND user_id = $8
			  RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query,
		campaign.Name, campaign.Status, campaign.Budget, campaign.Spent,
		campaign.StartDate, campaign.EndDate, campaign.ID, campaign.UserID,
	).Scan(&campaign.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteCampaign(ctx context.Context, id, userID int64) (bool, error) {
	// metrics rows reference the campaign, remove them in the same transaction
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM campaign_metrics WHERE campaign_id IN (SELECT id FROM campaigns WHERE id = $1 AND user_id = $2)`,
		id, userID); err != nil {
		return false, fmt.Errorf("failed to delete campaign metrics: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete campaign: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) CountCampaigns(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}
	return count, nil
}

// Metrics operations

func (s *Postgres) CreateMetrics(ctx context.Context, metrics *CampaignMetrics) error {
	query := `INSERT INTO campaign_metrics (campaign_id, date, impressions, clicks, conversions, cost, revenue)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		metrics.CampaignID, metrics.Date, metrics.Impressions, metrics.Clicks,
		metrics.Conversions, metrics.Cost, metrics.Revenue,
	).Scan(&metrics.ID)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	return nil
}

func (s *Postgres) ListMetrics(ctx context.Context, campaignID int64, start, end time.Time) ([]*CampaignMetrics, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, date, impressions, clicks, conversions, cost, revenue
		 FROM campaign_metrics
		 WHERE campaign_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date`, campaignID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer rows.Close()

	var result []*CampaignMetrics
	for rows.Next() {
		m := &CampaignMetrics{}
		err := rows.Scan(&m.ID, &m.CampaignID, &m.Date, &m.Impressions, &m.Clicks,
			&m.Conversions, &m.Cost, &m.Revenue)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metrics: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Pipeline job operations

func (s *Postgres) CreatePipelineJob(ctx context.Context, job *PipelineJob) error {
	query := `INSERT INTO data_pipeline_jobs (job_name, dag_id, status, created_by)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		job.JobName, job.DagID, job.Status, job.CreatedBy,
	).Scan(&job.ID, &job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create pipeline job: %w", err)
	}
	return nil
}

func (s *Postgres) GetPipelineJob(ctx context.Context, id, ownerID int64) (*PipelineJob, error) {
	job := &PipelineJob{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_name, dag_id, run_id, status, started_at, completed_at, error_message, created_by, created_at
		 FROM data_pipeline_jobs WHERE id = $1 AND created_by = $2`, id, ownerID,
	).Scan(&job.ID, &job.JobName, &job.DagID, &job.RunID, &job.Status,
		&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &job.CreatedBy, &job.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline job: %w", err)
	}
	return job, nil
}

func (s *Postgres) ListPipelineJobs(ctx context.Context, ownerID int64, offset, limit int) ([]*PipelineJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_name, dag_id, run_id, status, started_at, completed_at, error_message, created_by, created_at
		 FROM data_pipeline_jobs WHERE created_by = $1
		 ORDER BY id DESC
		 OFFSET $2 LIMIT $3`, ownerID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline jobs: %w", err)
	}
	defer rows.Close()

	return scanPipelineJobs(rows)
}

func (s *Postgres) ListPipelineJobsByStatus(ctx context.Context, status string, limit int) ([]*PipelineJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, job_name, dag_id, run_id, status, started_at, completed_at, error_message, created_by, created_at
		 FROM data_pipeline_jobs WHERE status = $1
		 ORDER BY id
		 LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline jobs by status: %w", err)
	}
	defer rows.Close()

	return scanPipelineJobs(rows)
}

func scanPipelineJobs(rows pgx.Rows) ([]*PipelineJob, error) {
	var jobs []*PipelineJob
	for rows.Next() {
		job := &PipelineJob{}
		err := rows.Scan(&job.ID, &job.JobName, &job.DagID, &job.RunID, &job.Status,
			&job.StartedAt, &job.CompletedAt, &job.ErrorMessage, &job.CreatedBy, &job.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Postgres) UpdatePipelineJob(ctx context.Context, job *PipelineJob) error {
	query := `UPDATE data_pipeline_jobs SET run_id = $1, status = $2, started_at = $3,
			  completed_at = $4, error_message = $5
			  WHERE id = $6`

	if _, err := s.pool.Exec(ctx, query,
		job.RunID, job.Status, job.StartedAt, job.CompletedAt, job.ErrorMessage, job.ID); err != nil {
		return fmt.Errorf("failed to update pipeline job: %w", err)
	}
	return nil
}
