// Package pipeline manages the lifecycle of data-pipeline jobs: local
// records that shadow DAG runs in the workflow orchestrator.
package pipeline

import (
	"context"
	"time"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/orchestrator"
	"adops-backend/internal/storage"
)

// Job statuses. Jobs start pending, move to running when the orchestrator
// accepts the trigger, and end in exactly one of completed, failed or
// cancelled.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Store is the slice of the job repository the manager needs.
type Store interface {
	CreatePipelineJob(ctx context.Context, job *storage.PipelineJob) error
	GetPipelineJob(ctx context.Context, id, ownerID int64) (*storage.PipelineJob, error)
	ListPipelineJobs(ctx context.Context, ownerID int64, offset, limit int) ([]*storage.PipelineJob, error)
	ListPipelineJobsByStatus(ctx context.Context, status string, limit int) ([]*storage.PipelineJob, error)
	UpdatePipelineJob(ctx context.Context, job *storage.PipelineJob) error
}

// Orchestrator is the slice of the orchestrator client the manager needs.
type Orchestrator interface {
	TriggerRun(ctx context.Context, dagID string, conf map[string]interface{}) (*orchestrator.Run, error)
	GetRunStatus(ctx context.Context, dagID, runID string) (*orchestrator.Run, error)
}

// Manager owns pipeline job records and drives their state transitions.
type Manager struct {
	store  Store
	orch   Orchestrator
	logger logging.Logger
	now    func() time.Time
}

// NewManager creates a pipeline job manager.
func NewManager(store Store, orch Orchestrator, logger logging.Logger) *Manager {
	return &Manager{
		store:  store,
		orch:   orch,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "pipeline"}),
		now:    time.Now,
	}
}

// Create records a new pending job for the given DAG.
func (m *Manager) Create(ctx context.Context, ownerID int64, jobName, dagID string) (*storage.PipelineJob, error) {
	if jobName == "" {
		return nil, apperrors.ValidationError("job_name is required")
	}
	if dagID == "" {
		return nil, apperrors.ValidationError("dag_id is required")
	}

	job := &storage.PipelineJob{
		JobName:   jobName,
		DagID:     dagID,
		Status:    StatusPending,
		CreatedBy: ownerID,
	}
	if err := m.store.CreatePipelineJob(ctx, job); err != nil {
		return nil, apperrors.InternalError("failed to create pipeline job", err)
	}
	return job, nil
}

// Get returns one of the owner's jobs.
func (m *Manager) Get(ctx context.Context, id, ownerID int64) (*storage.PipelineJob, error) {
	job, err := m.store.GetPipelineJob(ctx, id, ownerID)
	if err != nil {
		return nil, apperrors.InternalError("failed to load pipeline job", err)
	}
	if job == nil {
		return nil, apperrors.NotFoundError("pipeline job")
	}
	return job, nil
}

// List returns a page of the owner's jobs, newest first.
func (m *Manager) List(ctx context.Context, ownerID int64, offset, limit int) ([]*storage.PipelineJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	jobs, err := m.store.ListPipelineJobs(ctx, ownerID, offset, limit)
	if err != nil {
		return nil, apperrors.InternalError("failed to list pipeline jobs", err)
	}
	return jobs, nil
}

// Trigger asks the orchestrator to start the job's DAG. A job that is
// already running cannot be re-triggered. When the orchestrator rejects
// the trigger, the job is marked failed with the error recorded and the
// failed job is returned; the rejection never reaches the caller as an
// error.
func (m *Manager) Trigger(ctx context.Context, id, ownerID int64, conf map[string]interface{}) (*storage.PipelineJob, error) {
	job, err := m.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if job.Status == StatusRunning {
		return nil, apperrors.ConflictError("pipeline job is already running").
			WithContext("job_id", job.ID)
	}

	run, triggerErr := m.orch.TriggerRun(ctx, job.DagID, conf)
	if triggerErr != nil {
		m.logger.Warn("orchestrator rejected trigger",
			logging.Field{Key: "job_id", Value: job.ID},
			logging.Field{Key: "dag_id", Value: job.DagID},
			logging.Field{Key: "error", Value: triggerErr.Error()})

		msg := triggerErr.Error()
		job.Status = StatusFailed
		job.ErrorMessage = &msg
		if err := m.store.UpdatePipelineJob(ctx, job); err != nil {
			m.logger.Error("failed to record trigger failure", err,
				logging.Field{Key: "job_id", Value: job.ID})
		}
		return job, nil
	}

	now := m.now().UTC()
	job.RunID = &run.DagRunID
	job.Status = StatusRunning
	job.StartedAt = &now
	job.ErrorMessage = nil
	if err := m.store.UpdatePipelineJob(ctx, job); err != nil {
		return nil, apperrors.InternalError("failed to update pipeline job", err)
	}

	m.logger.Info("pipeline job triggered",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "dag_id", Value: job.DagID},
		logging.Field{Key: "run_id", Value: run.DagRunID})
	return job, nil
}

// Poll refreshes one running job from the orchestrator. A terminal state
// from the orchestrator moves the job to completed or failed; any other
// state leaves it untouched. Orchestrator errors do not change the job:
// they are logged and reported so the caller can count them.
func (m *Manager) Poll(ctx context.Context, job *storage.PipelineJob) error {
	if job.Status != StatusRunning || job.RunID == nil {
		return nil
	}

	run, err := m.orch.GetRunStatus(ctx, job.DagID, *job.RunID)
	if err != nil {
		m.logger.Warn("pipeline poll failed",
			logging.Field{Key: "job_id", Value: job.ID},
			logging.Field{Key: "run_id", Value: *job.RunID},
			logging.Field{Key: "error", Value: err.Error()})
		return err
	}

	switch run.State {
	case orchestrator.StateSuccess:
		now := m.now().UTC()
		job.Status = StatusCompleted
		job.CompletedAt = &now
	case orchestrator.StateFailed:
		now := m.now().UTC()
		msg := "dag run failed"
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.ErrorMessage = &msg
	default:
		// still queued or running, nothing to record
		return nil
	}

	if err := m.store.UpdatePipelineJob(ctx, job); err != nil {
		return apperrors.InternalError("failed to update pipeline job", err)
	}

	m.logger.Info("pipeline job finished",
		logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "status", Value: job.Status})
	return nil
}

// PollRunning polls every running job and returns how many polls failed.
func (m *Manager) PollRunning(ctx context.Context, limit int) (failed int, err error) {
	jobs, err := m.store.ListPipelineJobsByStatus(ctx, StatusRunning, limit)
	if err != nil {
		return 0, apperrors.InternalError("failed to list running jobs", err)
	}

	for _, job := range jobs {
		if err := m.Poll(ctx, job); err != nil {
			failed++
		}
	}
	return failed, nil
}

// Cancel marks an owned job cancelled regardless of its current state.
// The orchestrator run, if any, is left alone; cancellation only affects
// the local record.
func (m *Manager) Cancel(ctx context.Context, id, ownerID int64) (*storage.PipelineJob, error) {
	job, err := m.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	if err := m.store.UpdatePipelineJob(ctx, job); err != nil {
		return nil, apperrors.InternalError("failed to update pipeline job", err)
	}

	m.logger.Info("pipeline job cancelled", logging.Field{Key: "job_id", Value: job.ID})
	return job, nil
}
