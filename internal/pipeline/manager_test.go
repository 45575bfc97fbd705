package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/orchestrator"
	"adops-backend/internal/storage"
)

type fakeStore struct {
	jobs   map[int64]*storage.PipelineJob
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[int64]*storage.PipelineJob{}, nextID: 1}
}

func (s *fakeStore) CreatePipelineJob(_ context.Context, job *storage.PipelineJob) error {
	job.ID = s.nextID
	s.nextID++
	job.CreatedAt = time.Now().UTC()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeStore) GetPipelineJob(_ context.Context, id, ownerID int64) (*storage.PipelineJob, error) {
	job, ok := s.jobs[id]
	if !ok || job.CreatedBy != ownerID {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *fakeStore) ListPipelineJobs(_ context.Context, ownerID int64, _, _ int) ([]*storage.PipelineJob, error) {
	var out []*storage.PipelineJob
	for _, job := range s.jobs {
		if job.CreatedBy == ownerID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPipelineJobsByStatus(_ context.Context, status string, _ int) ([]*storage.PipelineJob, error) {
	var out []*storage.PipelineJob
	for _, job := range s.jobs {
		if job.Status == status {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdatePipelineJob(_ context.Context, job *storage.PipelineJob) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

type fakeOrchestrator struct {
	triggerRun *orchestrator.Run
	triggerErr error
	statusRun  *orchestrator.Run
	statusErr  error
	polls      int
}

func (o *fakeOrchestrator) TriggerRun(_ context.Context, _ string, _ map[string]interface{}) (*orchestrator.Run, error) {
	return o.triggerRun, o.triggerErr
}

func (o *fakeOrchestrator) GetRunStatus(_ context.Context, _, _ string) (*orchestrator.Run, error) {
	o.polls++
	return o.statusRun, o.statusErr
}

func newManager(store Store, orch Orchestrator) *Manager {
	return NewManager(store, orch, logging.NewDefaultLogger())
}

func TestManager_Create(t *testing.T) {
	store := newFakeStore()
	mgr := newManager(store, &fakeOrchestrator{})

	job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.NotZero(t, job.ID)

	t.Run("missing name", func(t *testing.T) {
		_, err := mgr.Create(context.Background(), 1, "", "campaign_sync")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("missing dag", func(t *testing.T) {
		_, err := mgr.Create(context.Background(), 1, "nightly sync", "")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestManager_Get_OwnerScoped(t *testing.T) {
	store := newFakeStore()
	mgr := newManager(store, &fakeOrchestrator{})

	job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
	require.NoError(t, err)

	_, err = mgr.Get(context.Background(), job.ID, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestManager_Trigger(t *testing.T) {
	store := newFakeStore()
	orch := &fakeOrchestrator{
		triggerRun: &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateQueued},
	}
	mgr := newManager(store, orch)

	job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
	require.NoError(t, err)

	job, err = mgr.Trigger(context.Background(), job.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	require.NotNil(t, job.RunID)
	assert.Equal(t, "run-1", *job.RunID)
	assert.NotNil(t, job.StartedAt)

	t.Run("running job cannot be re-triggered", func(t *testing.T) {
		_, err := mgr.Trigger(context.Background(), job.ID, 1, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConflict))
	})
}

func TestManager_Trigger_OrchestratorFailure(t *testing.T) {
	store := newFakeStore()
	orch := &fakeOrchestrator{triggerErr: apperrors.UpstreamError("scheduler down", nil)}
	mgr := newManager(store, orch)

	job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
	require.NoError(t, err)

	// the rejection is absorbed into the job record, not returned
	job, err = mgr.Trigger(context.Background(), job.ID, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "scheduler down")
	assert.Nil(t, job.RunID)

	stored, err := mgr.Get(context.Background(), job.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func triggeredJob(t *testing.T, mgr *Manager, orch *fakeOrchestrator) *storage.PipelineJob {
	t.Helper()
	orch.triggerRun = &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateQueued}
	job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
	require.NoError(t, err)
	job, err = mgr.Trigger(context.Background(), job.ID, 1, nil)
	require.NoError(t, err)
	return job
}

func TestManager_Poll(t *testing.T) {
	t.Run("success completes the job", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)
		job := triggeredJob(t, mgr, orch)

		orch.statusRun = &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateSuccess}
		require.NoError(t, mgr.Poll(context.Background(), job))
		assert.Equal(t, StatusCompleted, job.Status)
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("failed marks the job failed", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)
		job := triggeredJob(t, mgr, orch)

		orch.statusRun = &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateFailed}
		require.NoError(t, mgr.Poll(context.Background(), job))
		assert.Equal(t, StatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	})

	t.Run("running leaves the job untouched", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)
		job := triggeredJob(t, mgr, orch)

		orch.statusRun = &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateRunning}
		require.NoError(t, mgr.Poll(context.Background(), job))
		assert.Equal(t, StatusRunning, job.Status)
		assert.Nil(t, job.CompletedAt)
	})

	t.Run("unknown state leaves the job untouched", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)
		job := triggeredJob(t, mgr, orch)

		orch.statusRun = &orchestrator.Run{DagRunID: "run-1", State: "up_for_retry"}
		require.NoError(t, mgr.Poll(context.Background(), job))
		assert.Equal(t, StatusRunning, job.Status)
	})

	t.Run("poll error does not change the job", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)
		job := triggeredJob(t, mgr, orch)

		orch.statusErr = errors.New("connection refused")
		err := mgr.Poll(context.Background(), job)
		require.Error(t, err)
		assert.Equal(t, StatusRunning, job.Status)
	})

	t.Run("non-running job is skipped", func(t *testing.T) {
		store := newFakeStore()
		orch := &fakeOrchestrator{}
		mgr := newManager(store, orch)

		job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
		require.NoError(t, err)
		require.NoError(t, mgr.Poll(context.Background(), job))
		assert.Zero(t, orch.polls)
	})
}

func TestManager_PollRunning(t *testing.T) {
	store := newFakeStore()
	orch := &fakeOrchestrator{}
	mgr := newManager(store, orch)

	first := triggeredJob(t, mgr, orch)
	second := triggeredJob(t, mgr, orch)
	_ = second

	orch.statusErr = errors.New("timeout")
	failed, err := mgr.PollRunning(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, failed)

	// failed polls leave both jobs running
	stored, err := mgr.Get(context.Background(), first.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, stored.Status)
}

func TestManager_Cancel(t *testing.T) {
	store := newFakeStore()
	orch := &fakeOrchestrator{}
	mgr := newManager(store, orch)

	t.Run("pending job", func(t *testing.T) {
		job, err := mgr.Create(context.Background(), 1, "nightly sync", "campaign_sync")
		require.NoError(t, err)

		job, err = mgr.Cancel(context.Background(), job.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, job.Status)
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("running job", func(t *testing.T) {
		job := triggeredJob(t, mgr, orch)
		job, err := mgr.Cancel(context.Background(), job.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, job.Status)
	})

	t.Run("completed job is cancelled too", func(t *testing.T) {
		job := triggeredJob(t, mgr, orch)
		orch.statusRun = &orchestrator.Run{DagRunID: "run-1", State: orchestrator.StateSuccess}
		require.NoError(t, mgr.Poll(context.Background(), job))

		job, err := mgr.Cancel(context.Background(), job.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, job.Status)
	})
}
