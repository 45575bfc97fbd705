package handlers

import (
	"net/http"

	apperrors "adops-backend/internal/common/errors"
	"adops-backend/internal/common/logging"
	"adops-backend/internal/pipeline"
	"adops-backend/internal/storage"
)

// Pipeline job handlers

type createJobRequest struct {
	JobName string `json:"job_name"`
	DagID   string `json:"dag_id"`
}

type triggerRequest struct {
	Conf map[string]interface{} `json:"conf"`
}

// ListPipelineJobs returns the caller's pipeline jobs
// @Summary List pipeline jobs
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param offset query int false "Page offset"
// @Param limit query int false "Page size"
// @Success 200 {array} storage.PipelineJob
// @Router /api/pipelines [get]
func (h *Handlers) ListPipelineJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.pipelines.List(r.Context(), currentUser(r).ID,
		queryInt(r, "offset", 0), queryInt(r, "limit", 50))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*storage.PipelineJob{}
	}
	respondJSON(w, http.StatusOK, jobs)
}

// CreatePipelineJob records a new pending job
// @Summary Create a pipeline job
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body createJobRequest true "Job name and DAG id"
// @Success 201 {object} storage.PipelineJob
// @Failure 400 {object} errorResponse "Validation failure"
// @Router /api/pipelines [post]
func (h *Handlers) CreatePipelineJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	job, err := h.pipelines.Create(r.Context(), currentUser(r).ID, req.JobName, req.DagID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, job)
}

// GetPipelineJob returns one pipeline job
// @Summary Get a pipeline job
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} storage.PipelineJob
// @Failure 404 {object} errorResponse "Job not found"
// @Router /api/pipelines/{id} [get]
func (h *Handlers) GetPipelineJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	job, err := h.pipelines.Get(r.Context(), id, currentUser(r).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// TriggerPipelineJob asks the orchestrator to start the job's DAG
// @Summary Trigger a pipeline job
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Param body body triggerRequest false "DAG run configuration"
// @Success 200 {object} storage.PipelineJob "Running, or failed when the orchestrator rejected the trigger"
// @Failure 409 {object} errorResponse "Job already running"
// @Router /api/pipelines/{id}/trigger [post]
func (h *Handlers) TriggerPipelineJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req triggerRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}

	job, err := h.pipelines.Trigger(r.Context(), id, currentUser(r).ID, req.Conf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

type batchTriggerRequest struct {
	JobIDs []int64                `json:"job_ids"`
	Conf   map[string]interface{} `json:"conf"`
}

type batchTriggerResult struct {
	Triggered []int64          `json:"triggered"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

// BatchTriggerPipelineJobs triggers several jobs, reporting per-job outcomes
// @Summary Trigger several pipeline jobs
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body batchTriggerRequest true "Job ids and shared configuration"
// @Success 200 {object} batchTriggerResult
// @Router /api/pipelines/batch-trigger [post]
func (h *Handlers) BatchTriggerPipelineJobs(w http.ResponseWriter, r *http.Request) {
	var req batchTriggerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if len(req.JobIDs) == 0 {
		h.respondError(w, apperrors.ValidationError("job_ids is required"))
		return
	}

	result := batchTriggerResult{Failed: map[int64]string{}}
	for _, id := range req.JobIDs {
		job, err := h.pipelines.Trigger(r.Context(), id, currentUser(r).ID, req.Conf)
		if err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		if job.Status == pipeline.StatusFailed {
			msg := "trigger failed"
			if job.ErrorMessage != nil {
				msg = *job.ErrorMessage
			}
			result.Failed[id] = msg
			continue
		}
		result.Triggered = append(result.Triggered, id)
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	respondJSON(w, http.StatusOK, result)
}

// CancelPipelineJob marks a job cancelled locally
// @Summary Cancel a pipeline job
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} storage.PipelineJob
// @Failure 409 {object} errorResponse "Job is not cancellable"
// @Router /api/pipelines/{id}/cancel [post]
func (h *Handlers) CancelPipelineJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	job, err := h.pipelines.Cancel(r.Context(), id, currentUser(r).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// RefreshPipelineJob polls the orchestrator for the job's current state.
// The refresh is best effort: an unreachable orchestrator leaves the job
// at its last known status.
// @Summary Refresh a pipeline job from the orchestrator
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} storage.PipelineJob
// @Router /api/pipelines/{id}/refresh [post]
func (h *Handlers) RefreshPipelineJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondError(w, err)
		return
	}

	job, err := h.pipelines.Get(r.Context(), id, currentUser(r).ID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if err := h.pipelines.Poll(r.Context(), job); err != nil {
		h.logger.Warn("pipeline refresh failed",
			logging.Field{Key: "job_id", Value: job.ID},
			logging.Field{Key: "error", Value: err.Error()})
	}
	respondJSON(w, http.StatusOK, job)
}

// ListDAGs returns the DAGs known to the orchestrator
// @Summary List orchestrator DAGs
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Success 200 {array} orchestrator.DAG
// @Failure 502 {object} errorResponse "Orchestrator unreachable"
// @Router /api/pipelines/dags [get]
func (h *Handlers) ListDAGs(w http.ResponseWriter, r *http.Request) {
	dags, err := h.orch.ListDAGs(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dags)
}
