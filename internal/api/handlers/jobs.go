package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/scheduler"
)

// JobRunner lists and triggers scheduled jobs
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(ctx context.Context, jobName string) (scheduler.JobResult, error)
}

// JobsHandler exposes the scheduler
type JobsHandler struct {
	scheduler JobRunner
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(s JobRunner) *JobsHandler {
	return &JobsHandler{scheduler: s}
}

// List returns per-job statistics
// GET /api/jobs
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// Run triggers a job immediately and waits for it
// POST /api/jobs/{name}/run
func (h *JobsHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunJob(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}
