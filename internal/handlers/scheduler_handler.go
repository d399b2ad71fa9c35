package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/services/scheduler"
)

// SchedulerHandler exposes the background maintenance jobs
type SchedulerHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(schedulerService *scheduler.Service, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: schedulerService,
		logger:    logger,
	}
}

// ListJobsHandler handles GET /api/scheduler/jobs
func (h *SchedulerHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobs := h.scheduler.ListJobs()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// RunJobHandler handles POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) RunJobHandler(w http.ResponseWriter, r *http.Request, name string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if _, err := h.scheduler.GetJobStatus(name); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.scheduler.RunJobNow(name); err != nil {
		h.logger.Warn().Err(err).Str("job", name).Msg("Manual job run failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status, _ := h.scheduler.GetJobStatus(name)
	WriteJSON(w, http.StatusOK, status)
}
