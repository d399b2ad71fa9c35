package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/services/status"
)

// statusResponse adds the server's active run ids to the reporter snapshot
type statusResponse struct {
	status.Snapshot
	ActiveRuns []string `json:"active_runs"`
}

// StatusHandler serves the auth and run progress snapshot
type StatusHandler struct {
	statusService *status.Service
	gate          *RunGate
	logger        arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler. gate may be nil.
func NewStatusHandler(statusService *status.Service, gate *RunGate, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		gate:          gate,
		logger:        logger,
	}
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := statusResponse{Snapshot: h.statusService.Snapshot(), ActiveRuns: []string{}}
	if h.gate != nil {
		resp.ActiveRuns = h.gate.Active()
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, resp)
}
