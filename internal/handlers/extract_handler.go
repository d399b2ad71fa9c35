package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/auth"
	"github.com/ternarybob/hirescout/internal/services/orchestrator"
	"github.com/ternarybob/hirescout/internal/services/records"
)

// ExtractHandler starts batch runs and serves run history
type ExtractHandler struct {
	orchestrator *orchestrator.Orchestrator
	manager      *auth.Manager
	runs         interfaces.RunStorage
	gate         *RunGate
	logger       arbor.ILogger
}

// NewExtractHandler creates a new extract handler. gate is shared with the
// auth handler.
func NewExtractHandler(orch *orchestrator.Orchestrator, manager *auth.Manager, runs interfaces.RunStorage, gate *RunGate, logger arbor.ILogger) *ExtractHandler {
	return &ExtractHandler{
		orchestrator: orch,
		manager:      manager,
		runs:         runs,
		gate:         gate,
		logger:       logger,
	}
}

type extractRequest struct {
	Records []map[string]interface{} `json:"records"`
}

type runResponse struct {
	*models.BatchRun
	SuccessRate       float64         `json:"success_rate"`
	AvgManagersPerJob float64         `json:"avg_managers_per_job"`
	Records           json.RawMessage `json:"records,omitempty"`
}

// StartExtractionHandler handles POST /api/extract
func (h *ExtractHandler) StartExtractionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req extractRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Records) == 0 {
		WriteError(w, http.StatusBadRequest, "records are required")
		return
	}

	jobRecords := records.FromRows(req.Records)
	runID := common.NewRunID()
	ctx, cancel := context.WithCancel(context.Background())

	// One run at a time: runs would otherwise share the authenticated browser
	var session interfaces.AuthSession
	err := h.gate.Start(runID, cancel, func() error {
		switch h.manager.State() {
		case models.AuthStateAwaitingManualCompletion:
			return interfaces.ErrAuthInProgress
		case models.AuthStateAuthenticated:
			session = h.manager.Session()
		}
		return nil
	})
	if err != nil {
		cancel()
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	common.SafeGo(h.logger, "extractionRun", func() {
		defer h.gate.Finish(runID)

		if _, err := h.orchestrator.Extract(ctx, runID, jobRecords, session); err != nil {
			h.logger.Warn().Err(err).Str("run_id", runID).Msg("Extraction run ended with error")
		}
	})

	WriteStarted(w, "Extraction started", map[string]interface{}{
		"run_id":        runID,
		"records":       len(jobRecords),
		"authenticated": session != nil,
	})
}

// ListRunsHandler handles GET /api/runs
func (h *ExtractHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), GetLimitParam(r, 20, 200))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, newRunResponse(run, false))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  out,
		"count": len(out),
	})
}

// GetRunHandler handles GET /api/runs/{id}
func (h *ExtractHandler) GetRunHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if errors.Is(err, interfaces.ErrRunNotFound) {
		WriteError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	WriteJSON(w, http.StatusOK, newRunResponse(run, true))
}

// CancelRunHandler handles POST /api/runs/{id}/cancel. Records already
// extracted are kept; the rest are marked skipped.
func (h *ExtractHandler) CancelRunHandler(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if !h.gate.Cancel(id) {
		WriteError(w, http.StatusNotFound, "Run not active")
		return
	}

	h.logger.Info().Str("run_id", id).Msg("Extraction run cancellation requested")
	WriteSuccess(w, "Cancellation requested")
}

// ActiveRuns returns the ids of runs still in progress
func (h *ExtractHandler) ActiveRuns() []string {
	return h.gate.Active()
}

// Shutdown cancels active runs and waits for them to persist their results
func (h *ExtractHandler) Shutdown(ctx context.Context) error {
	return h.gate.Shutdown(ctx)
}

func newRunResponse(run *models.BatchRun, withRecords bool) runResponse {
	resp := runResponse{
		BatchRun:          run,
		SuccessRate:       run.Outcome.SuccessRate(),
		AvgManagersPerJob: run.Outcome.AvgManagersPerJob(),
	}
	if withRecords && len(run.RecordsJSON) > 0 {
		resp.Records = json.RawMessage(run.RecordsJSON)
	}
	return resp
}
