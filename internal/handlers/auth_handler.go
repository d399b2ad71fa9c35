package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/auth"
)

// AuthHandler exposes the interactive login lifecycle
type AuthHandler struct {
	manager *auth.Manager
	gate    *RunGate
	logger  arbor.ILogger
}

// NewAuthHandler creates a new auth handler. Login is refused while gate has
// an active extraction run.
func NewAuthHandler(manager *auth.Manager, gate *RunGate, logger arbor.ILogger) *AuthHandler {
	return &AuthHandler{
		manager: manager,
		gate:    gate,
		logger:  logger,
	}
}

// beginRequest carries credentials typed into the UI. Both fields are optional.
type beginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// GetAuthStatusHandler handles GET /api/auth/status
func (h *AuthHandler) GetAuthStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state":                   h.manager.State(),
		"has_default_credentials": h.manager.HasDefaultCredentials(),
	})
}

// BeginAuthHandler handles POST /api/auth/begin
func (h *AuthHandler) BeginAuthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req beginRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds := models.NewCredentials(req.Email, req.Password)
	err := h.gate.Exclusive(func() error {
		return h.manager.Begin(r.Context(), creds)
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Interactive authentication could not start")
		WriteError(w, authErrorStatus(err), err.Error())
		return
	}

	state := h.manager.State()
	message := "Complete the login in the browser window, then confirm"
	if state == models.AuthStateAuthenticated {
		message = "Stored session restored"
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state,
		"message": message,
	})
}

// ConfirmAuthHandler handles POST /api/auth/confirm. It answers 202 while the
// login is still pending so the caller can retry.
func (h *AuthHandler) ConfirmAuthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	err := h.manager.Confirm(r.Context())
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"state":     h.manager.State(),
			"confirmed": true,
		})
	case errors.Is(err, interfaces.ErrLoginChallengeUnresolved):
		WriteJSON(w, http.StatusAccepted, map[string]interface{}{
			"state":     h.manager.State(),
			"confirmed": false,
			"message":   err.Error(),
		})
	default:
		WriteError(w, authErrorStatus(err), err.Error())
	}
}

// CancelAuthHandler handles POST /api/auth/cancel
func (h *AuthHandler) CancelAuthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.manager.Cancel(); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"state": h.manager.State(),
	})
}

func authErrorStatus(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrAuthInProgress),
		errors.Is(err, interfaces.ErrInvalidAuthState),
		errors.Is(err, interfaces.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, interfaces.ErrDriverUnavailable), errors.Is(err, interfaces.ErrAuthFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
