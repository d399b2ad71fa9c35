package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/auth"
)

func TestAuthHandler_Status(t *testing.T) {
	manager, _ := newAuthManager(t, models.NewCredentials("a@b.c", "pw"))
	h := NewAuthHandler(manager, NewRunGate(), arbor.NewLogger())

	rec, body := doRequest(t, h.GetAuthStatusHandler, http.MethodGet, "/api/auth/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.AuthStateUnauthenticated), body["state"])
	assert.Equal(t, true, body["has_default_credentials"])

	rec, _ = doRequest(t, h.GetAuthStatusHandler, http.MethodPost, "/api/auth/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuthHandler_BeginConfirmCancel(t *testing.T) {
	manager, site := newAuthManager(t, models.Credentials{})
	h := NewAuthHandler(manager, NewRunGate(), arbor.NewLogger())

	rec, body := doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin",
		map[string]string{"email": "typed@example.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.AuthStateAwaitingManualCompletion), body["state"])
	assert.Equal(t, "typed@example.com", site.Sessions()[0].Filled(auth.UsernameSelector))

	// Login not finished yet
	rec, body = doRequest(t, h.ConfirmAuthHandler, http.MethodPost, "/api/auth/confirm", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, false, body["confirmed"])

	// Starting again while awaiting is a conflict
	rec, _ = doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	site.Sessions()[0].CompleteLogin(feedURL)
	rec, body = doRequest(t, h.ConfirmAuthHandler, http.MethodPost, "/api/auth/confirm", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["confirmed"])
	assert.Equal(t, string(models.AuthStateAuthenticated), body["state"])

	rec, body = doRequest(t, h.CancelAuthHandler, http.MethodPost, "/api/auth/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.AuthStateUnauthenticated), body["state"])
}

func TestAuthHandler_ConfirmWithoutLogin(t *testing.T) {
	manager, _ := newAuthManager(t, models.Credentials{})
	h := NewAuthHandler(manager, NewRunGate(), arbor.NewLogger())

	rec, body := doRequest(t, h.ConfirmAuthHandler, http.MethodPost, "/api/auth/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestAuthHandler_DriverUnavailable(t *testing.T) {
	manager, site := newAuthManager(t, models.Credentials{})
	site.FailOpen(errors.New("chrome not found"))
	h := NewAuthHandler(manager, NewRunGate(), arbor.NewLogger())

	rec, _ := doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, models.AuthStateFailed, manager.State())
}

func TestAuthHandler_InvalidBody(t *testing.T) {
	manager, _ := newAuthManager(t, models.Credentials{})
	h := NewAuthHandler(manager, NewRunGate(), arbor.NewLogger())

	rec, _ := doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_BeginRefusedDuringRun(t *testing.T) {
	f := newExtractFixture(t)
	h := NewAuthHandler(f.manager, f.gate, arbor.NewLogger())

	code, body := f.start(t)
	require.Equal(t, http.StatusAccepted, code)
	runID := body["run_id"].(string)
	<-f.processor.started

	rec, body := doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin",
		map[string]string{"email": "typed@example.com", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, interfaces.ErrRunInProgress.Error(), body["error"])
	assert.Equal(t, models.AuthStateUnauthenticated, f.manager.State())
	assert.Empty(t, f.site.Sessions())
	assert.Equal(t, []string{runID}, f.handler.ActiveRuns())

	close(f.processor.release)
	f.waitIdle(t)

	rec, body = doRequest(t, h.BeginAuthHandler, http.MethodPost, "/api/auth/begin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.AuthStateAwaitingManualCompletion), body["state"])
}
