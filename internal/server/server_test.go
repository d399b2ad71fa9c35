package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/app"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/services/scheduler"
)

func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()

	dir := t.TempDir()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Badger.Path = filepath.Join(dir, "db")
	cfg.Session.Path = filepath.Join(dir, "session.json")
	cfg.LinkedIn.Password = "secret"

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })

	return New(application), application
}

func serve(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRoutes_System(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := serve(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "uptime_seconds")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = serve(t, s, http.MethodGet, "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, common.GetVersion(), body["version"])
	assert.NotEmpty(t, body["go_version"])

	rec, body = serve(t, s, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "/api/unknown", body["path"])

	rec, _ = serve(t, s, http.MethodOptions, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_StatusAndAuth(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := serve(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unauthenticated", body["auth_state"])
	assert.Equal(t, false, body["running"])
	assert.Equal(t, []interface{}{}, body["active_runs"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec, body = serve(t, s, http.MethodGet, "/api/auth/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["has_default_credentials"])

	rec, _ = serve(t, s, http.MethodPost, "/api/auth/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoutes_Runs(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := serve(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])

	rec, _ = serve(t, s, http.MethodGet, "/api/runs/run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, s, http.MethodGet, "/api/runs/run_missing/cancel", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = serve(t, s, http.MethodPost, "/api/runs/run_missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, s, http.MethodGet, "/api/runs/a/b/c", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(t, s, http.MethodPost, "/api/extract", `{"records":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_Scheduler(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := serve(t, s, http.MethodGet, "/api/scheduler/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs, ok := body["jobs"].([]interface{})
	require.True(t, ok)
	require.Len(t, jobs, 1)
	assert.Equal(t, scheduler.ExpirySweepJob, jobs[0].(map[string]interface{})["name"])

	rec, body = serve(t, s, http.MethodPost, "/api/scheduler/jobs/"+scheduler.ExpirySweepJob+"/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["run_count"])

	rec, _ = serve(t, s, http.MethodPost, "/api/scheduler/jobs/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ConfigMasksPassword(t *testing.T) {
	s, application := newTestServer(t)

	rec, _ := serve(t, s, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Equal(t, "secret", application.Config.LinkedIn.Password)
}

func TestShutdownHandler(t *testing.T) {
	s, _ := newTestServer(t)
	ch := make(chan struct{})
	s.SetShutdownChannel(ch)

	rec, _ := serve(t, s, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-ch:
	default:
		t.Fatal("shutdown channel not closed")
	}

	// Second request must not panic on the closed channel
	rec, _ = serve(t, s, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_RequestIDAndRecovery(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	panicky := s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	panicky.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anything", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
