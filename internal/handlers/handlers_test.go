package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/auth"
	"github.com/ternarybob/hirescout/internal/services/browser/browsertest"
	"github.com/ternarybob/hirescout/internal/storage/file"
)

const (
	loginURL  = "https://www.linkedin.com/login"
	feedURL   = "https://www.linkedin.com/feed/"
	loginPage = `<html><body><form><input id="username"><input id="password" type="password"></form></body></html>`
	feedPage  = `<html><body><nav id="global-nav"><button class="global-nav__me">Me</button></nav></body></html>`
)

func newAuthManager(t *testing.T, defaults models.Credentials) (*auth.Manager, *browsertest.Site) {
	t.Helper()

	site := browsertest.NewSite()
	site.SetPage(loginURL, loginPage)
	site.SetPage(feedURL, feedPage)
	site.Protect(feedURL, loginURL)

	logger := arbor.NewLogger()
	store := file.NewSessionStore(filepath.Join(t.TempDir(), "session.json"), 24*time.Hour, logger)
	manager := auth.NewManager(func() *auth.Machine {
		return auth.NewMachine(auth.Config{LoginURL: loginURL, FeedURL: feedURL, FreshnessWindow: 24 * time.Hour},
			store, site.Factory(), nil, logger)
	}, defaults, logger)
	t.Cleanup(func() { manager.Close() })

	return manager, site
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}
