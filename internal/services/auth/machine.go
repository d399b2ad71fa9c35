package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// Config holds the site endpoints and freshness window used by the Machine
type Config struct {
	LoginURL        string
	FeedURL         string
	FreshnessWindow time.Duration
}

// ConfigFrom builds a Config from the application configuration
func ConfigFrom(cfg *common.Config) Config {
	return Config{
		LoginURL:        cfg.LinkedIn.LoginURL(),
		FeedURL:         cfg.LinkedIn.FeedURL(),
		FreshnessWindow: cfg.Session.FreshnessWindow.Duration(),
	}
}

// Machine is the authentication state machine for one orchestration run.
//
// Lifecycle operations are serialized by mu. State and session age are kept
// in atomics so CurrentState and IsExpired never wait on a running operation.
type Machine struct {
	config     Config
	store      interfaces.SessionStore
	newBrowser interfaces.BrowserFactory
	events     interfaces.EventService
	logger     arbor.ILogger
	now        func() time.Time

	mu        sync.Mutex
	handle    interfaces.BrowserSession
	startedAt time.Time

	state     atomic.Value // models.AuthState
	createdAt atomic.Int64 // unix nanos of the active session record
}

var _ interfaces.AuthMachine = (*Machine)(nil)

// NewMachine creates a machine in the Unauthenticated state. events may be nil.
func NewMachine(config Config, store interfaces.SessionStore, newBrowser interfaces.BrowserFactory, events interfaces.EventService, logger arbor.ILogger) *Machine {
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = models.DefaultFreshnessWindow
	}
	m := &Machine{
		config:     config,
		store:      store,
		newBrowser: newBrowser,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
	m.state.Store(models.AuthStateUnauthenticated)
	return m
}

// WithClock replaces the time source
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) CurrentState() models.AuthState {
	return m.state.Load().(models.AuthState)
}

// StartedAt returns when the current auth attempt opened its browser
func (m *Machine) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// BeginInteractiveAuth opens a visible browser, tries to restore a fresh stored
// session, and otherwise leaves the login page open for the human.
func (m *Machine) BeginInteractiveAuth(ctx context.Context, creds models.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.CurrentState() {
	case models.AuthStateFailed:
		return interfaces.ErrAuthFailed
	case models.AuthStateAwaitingManualCompletion:
		return interfaces.ErrAuthInProgress
	case models.AuthStateAuthenticated:
		if !m.expired() {
			return nil
		}
		m.logger.Info().Msg("Authenticated session expired, starting new login")
		m.setState(models.AuthStateUnauthenticated)
	}

	// A handle may linger after an expiry sweep
	m.releaseHandleLocked()

	handle := m.newBrowser()
	if err := handle.Open(ctx, false); err != nil {
		handle.Close()
		m.failLocked(err)
		if !errors.Is(err, interfaces.ErrDriverUnavailable) {
			err = fmt.Errorf("%w: %v", interfaces.ErrDriverUnavailable, err)
		}
		return err
	}
	m.handle = handle
	m.startedAt = m.now()

	if record := m.store.Load(ctx); record != nil {
		if !m.store.IsFresh(record) {
			m.logger.Info().
				Dur("age", record.Age(m.now())).
				Msg("Stored session older than freshness window, ignoring it")
		} else if m.hydrateLocked(ctx, record) {
			m.createdAt.Store(record.CreatedAt.UnixNano())
			m.setState(models.AuthStateAuthenticated)
			m.logger.Info().
				Str("created_at", record.CreatedAt.Format(time.RFC3339)).
				Msg("Stored session restored")
			return nil
		}
	}

	if err := handle.Navigate(ctx, m.config.LoginURL); err != nil {
		if ctx.Err() != nil {
			m.releaseHandleLocked()
			return ctx.Err()
		}
		m.failLocked(err)
		return fmt.Errorf("failed to open login page: %w", err)
	}

	m.prefillLocked(ctx, creds)
	m.setState(models.AuthStateAwaitingManualCompletion)

	m.logger.Info().
		Str("login_url", m.config.LoginURL).
		Msg("Waiting for manual login completion in browser")

	return nil
}

// ConfirmCompletion checks the browser once for a signed-in page. It returns
// ErrLoginChallengeUnresolved while login or a challenge is still pending.
func (m *Machine) ConfirmCompletion(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.CurrentState() {
	case models.AuthStateAuthenticated:
		return nil
	case models.AuthStateFailed:
		return interfaces.ErrAuthFailed
	case models.AuthStateUnauthenticated:
		return fmt.Errorf("%w: no login in progress", interfaces.ErrInvalidAuthState)
	}

	loggedIn, location, err := m.probeLocked(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Warn().Err(err).Msg("Login probe failed")
		return fmt.Errorf("%w: %v", interfaces.ErrLoginChallengeUnresolved, err)
	}
	if !loggedIn {
		m.logger.Debug().Str("url", location).Msg("Login not yet complete")
		hint := pendingHint(location)
		if alert := m.pageAlertLocked(ctx); alert != "" {
			hint = fmt.Sprintf("%s (page says: %s)", hint, alert)
		}
		return fmt.Errorf("%w: %s", interfaces.ErrLoginChallengeUnresolved, hint)
	}

	createdAt := m.now()
	record, err := m.handle.ExportCookies(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to export cookies, session will not be persisted")
	} else {
		record.CreatedAt = createdAt
		if record.LastURL == "" {
			record.LastURL = location
		}
		if err := m.store.Save(ctx, record); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to persist session")
		}
	}

	m.createdAt.Store(createdAt.UnixNano())
	m.setState(models.AuthStateAuthenticated)

	m.logger.Info().Str("url", location).Msg("Login confirmed")
	return nil
}

// GetHandle returns the authenticated browser session
func (m *Machine) GetHandle() (interfaces.BrowserSession, error) {
	if m.IsExpired() {
		return nil, interfaces.ErrSessionExpired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CurrentState() != models.AuthStateAuthenticated || m.handle == nil {
		return nil, interfaces.ErrNotAuthenticated
	}
	return m.handle, nil
}

// IsExpired reports whether the authenticated session has outlived the
// freshness window. The first caller to observe expiry moves the machine to
// Unauthenticated; the browser is released in the background.
//
// The release does not wait for holders of the handle. An extraction already
// using it sees its navigation fail, and the pipeline retries that record with
// fallback extraction.
func (m *Machine) IsExpired() bool {
	if m.CurrentState() != models.AuthStateAuthenticated || !m.expired() {
		return false
	}

	if m.state.CompareAndSwap(models.AuthStateAuthenticated, models.AuthStateUnauthenticated) {
		m.logger.Info().Msg("Authenticated session expired")
		m.publishState(models.AuthStateAuthenticated, models.AuthStateUnauthenticated)
		common.SafeGo(m.logger, "releaseExpiredSession", func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.CurrentState() == models.AuthStateUnauthenticated {
				m.releaseHandleLocked()
			}
		})
	}
	return true
}

// Cancel abandons any session in progress and returns to Unauthenticated.
// A Failed machine stays Failed.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseHandleLocked()
	if m.CurrentState() != models.AuthStateFailed {
		m.setState(models.AuthStateUnauthenticated)
	}
	return nil
}

// Close releases the browser. Safe to call any number of times in any state.
func (m *Machine) Close() error {
	return m.Cancel()
}

func (m *Machine) expired() bool {
	created := m.createdAt.Load()
	if created == 0 {
		return true
	}
	return m.now().Sub(time.Unix(0, created)) >= m.config.FreshnessWindow
}

// hydrateLocked imports record into the handle and probes the feed. Any
// failure means the record cannot be used.
func (m *Machine) hydrateLocked(ctx context.Context, record *models.SessionRecord) bool {
	if err := m.handle.ImportCookies(ctx, record); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to import stored session")
		return false
	}
	if err := m.handle.Navigate(ctx, m.config.FeedURL); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load feed with stored session")
		return false
	}

	loggedIn, location, err := m.probeLocked(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Stored session probe failed")
		return false
	}
	if !loggedIn {
		m.logger.Info().Str("url", location).Msg("Stored session no longer signed in")
	}
	return loggedIn
}

// probeLocked looks for a positive signed-in landmark. Login and challenge
// pages never count, even when they render navigation chrome.
func (m *Machine) probeLocked(ctx context.Context) (bool, string, error) {
	location, err := m.handle.CurrentURL(ctx)
	if err != nil {
		return false, "", err
	}
	if common.HasAnyPathFragment(location, ChallengePathFragments...) {
		return false, location, nil
	}

	for _, selector := range LoggedInLandmarks {
		found, err := m.handle.HasElement(ctx, selector)
		if err != nil {
			return false, location, err
		}
		if found {
			return true, location, nil
		}
	}
	return false, location, nil
}

func (m *Machine) prefillLocked(ctx context.Context, creds models.Credentials) {
	if creds.HasEmail() {
		if err := m.handle.Fill(ctx, UsernameSelector, creds.Email()); err != nil {
			m.logger.Debug().Err(err).Msg("Username field not filled")
		}
	}
	if creds.HasPassword() {
		if err := m.handle.Fill(ctx, PasswordSelector, creds.Password().Reveal()); err != nil {
			m.logger.Debug().Err(err).Msg("Password field not filled")
		}
	}
}

func (m *Machine) failLocked(err error) {
	m.logger.Error().Err(err).Msg("Authentication failed, authenticated mode disabled")
	m.releaseHandleLocked()
	m.setState(models.AuthStateFailed)
}

func (m *Machine) releaseHandleLocked() {
	if m.handle == nil {
		return
	}
	if err := m.handle.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to close browser session")
	}
	m.handle = nil
	m.createdAt.Store(0)
}

func (m *Machine) setState(next models.AuthState) {
	previous := m.state.Swap(next).(models.AuthState)
	if previous == next {
		return
	}
	m.logger.Debug().
		Str("previous", string(previous)).
		Str("state", string(next)).
		Msg("Auth state changed")
	m.publishState(previous, next)
}

func (m *Machine) publishState(previous, next models.AuthState) {
	if m.events == nil {
		return
	}
	_ = m.events.Publish(context.Background(), interfaces.Event{
		Type: interfaces.EventAuthStateChanged,
		Payload: map[string]interface{}{
			"previous": string(previous),
			"state":    string(next),
		},
	})
}

// pageAlertLocked returns the first alert text on the current page, or ""
func (m *Machine) pageAlertLocked(ctx context.Context) string {
	html, err := m.handle.HTML(ctx)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, selector := range LoginAlertSelectors {
		var text string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text = strings.Join(strings.Fields(sel.Text()), " ")
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

func pendingHint(location string) string {
	switch {
	case common.HasAnyPathFragment(location, "/checkpoint", "/challenge"):
		return "security challenge pending in browser"
	case common.HasAnyPathFragment(location, "/login", "/uas/login"):
		return "login form not yet submitted"
	default:
		return "signed-in page not reached"
	}
}
