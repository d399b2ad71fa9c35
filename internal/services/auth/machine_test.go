package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"pgregory.net/rapid"

	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/browser/browsertest"
	"github.com/ternarybob/hirescout/internal/storage/file"
)

const (
	testLoginURL     = "https://www.linkedin.com/login"
	testFeedURL      = "https://www.linkedin.com/feed/"
	testChallengeURL = "https://www.linkedin.com/checkpoint/challenge/verify"

	loginPage     = `<html><body><form><input id="username"><input id="password" type="password"><button type="submit">Sign in</button></form></body></html>`
	feedPage      = `<html><body><nav id="global-nav"><button class="global-nav__me">Me</button></nav><div class="feed-identity-module">You</div></body></html>`
	challengePage = `<html><body><nav id="global-nav"></nav><div class="challenge"><p>Enter the code we sent</p></div></body></html>`
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	site    *browsertest.Site
	store   *file.SessionStore
	clock   *clock
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	site := browsertest.NewSite()
	site.SetPage(testLoginURL, loginPage)
	site.SetPage(testFeedURL, feedPage)
	site.SetPage(testChallengeURL, challengePage)
	site.Protect(testFeedURL, testLoginURL)

	c := &clock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	logger := arbor.NewLogger()
	store := file.NewSessionStore(filepath.Join(t.TempDir(), "session.json"), 24*time.Hour, logger).WithClock(c.Now)

	machine := NewMachine(Config{
		LoginURL:        testLoginURL,
		FeedURL:         testFeedURL,
		FreshnessWindow: 24 * time.Hour,
	}, store, site.Factory(), nil, logger).WithClock(c.Now)
	t.Cleanup(func() { machine.Close() })

	return &fixture{site: site, store: store, clock: c, machine: machine}
}

func (f *fixture) saveSession(t *testing.T, age time.Duration) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), &models.SessionRecord{
		Cookies:   []models.Cookie{{Name: browsertest.AuthCookie, Value: "stored", Domain: ".linkedin.com", Path: "/"}},
		CreatedAt: f.clock.Now().Add(-age),
		LastURL:   testFeedURL,
	}))
}

func (f *fixture) browser(t *testing.T) *browsertest.FakeSession {
	t.Helper()
	sessions := f.site.Sessions()
	require.NotEmpty(t, sessions)
	return sessions[len(sessions)-1]
}

func TestMachine_InitialState(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, models.AuthStateUnauthenticated, f.machine.CurrentState())
	assert.False(t, f.machine.IsExpired())

	_, err := f.machine.GetHandle()
	assert.ErrorIs(t, err, interfaces.ErrNotAuthenticated)
}

func TestMachine_BeginWithoutSessionAwaitsManualLogin(t *testing.T) {
	f := newFixture(t)
	creds := models.NewCredentials("jane@example.com", "s3cret")

	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), creds))

	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	browser := f.browser(t)
	assert.False(t, browser.Headless(), "interactive login needs a visible window")
	assert.Equal(t, []string{testLoginURL}, browser.Navigations())
	assert.Equal(t, "jane@example.com", browser.Filled(UsernameSelector))
	assert.Equal(t, "s3cret", browser.Filled(PasswordSelector))
	assert.Equal(t, f.clock.Now(), f.machine.StartedAt())
}

func TestMachine_BeginWithoutCredentialsLeavesFormEmpty(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))

	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	assert.Empty(t, f.browser(t).Filled(UsernameSelector))
}

func TestMachine_FreshSessionRestoresDirectly(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, 2*time.Hour)

	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))

	assert.Equal(t, models.AuthStateAuthenticated, f.machine.CurrentState())
	assert.Equal(t, []string{testFeedURL}, f.browser(t).Navigations())

	handle, err := f.machine.GetHandle()
	require.NoError(t, err)
	assert.Same(t, f.browser(t), handle)
}

// Scenario C: a 25 hour old session is treated as absent
func TestMachine_StaleSessionIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, 25*time.Hour)

	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))

	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	assert.NotContains(t, f.browser(t).Navigations(), testFeedURL)
}

func TestMachine_StaleSessionsNeverAuthenticateDirectly(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		age := time.Duration(rapid.Int64Range(int64(24*time.Hour), int64(90*24*time.Hour)).Draw(rt, "age"))
		f.saveSession(t, age)

		if err := f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}); err != nil {
			rt.Fatalf("begin: %v", err)
		}
		if state := f.machine.CurrentState(); state == models.AuthStateAuthenticated {
			rt.Fatalf("session aged %s authenticated directly", age)
		}
		f.machine.Close()
	})
}

func TestMachine_RevokedSessionFallsBackToLogin(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), &models.SessionRecord{
		Cookies:   []models.Cookie{{Name: "lang", Value: "en"}},
		CreatedAt: f.clock.Now().Add(-time.Hour),
	}))

	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))

	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	assert.Equal(t, []string{testFeedURL, testLoginURL}, f.browser(t).Navigations())
}

// Scenario D: confirm before and after the human finishes
func TestMachine_ConfirmCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))

	err := f.machine.ConfirmCompletion(ctx)
	assert.ErrorIs(t, err, interfaces.ErrLoginChallengeUnresolved)
	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	assert.Nil(t, f.store.Load(ctx), "nothing persisted before login completes")

	f.clock.Advance(3 * time.Minute)
	f.browser(t).CompleteLogin(testFeedURL)

	require.NoError(t, f.machine.ConfirmCompletion(ctx))
	assert.Equal(t, models.AuthStateAuthenticated, f.machine.CurrentState())

	record := f.store.Load(ctx)
	require.NotNil(t, record)
	assert.True(t, record.CreatedAt.Equal(f.clock.Now()), "persisted record has a fresh created_at")
	assert.Equal(t, testFeedURL, record.LastURL)
	require.Len(t, record.Cookies, 1)
	assert.Equal(t, browsertest.AuthCookie, record.Cookies[0].Name)

	assert.NoError(t, f.machine.ConfirmCompletion(ctx), "confirm after success is a no-op")
}

func TestMachine_RepeatedConfirmNeverAuthenticatesEarly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))

	for i := 0; i < 5; i++ {
		err := f.machine.ConfirmCompletion(ctx)
		require.ErrorIs(t, err, interfaces.ErrLoginChallengeUnresolved)
		require.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
	}
}

func TestMachine_ChallengePageIsNotConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))

	// The challenge page renders #global-nav but its path marks it as pending
	require.NoError(t, f.browser(t).Navigate(ctx, testChallengeURL))

	err := f.machine.ConfirmCompletion(ctx)
	require.ErrorIs(t, err, interfaces.ErrLoginChallengeUnresolved)
	assert.Contains(t, err.Error(), "security challenge")
	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
}

func TestMachine_ConfirmWithoutBegin(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.machine.ConfirmCompletion(context.Background()), interfaces.ErrInvalidAuthState)
}

func TestMachine_BeginTwiceWhileAwaiting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))

	assert.ErrorIs(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}), interfaces.ErrAuthInProgress)
	assert.Len(t, f.site.Sessions(), 1)
}

func TestMachine_CancelDiscardsLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))
	browser := f.browser(t)

	require.NoError(t, f.machine.Cancel())

	assert.Equal(t, models.AuthStateUnauthenticated, f.machine.CurrentState())
	assert.False(t, browser.IsOpen())
	assert.Nil(t, f.store.Load(ctx))

	// A cancelled machine can start over
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))
	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
}

func TestMachine_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Hour)
	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))
	browser := f.browser(t)

	require.NoError(t, f.machine.Close())
	first := f.machine.CurrentState()
	require.NoError(t, f.machine.Close())

	assert.Equal(t, models.AuthStateUnauthenticated, first)
	assert.Equal(t, first, f.machine.CurrentState())
	assert.Equal(t, 1, browser.CloseCount())
}

func TestMachine_DriverUnavailableFails(t *testing.T) {
	f := newFixture(t)
	f.site.FailOpen(errors.New("chrome not found"))
	ctx := context.Background()

	err := f.machine.BeginInteractiveAuth(ctx, models.Credentials{})
	require.ErrorIs(t, err, interfaces.ErrDriverUnavailable)
	assert.Equal(t, models.AuthStateFailed, f.machine.CurrentState())

	assert.ErrorIs(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}), interfaces.ErrAuthFailed)
	assert.ErrorIs(t, f.machine.ConfirmCompletion(ctx), interfaces.ErrAuthFailed)

	require.NoError(t, f.machine.Close())
	require.NoError(t, f.machine.Close())
	assert.Equal(t, models.AuthStateFailed, f.machine.CurrentState(), "failed is terminal")
}

func TestMachine_LoginNavigationErrorFails(t *testing.T) {
	f := newFixture(t)
	f.site.FailNavigation(testLoginURL, errors.New("net::ERR_NAME_NOT_RESOLVED"))

	err := f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{})
	require.Error(t, err)
	assert.Equal(t, models.AuthStateFailed, f.machine.CurrentState())
	assert.False(t, f.browser(t).IsOpen())
}

func TestMachine_CancelledContextDuringBeginDoesNotFail(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.machine.BeginInteractiveAuth(ctx, models.Credentials{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.AuthStateUnauthenticated, f.machine.CurrentState())
}

func TestMachine_ExpiryDropsToUnauthenticated(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, 23*time.Hour)
	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))
	require.Equal(t, models.AuthStateAuthenticated, f.machine.CurrentState())
	browser := f.browser(t)

	assert.False(t, f.machine.IsExpired())

	f.clock.Advance(time.Hour)

	assert.True(t, f.machine.IsExpired())
	assert.Equal(t, models.AuthStateUnauthenticated, f.machine.CurrentState())

	_, err := f.machine.GetHandle()
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return !browser.IsOpen() }, 2*time.Second, 10*time.Millisecond)
}

func TestMachine_ExpiryClosesHandleHeldByExtraction(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, 23*time.Hour)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))

	held, err := f.machine.GetHandle()
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	require.True(t, f.machine.IsExpired())

	assert.Eventually(t, func() bool { return held.Navigate(ctx, testFeedURL) != nil }, 2*time.Second, 10*time.Millisecond)
}

func TestMachine_ConfirmReportsLoginPageAlert(t *testing.T) {
	f := newFixture(t)
	f.site.SetPage(testLoginURL, `<html><body><div role="alert">  Wrong email or
password. Try again.</div><form><input id="username"><input id="password"></form></body></html>`)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.NewCredentials("jane@example.com", "bad")))

	err := f.machine.ConfirmCompletion(ctx)
	require.ErrorIs(t, err, interfaces.ErrLoginChallengeUnresolved)
	assert.Contains(t, err.Error(), "login form not yet submitted")
	assert.Contains(t, err.Error(), "Wrong email or password. Try again.")
	assert.Equal(t, models.AuthStateAwaitingManualCompletion, f.machine.CurrentState())
}

func TestMachine_ConfirmReportsChallengePrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.machine.BeginInteractiveAuth(ctx, models.Credentials{}))
	require.NoError(t, f.browser(t).Navigate(ctx, testChallengeURL))

	err := f.machine.ConfirmCompletion(ctx)
	require.ErrorIs(t, err, interfaces.ErrLoginChallengeUnresolved)
	assert.Contains(t, err.Error(), "Enter the code we sent")
}

func TestMachine_ConcurrentExpiryReadersAgree(t *testing.T) {
	f := newFixture(t)
	f.saveSession(t, time.Hour)
	require.NoError(t, f.machine.BeginInteractiveAuth(context.Background(), models.Credentials{}))
	f.clock.Advance(24 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.machine.IsExpired()
		}()
	}
	wg.Wait()

	assert.Equal(t, models.AuthStateUnauthenticated, f.machine.CurrentState())
}
