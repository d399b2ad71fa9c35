package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// Config holds chromedp allocator and timing settings for one session
type Config struct {
	ExecPath        string
	UserAgent       string
	NoSandbox       bool
	DisableGPU      bool
	PageLoadTimeout time.Duration
	StartupTimeout  time.Duration
	SettleDelay     time.Duration
}

// ConfigFrom converts the [browser] config section
func ConfigFrom(c common.BrowserConfig) Config {
	return Config{
		ExecPath:        c.ExecPath,
		UserAgent:       c.UserAgent,
		NoSandbox:       c.NoSandbox,
		DisableGPU:      c.DisableGPU,
		PageLoadTimeout: c.PageLoadTimeout.Duration(),
		StartupTimeout:  c.StartupTimeout.Duration(),
		SettleDelay:     c.SettleDelay.Duration(),
	}
}

// ChromeDPSession is a BrowserSession backed by one Chrome process
type ChromeDPSession struct {
	config Config
	logger arbor.ILogger

	mu              sync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	headless        bool
}

var _ interfaces.BrowserSession = (*ChromeDPSession)(nil)

// NewChromeDPSession creates an unopened session
func NewChromeDPSession(config Config, logger arbor.ILogger) *ChromeDPSession {
	if config.PageLoadTimeout <= 0 {
		config.PageLoadTimeout = 10 * time.Second
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = 30 * time.Second
	}
	return &ChromeDPSession{
		config: config,
		logger: logger,
	}
}

// NewFactory returns a BrowserFactory producing independent chromedp sessions
func NewFactory(config Config, logger arbor.ILogger) interfaces.BrowserFactory {
	return func() interfaces.BrowserSession {
		return NewChromeDPSession(config, logger)
	}
}

// Open starts Chrome and verifies it responds. Any startup failure is
// reported as ErrDriverUnavailable.
func (s *ChromeDPSession) Open(ctx context.Context, headless bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		return fmt.Errorf("browser session already open")
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", s.config.DisableGPU),
		chromedp.Flag("no-sandbox", s.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if s.config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(s.config.UserAgent))
	}
	if s.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(s.config.ExecPath))
	}
	if !headless {
		allocatorOpts = append(allocatorOpts, chromedp.WindowSize(1280, 900))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup probe, also launches the process
	probeCtx, probeCancel := context.WithTimeout(browserCtx, s.config.StartupTimeout)
	stop := context.AfterFunc(ctx, probeCancel)
	err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank"), network.Enable())
	stop()
	probeCancel()
	if err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("%w: browser failed startup test: %v", interfaces.ErrDriverUnavailable, err)
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocatorCancel = allocatorCancel
	s.headless = headless

	s.logger.Debug().
		Bool("headless", headless).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser session opened")

	return nil
}

// Navigate loads url and waits for the configured settle delay
func (s *ChromeDPSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.config.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %s", interfaces.ErrNavigationTimeout, s.config.PageLoadTimeout, url)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if s.config.SettleDelay > 0 {
		select {
		case <-time.After(s.config.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ImportCookies injects every cookie of record into the browser
func (s *ChromeDPSession) ImportCookies(ctx context.Context, record *models.SessionRecord) error {
	if record == nil || len(record.Cookies) == 0 {
		return nil
	}

	now := time.Now()
	failed := 0
	err := s.run(ctx, s.config.PageLoadTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range record.Cookies {
			var expires *cdp.TimeSinceEpoch
			if c.Expires > 0 {
				expiresTime := time.Unix(int64(c.Expires), 0)
				if !expiresTime.After(now) {
					continue
				}
				timestamp := cdp.TimeSinceEpoch(expiresTime)
				expires = &timestamp
			}

			path := c.Path
			if path == "" {
				path = "/"
			}

			if err := network.SetCookie(c.Name, c.Value).
				WithDomain(strings.TrimPrefix(c.Domain, ".")).
				WithPath(path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(toSameSite(c.SameSite)).
				WithExpires(expires).
				Do(ctx); err != nil {
				failed++
				s.logger.Debug().
					Err(err).
					Str("cookie_name", c.Name).
					Str("domain", c.Domain).
					Msg("Failed to inject cookie")
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if failed == len(record.Cookies) {
		return fmt.Errorf("failed to import cookies: all %d rejected", failed)
	}

	s.logger.Debug().
		Int("cookies", len(record.Cookies)).
		Int("failed", failed).
		Msg("Cookies imported into browser")
	return nil
}

// ExportCookies snapshots all browser cookies and the current URL
func (s *ChromeDPSession) ExportCookies(ctx context.Context) (*models.SessionRecord, error) {
	var cookies []*network.Cookie
	var location string

	err := s.run(ctx, s.config.PageLoadTimeout,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to export cookies: %w", err)
	}

	record := &models.SessionRecord{
		Cookies: make([]models.Cookie, 0, len(cookies)),
		LastURL: location,
	}
	for _, c := range cookies {
		record.Cookies = append(record.Cookies, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return record, nil
}

func (s *ChromeDPSession) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, s.config.PageLoadTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return location, nil
}

func (s *ChromeDPSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.config.PageLoadTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: reading page html", interfaces.ErrNavigationTimeout)
		}
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	if strings.TrimSpace(html) == "" {
		return "", interfaces.ErrPageParseEmpty
	}
	return html, nil
}

func (s *ChromeDPSession) HasElement(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, s.config.PageLoadTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return len(nodes) > 0, nil
}

func (s *ChromeDPSession) Fill(ctx context.Context, selector, value string) error {
	if err := s.run(ctx, s.config.PageLoadTimeout, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

// Close shuts down the browser and its allocator
func (s *ChromeDPSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return nil
	}

	s.browserCancel()
	s.allocatorCancel()
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocatorCancel = nil

	s.logger.Debug().Bool("headless", s.headless).Msg("Browser session closed")
	return nil
}

// run executes actions against the browser with a timeout, aborting early
// when ctx is cancelled
func (s *ChromeDPSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	browserCtx := s.browserCtx
	s.mu.Unlock()

	if browserCtx == nil {
		return fmt.Errorf("browser session not open")
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func toSameSite(value string) network.CookieSameSite {
	switch strings.ToLower(value) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}
