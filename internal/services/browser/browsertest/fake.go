// Package browsertest provides an in-memory BrowserSession for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// AuthCookie is the cookie name a Site treats as a logged-in marker
const AuthCookie = "li_at"

// Site is a fake website shared by every FakeSession it creates
type Site struct {
	mu           sync.Mutex
	pages        map[string]string
	protected    map[string]string
	navigateErrs map[string][]error
	openErr      error
	sessions     []*FakeSession
}

func NewSite() *Site {
	return &Site{
		pages:        make(map[string]string),
		protected:    make(map[string]string),
		navigateErrs: make(map[string][]error),
	}
}

// SetPage serves html at url
func (s *Site) SetPage(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
}

// Protect redirects url to loginURL for sessions without the AuthCookie
func (s *Site) Protect(url, loginURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protected[url] = loginURL
}

// FailNavigation queues errors returned by successive navigations to url
func (s *Site) FailNavigation(url string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateErrs[url] = append(s.navigateErrs[url], errs...)
}

// FailOpen makes every subsequent Open return err
func (s *Site) FailOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// NewSession creates an unopened session bound to the site
func (s *Site) NewSession() *FakeSession {
	session := &FakeSession{site: s, filled: make(map[string]string)}
	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	s.mu.Unlock()
	return session
}

// Factory returns a BrowserFactory producing sessions on this site
func (s *Site) Factory() interfaces.BrowserFactory {
	return func() interfaces.BrowserSession {
		return s.NewSession()
	}
}

// Sessions returns every session created so far, in creation order
func (s *Site) Sessions() []*FakeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*FakeSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Site) resolve(url string, authenticated bool) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if queued := s.navigateErrs[url]; len(queued) > 0 {
		s.navigateErrs[url] = queued[1:]
		if queued[0] != nil {
			return "", "", queued[0]
		}
	}

	if loginURL, ok := s.protected[url]; ok && !authenticated {
		url = loginURL
	}
	return url, s.pages[url], nil
}

// FakeSession implements interfaces.BrowserSession against a Site
type FakeSession struct {
	site *Site

	mu          sync.Mutex
	open        bool
	headless    bool
	closeCount  int
	currentURL  string
	html        string
	cookies     []models.Cookie
	filled      map[string]string
	navigations []string
}

var _ interfaces.BrowserSession = (*FakeSession)(nil)

func (f *FakeSession) Open(ctx context.Context, headless bool) error {
	f.site.mu.Lock()
	openErr := f.site.openErr
	f.site.mu.Unlock()
	if openErr != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrDriverUnavailable, openErr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return errors.New("browser session already open")
	}
	f.open = true
	f.headless = headless
	return nil
}

func (f *FakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.requireOpen(); err != nil {
		return err
	}

	f.mu.Lock()
	f.navigations = append(f.navigations, url)
	authenticated := f.hasCookieLocked(AuthCookie)
	f.mu.Unlock()

	finalURL, html, err := f.site.resolve(url, authenticated)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.currentURL = finalURL
	f.html = html
	f.mu.Unlock()
	return nil
}

func (f *FakeSession) ImportCookies(ctx context.Context, record *models.SessionRecord) error {
	if err := f.requireOpen(); err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append(f.cookies, record.Cookies...)
	return nil
}

func (f *FakeSession) ExportCookies(ctx context.Context) (*models.SessionRecord, error) {
	if err := f.requireOpen(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cookies := make([]models.Cookie, len(f.cookies))
	copy(cookies, f.cookies)
	return &models.SessionRecord{Cookies: cookies, LastURL: f.currentURL}, nil
}

func (f *FakeSession) CurrentURL(ctx context.Context) (string, error) {
	if err := f.requireOpen(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentURL, nil
}

func (f *FakeSession) HTML(ctx context.Context) (string, error) {
	if err := f.requireOpen(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(f.html) == "" {
		return "", interfaces.ErrPageParseEmpty
	}
	return f.html, nil
}

func (f *FakeSession) HasElement(ctx context.Context, selector string) (bool, error) {
	if err := f.requireOpen(); err != nil {
		return false, err
	}
	f.mu.Lock()
	html := f.html
	f.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (f *FakeSession) Fill(ctx context.Context, selector, value string) error {
	found, err := f.HasElement(ctx, selector)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no element matches %s", selector)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled[selector] = value
	return nil
}

func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closeCount++
	return nil
}

// CompleteLogin simulates the human finishing login: the auth cookie is set
// and the browser lands on url.
func (f *FakeSession) CompleteLogin(url string) {
	f.mu.Lock()
	f.cookies = append(f.cookies, models.Cookie{Name: AuthCookie, Value: "token", Domain: ".linkedin.com", Path: "/"})
	f.mu.Unlock()
	_ = f.Navigate(context.Background(), url)
}

func (f *FakeSession) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *FakeSession) Headless() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headless
}

func (f *FakeSession) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCount
}

func (f *FakeSession) Filled(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filled[selector]
}

func (f *FakeSession) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.navigations))
	copy(out, f.navigations)
	return out
}

func (f *FakeSession) requireOpen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return errors.New("browser session not open")
	}
	return nil
}

func (f *FakeSession) hasCookieLocked(name string) bool {
	for _, c := range f.cookies {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}
