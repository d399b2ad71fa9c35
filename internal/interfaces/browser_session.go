package interfaces

import (
	"context"

	"github.com/ternarybob/hirescout/internal/models"
)

// BrowserSession owns one browser automation session. Implementations are not
// safe for concurrent use; callers serialize access.
type BrowserSession interface {
	// Open starts the browser. headless=false shows a window for manual login.
	Open(ctx context.Context, headless bool) error
	// Navigate loads url, bounded by the session's page load timeout
	Navigate(ctx context.Context, url string) error
	ImportCookies(ctx context.Context, record *models.SessionRecord) error
	// ExportCookies snapshots all cookies and the current URL. CreatedAt is left zero.
	ExportCookies(ctx context.Context) (*models.SessionRecord, error)
	CurrentURL(ctx context.Context) (string, error)
	// HTML returns the rendered document of the current page
	HTML(ctx context.Context) (string, error)
	// HasElement reports whether any node matches the CSS selector, without waiting
	HasElement(ctx context.Context, selector string) (bool, error)
	// Fill replaces the value of the input matched by selector
	Fill(ctx context.Context, selector, value string) error
	// Close releases the browser. Safe to call more than once.
	Close() error
}

// BrowserFactory creates unopened browser sessions
type BrowserFactory func() BrowserSession
