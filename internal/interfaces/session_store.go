package interfaces

import (
	"context"

	"github.com/ternarybob/hirescout/internal/models"
)

// SessionStore persists the single LinkedIn session record
type SessionStore interface {
	// Load returns nil when no usable record exists. Corrupt or unreadable
	// records are reported as absent, never as an error.
	Load(ctx context.Context) *models.SessionRecord
	// Save atomically replaces the stored record
	Save(ctx context.Context, record *models.SessionRecord) error
	// IsFresh reports whether record is inside the freshness window
	IsFresh(record *models.SessionRecord) bool
	// Delete removes the stored record, if any
	Delete(ctx context.Context) error
}
