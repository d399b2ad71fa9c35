package interfaces

import (
	"context"

	"github.com/ternarybob/hirescout/internal/models"
)

// HiringTeamExtractor reads the hiring team of a job posting through a browser session.
// Failures are returned inside the result (Success=false); the error return
// carries the classified cause so callers can decide whether to retry.
type HiringTeamExtractor interface {
	Extract(ctx context.Context, session BrowserSession, postingURL string) (models.ExtractionResult, error)
}
