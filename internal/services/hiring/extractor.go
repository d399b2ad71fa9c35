// Package hiring finds the hiring team on a job posting page.
package hiring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// ErrSignInWall means the posting redirected to a login or challenge page
var ErrSignInWall = errors.New("redirected to sign-in page")

var signInWallFragments = []string{"/authwall", "/login", "/uas/login", "/checkpoint", "/challenge"}

// Extractor implements interfaces.HiringTeamExtractor
type Extractor struct {
	logger arbor.ILogger
}

var _ interfaces.HiringTeamExtractor = (*Extractor)(nil)

func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract navigates handle to postingURL and parses the hiring team. A page
// without a hiring team section is a success with no managers. On failure the
// result carries the error text and the error is also returned so the caller
// can classify it.
func (e *Extractor) Extract(ctx context.Context, handle interfaces.BrowserSession, postingURL string) (models.ExtractionResult, error) {
	startTime := time.Now()
	target := common.CanonicalPostingURL(postingURL)

	if err := handle.Navigate(ctx, target); err != nil {
		return failed(err), err
	}

	if location, err := handle.CurrentURL(ctx); err == nil && common.HasAnyPathFragment(location, signInWallFragments...) {
		err := fmt.Errorf("%w: %s", ErrSignInWall, location)
		return failed(err), err
	}

	html, err := handle.HTML(ctx)
	if err != nil {
		return failed(err), err
	}

	managers, found, err := ParseHiringTeam(html, target)
	if err != nil {
		err = fmt.Errorf("%w: %v", interfaces.ErrPageParseEmpty, err)
		return failed(err), err
	}

	e.logger.Debug().
		Str("url", target).
		Bool("section_found", found).
		Int("managers", len(managers)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Hiring team extracted")

	return models.ExtractionResult{
		Success:        true,
		HiringManagers: managers,
	}, nil
}

func failed(err error) models.ExtractionResult {
	return models.ExtractionResult{
		Success:        false,
		HiringManagers: []models.HiringManager{},
		Error:          err.Error(),
	}
}
