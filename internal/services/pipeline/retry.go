package pipeline

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// RetryPolicy bounds attempts of a single extraction method
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NewRetryPolicy allows maxRetries retries after the first attempt
func NewRetryPolicy(maxRetries int, backoff time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryPolicy{
		MaxAttempts: maxRetries + 1,
		Backoff:     backoff,
	}
}

// ShouldRetry checks if a failed attempt is worth repeating
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt+1 >= p.MaxAttempts {
		return false
	}
	return interfaces.IsTransient(err)
}

// ExecuteWithRetry runs fn until it succeeds, fails permanently or attempts
// run out. It returns the last result, its error and the attempts made.
func (p *RetryPolicy) ExecuteWithRetry(ctx context.Context, logger arbor.ILogger, fn func() (models.ExtractionResult, error)) (models.ExtractionResult, int, error) {
	var (
		result  models.ExtractionResult
		lastErr error
	)

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, attempt + 1, nil
		}

		if !p.ShouldRetry(attempt, lastErr) {
			if attempt+1 < p.MaxAttempts {
				logger.Debug().
					Int("attempt", attempt+1).
					Err(lastErr).
					Msg("Non-retryable error, failing immediately")
			}
			return result, attempt + 1, lastErr
		}

		logger.Debug().
			Int("attempt", attempt+1).
			Err(lastErr).
			Dur("backoff", p.Backoff).
			Msg("Retrying after backoff")

		if p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return result, attempt + 1, lastErr
			case <-time.After(p.Backoff):
			}
		}
	}

	return result, p.MaxAttempts, lastErr
}
