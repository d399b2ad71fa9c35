// Package pipeline augments job records with their hiring team.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

const (
	errUnsupportedSource = "unsupported posting source"
	errBatchCancelled    = "batch cancelled before extraction"
	errLoginPending      = "interactive login awaiting manual completion"
)

// Config controls worker count, retries and pacing
type Config struct {
	Concurrency   int
	MaxRetries    int
	RecordDelay   time.Duration
	RetryBackoff  time.Duration
	SupportedHost string
}

// ConfigFrom maps the [extraction] section onto a pipeline config
func ConfigFrom(cfg common.ExtractionConfig) Config {
	return Config{
		Concurrency:   cfg.Concurrency,
		MaxRetries:    cfg.MaxRetries,
		RecordDelay:   cfg.RecordDelay.Duration(),
		RetryBackoff:  cfg.RetryBackoff.Duration(),
		SupportedHost: cfg.SupportedHost,
	}
}

// Pipeline processes batches of job records. It is safe to run several
// batches at once; each Process call owns its own limiter and workers.
type Pipeline struct {
	config     Config
	extractor  interfaces.HiringTeamExtractor
	newBrowser interfaces.BrowserFactory
	reporter   interfaces.ProgressReporter
	logger     arbor.ILogger
}

// NewPipeline creates a pipeline. newBrowser supplies the anonymous sessions
// used for fallback extraction. reporter may be nil.
func NewPipeline(config Config, extractor interfaces.HiringTeamExtractor, newBrowser interfaces.BrowserFactory, reporter interfaces.ProgressReporter, logger arbor.ILogger) *Pipeline {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Pipeline{
		config:     config,
		extractor:  extractor,
		newBrowser: newBrowser,
		reporter:   reporter,
		logger:     logger,
	}
}

// batch is the state of one Process call
type batch struct {
	runID   string
	auth    interfaces.AuthSession
	authMu  sync.Mutex
	limiter *rate.Limiter
	retry   *RetryPolicy
}

// Process augments every record with an extraction result and returns them in
// input order. Records off the supported host are skipped. auth may be nil, in
// which case every eligible record uses fallback extraction.
//
// Cancelling ctx stops new records from starting. Records already in flight
// finish, and the rest are returned as skipped along with ctx.Err().
func (p *Pipeline) Process(ctx context.Context, runID string, records []models.JobRecord, auth interfaces.AuthSession) ([]models.JobRecord, models.BatchOutcome, error) {
	if auth != nil && auth.CurrentState() == models.AuthStateAwaitingManualCompletion {
		out := make([]models.JobRecord, len(records))
		var outcome models.BatchOutcome
		for i, record := range records {
			out[i] = attach(record, skipped(errLoginPending))
			outcome.Add(out[i].Extraction)
		}
		return out, outcome, fmt.Errorf("batch %s: %w", runID, interfaces.ErrAuthInProgress)
	}

	startTime := time.Now()
	b := &batch{
		runID:   runID,
		auth:    auth,
		limiter: newLimiter(p.config.RecordDelay),
		retry:   NewRetryPolicy(p.config.MaxRetries, p.config.RetryBackoff),
	}

	if p.reporter != nil {
		p.reporter.RunStarted(runID, len(records))
	}

	p.logger.Info().
		Str("run_id", runID).
		Int("records", len(records)).
		Int("concurrency", p.config.Concurrency).
		Bool("auth_session", auth != nil).
		Msg("Batch extraction started")

	out := make([]models.JobRecord, len(records))
	done := make([]bool, len(records))

	var eligible []int
	for i, record := range records {
		if common.IsSupportedPostingURL(record.PostingURL, p.config.SupportedHost) {
			eligible = append(eligible, i)
			continue
		}
		out[i] = attach(record, skipped(errUnsupportedSource))
		done[i] = true
		p.recordProcessed(runID, i, out[i])
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.config.Concurrency && w < len(eligible); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				// Cooperative cancellation point between records
				if ctx.Err() != nil {
					continue
				}
				if err := b.limiter.Wait(ctx); err != nil {
					continue
				}
				out[i] = attach(records[i], p.safeProcessRecord(context.WithoutCancel(ctx), b, records[i]))
				done[i] = true
				p.recordProcessed(runID, i, out[i])
			}
		}()
	}

dispatch:
	for _, i := range eligible {
		select {
		case <-ctx.Done():
			break dispatch
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()

	cancelled := false
	for i := range out {
		if !done[i] {
			cancelled = true
			out[i] = attach(records[i], skipped(errBatchCancelled))
			p.recordProcessed(runID, i, out[i])
		}
	}

	var outcome models.BatchOutcome
	for i := range out {
		outcome.Add(out[i].Extraction)
	}

	if p.reporter != nil {
		p.reporter.RunFinished(runID, outcome, cancelled)
	}

	p.logger.Info().
		Str("run_id", runID).
		Int("attempted", outcome.Attempted).
		Int("succeeded", outcome.Succeeded).
		Int("authenticated", outcome.AuthenticatedCount).
		Int("fallback", outcome.FallbackCount).
		Int("skipped", outcome.SkippedCount).
		Int("managers", outcome.TotalManagersFound).
		Bool("cancelled", cancelled).
		Dur("elapsed", time.Since(startTime)).
		Msg("Batch extraction finished")

	if cancelled {
		return out, outcome, fmt.Errorf("batch %s: %w", runID, context.Cause(ctx))
	}
	return out, outcome, nil
}

// safeProcessRecord turns a panic during one record into a failed result
func (p *Pipeline) safeProcessRecord(ctx context.Context, b *batch, record models.JobRecord) (result models.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			p.logger.Error().
				Str("run_id", b.runID).
				Str("record_id", record.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(buf[:n])).
				Msg("Recovered from panic during extraction")
			result = failedResult(fmt.Errorf("extraction panicked: %v", r))
			result.Method = models.MethodFallback
		}
	}()
	return p.processRecord(ctx, b, record)
}

// processRecord walks the record through the method decision table
func (p *Pipeline) processRecord(ctx context.Context, b *batch, record models.JobRecord) models.ExtractionResult {
	var (
		result    models.ExtractionResult
		attempts  int
		succeeded bool
		state     = stateNotStarted
	)

	for {
		method, next := nextMethod(state, b.authAvailable(), succeeded)
		state = next
		if method == "" {
			break
		}

		var n int
		var err error
		switch method {
		case models.MethodAuthenticated:
			result, n, err = p.extractAuthenticated(ctx, b, record.PostingURL)
		default:
			result, n, err = p.extractFallback(ctx, b, record.PostingURL)
		}
		attempts += n
		succeeded = err == nil
		result.Method = method

		if err != nil {
			p.logger.Warn().
				Str("run_id", b.runID).
				Str("record_id", record.ID).
				Str("method", string(method)).
				Int("attempts", n).
				Err(err).
				Msg("Extraction attempt failed")
		}
	}

	p.logger.Debug().
		Str("run_id", b.runID).
		Str("record_id", record.ID).
		Str("state", state.String()).
		Int("attempts", attempts).
		Msg("Record finished")

	result.Attempts = attempts
	if result.HiringManagers == nil {
		result.HiringManagers = []models.HiringManager{}
	}
	return result
}

// authAvailable reports whether the authenticated handle may be used
func (b *batch) authAvailable() bool {
	if b.auth == nil {
		return false
	}
	return b.auth.CurrentState() == models.AuthStateAuthenticated && !b.auth.IsExpired()
}

// extractAuthenticated holds the authenticated handle for every attempt on
// one record. Only one record uses it at a time.
func (p *Pipeline) extractAuthenticated(ctx context.Context, b *batch, postingURL string) (models.ExtractionResult, int, error) {
	b.authMu.Lock()
	defer b.authMu.Unlock()

	handle, err := b.auth.GetHandle()
	if err != nil {
		return failedResult(err), 0, err
	}

	return b.retry.ExecuteWithRetry(ctx, p.logger, func() (models.ExtractionResult, error) {
		return p.extractor.Extract(ctx, handle, postingURL)
	})
}

// extractFallback uses a fresh headless session owned by this attempt
func (p *Pipeline) extractFallback(ctx context.Context, b *batch, postingURL string) (models.ExtractionResult, int, error) {
	handle := p.newBrowser()
	defer func() {
		if err := handle.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to close fallback browser")
		}
	}()

	if err := handle.Open(ctx, true); err != nil {
		return failedResult(err), 1, err
	}

	return b.retry.ExecuteWithRetry(ctx, p.logger, func() (models.ExtractionResult, error) {
		return p.extractor.Extract(ctx, handle, postingURL)
	})
}

func (p *Pipeline) recordProcessed(runID string, index int, record models.JobRecord) {
	if p.reporter != nil {
		p.reporter.RecordProcessed(runID, index, record)
	}
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func attach(record models.JobRecord, result models.ExtractionResult) models.JobRecord {
	out := record.Clone()
	out.Extraction = &result
	return out
}

func skipped(reason string) models.ExtractionResult {
	return models.ExtractionResult{
		Success:        false,
		HiringManagers: []models.HiringManager{},
		Method:         models.MethodSkipped,
		Error:          reason,
	}
}

func failedResult(err error) models.ExtractionResult {
	msg := "extraction failed"
	if err != nil {
		msg = err.Error()
	}
	return models.ExtractionResult{
		HiringManagers: []models.HiringManager{},
		Error:          msg,
	}
}

// IsCancelled reports whether a Process error came from cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
