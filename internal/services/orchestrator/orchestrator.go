// Package orchestrator runs one credentials → auth → extraction pass.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/hirescout/internal/common"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// ConfirmFunc is asked whether the human has finished logging in. attempt
// counts from 1 and lastErr is the previous "not yet" signal, or nil on the
// first call. Returning false abandons authentication for this run.
type ConfirmFunc func(ctx context.Context, attempt int, lastErr error) bool

// BatchProcessor is the extraction pipeline as seen by the orchestrator
type BatchProcessor interface {
	Process(ctx context.Context, runID string, records []models.JobRecord, auth interfaces.AuthSession) ([]models.JobRecord, models.BatchOutcome, error)
}

// MachineFactory creates a fresh auth machine for one run
type MachineFactory func() interfaces.AuthMachine

// RunResult is the outcome of one orchestrated run
type RunResult struct {
	Run     *models.BatchRun
	Records []models.JobRecord
}

// Orchestrator wires the credential source, auth machine and pipeline
type Orchestrator struct {
	pipeline   BatchProcessor
	newMachine MachineFactory
	runs       interfaces.RunStorage
	logger     arbor.ILogger
}

// New creates an orchestrator. runs may be nil to skip run history.
func New(pipeline BatchProcessor, newMachine MachineFactory, runs interfaces.RunStorage, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		pipeline:   pipeline,
		newMachine: newMachine,
		runs:       runs,
		logger:     logger,
	}
}

// Run extracts records for one orchestration run. Authentication is only
// attempted with complete credentials; otherwise every record goes through
// fallback extraction. The auth machine created here is always closed.
func (o *Orchestrator) Run(ctx context.Context, records []models.JobRecord, creds models.Credentials, confirm ConfirmFunc) (*RunResult, error) {
	runID := common.NewRunID()

	if !creds.IsComplete() {
		o.logger.Info().
			Str("run_id", runID).
			Msg("Credentials incomplete, using fallback extraction only")
		return o.Extract(ctx, runID, records, nil)
	}

	machine := o.newMachine()
	defer func() {
		if err := machine.Close(); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to close auth machine")
		}
	}()

	var auth interfaces.AuthSession
	if o.Authenticate(ctx, machine, creds, confirm) {
		auth = machine
	}

	return o.Extract(ctx, runID, records, auth)
}

// Authenticate drives machine from Unauthenticated to Authenticated, asking
// confirm between polls. It reports whether authenticated mode is available.
// On any failure the machine is left cancelled or Failed and the run
// continues in fallback mode.
func (o *Orchestrator) Authenticate(ctx context.Context, machine interfaces.AuthMachine, creds models.Credentials, confirm ConfirmFunc) bool {
	if err := machine.BeginInteractiveAuth(ctx, creds); err != nil {
		o.logger.Warn().
			Err(err).
			Str("state", string(machine.CurrentState())).
			Msg("Authentication unavailable, continuing with fallback extraction")
		return false
	}

	var lastErr error
	for attempt := 1; machine.CurrentState() == models.AuthStateAwaitingManualCompletion; attempt++ {
		if confirm == nil || !confirm(ctx, attempt, lastErr) {
			o.logger.Info().Int("attempts", attempt-1).Msg("Manual login abandoned")
			machine.Cancel()
			return false
		}

		err := machine.ConfirmCompletion(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, interfaces.ErrLoginChallengeUnresolved) {
			o.logger.Warn().Err(err).Msg("Login confirmation failed")
			machine.Cancel()
			return false
		}
		lastErr = err
	}

	return machine.CurrentState() == models.AuthStateAuthenticated
}

// Extract runs the pipeline with an optional auth session and records the run
func (o *Orchestrator) Extract(ctx context.Context, runID string, records []models.JobRecord, auth interfaces.AuthSession) (*RunResult, error) {
	run := &models.BatchRun{
		ID:        runID,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
		AuthMode:  auth != nil,
	}
	o.saveRun(ctx, run)

	out, outcome, err := o.pipeline.Process(ctx, runID, records, auth)

	run.FinishedAt = time.Now()
	run.Outcome = outcome
	switch {
	case err == nil:
		run.Status = models.RunStatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.Status = models.RunStatusCancelled
		run.Error = err.Error()
	default:
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
	}

	if out != nil {
		if data, marshalErr := json.Marshal(out); marshalErr != nil {
			o.logger.Warn().Err(marshalErr).Str("run_id", runID).Msg("Failed to encode run records")
		} else {
			run.RecordsJSON = data
		}
	}
	o.saveRun(context.WithoutCancel(ctx), run)

	if run.Status == models.RunStatusFailed {
		return &RunResult{Run: run, Records: out}, err
	}

	o.logger.Info().
		Str("run_id", runID).
		Str("status", string(run.Status)).
		Bool("auth_mode", run.AuthMode).
		Int("records", len(out)).
		Float64("success_rate", outcome.SuccessRate()).
		Float64("avg_managers_per_job", outcome.AvgManagersPerJob()).
		Msg("Run complete")

	// Cancelled runs still return their partial records
	return &RunResult{Run: run, Records: out}, err
}

func (o *Orchestrator) saveRun(ctx context.Context, run *models.BatchRun) {
	if o.runs == nil {
		return
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		o.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to save run")
	}
}
