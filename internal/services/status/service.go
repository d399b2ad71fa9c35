package status

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// Snapshot is the status view served to the UI and CLI
type Snapshot struct {
	AuthState         models.AuthState     `json:"auth_state"`
	Running           bool                 `json:"running"`
	RunID             string               `json:"run_id,omitempty"`
	Processed         int                  `json:"processed"`
	Total             int                  `json:"total"`
	Outcome           models.BatchOutcome  `json:"outcome"`
	LastOutcome       *models.BatchOutcome `json:"last_outcome,omitempty"`
	LastCancelled     bool                 `json:"last_cancelled"`
	SuccessRate       float64              `json:"success_rate"`
	AvgManagersPerJob float64              `json:"avg_managers_per_job"`
	Timestamp         time.Time            `json:"timestamp"`
}

// Service tracks auth state and batch progress. It implements
// interfaces.ProgressReporter and republishes progress on the event bus.
type Service struct {
	mu           sync.RWMutex
	eventService interfaces.EventService
	logger       arbor.ILogger
	authSource   func() models.AuthState

	authState     models.AuthState
	runID         string
	running       bool
	processed     int
	total         int
	outcome       models.BatchOutcome
	lastOutcome   *models.BatchOutcome
	lastCancelled bool
}

var _ interfaces.ProgressReporter = (*Service)(nil)

// NewService creates a status service. eventService may be nil.
func NewService(eventService interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		eventService: eventService,
		logger:       logger,
		authState:    models.AuthStateUnauthenticated,
	}
}

// SetAuthSource makes snapshots read auth state from source rather than
// from the last observed event
func (s *Service) SetAuthSource(source func() models.AuthState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authSource = source
}

// SubscribeToAuthEvents follows auth_state_changed events
func (s *Service) SubscribeToAuthEvents() error {
	if s.eventService == nil {
		return nil
	}
	return s.eventService.Subscribe(interfaces.EventAuthStateChanged, func(ctx context.Context, event interfaces.Event) error {
		payload, ok := event.Payload.(map[string]interface{})
		if !ok {
			return nil
		}
		state, ok := payload["state"].(string)
		if !ok {
			return nil
		}

		s.mu.Lock()
		s.authState = models.AuthState(state)
		s.mu.Unlock()

		s.publish(interfaces.EventStatusChanged, map[string]interface{}{
			"state": state,
		})
		return nil
	})
}

// AuthState returns the latest known auth state
func (s *Service) AuthState() models.AuthState {
	s.mu.RLock()
	source := s.authSource
	state := s.authState
	s.mu.RUnlock()

	if source != nil {
		return source()
	}
	return state
}

// RunStarted resets progress counters for a new run
func (s *Service) RunStarted(runID string, total int) {
	s.mu.Lock()
	s.runID = runID
	s.running = true
	s.processed = 0
	s.total = total
	s.outcome = models.BatchOutcome{}
	s.mu.Unlock()

	s.publish(interfaces.EventRunStarted, map[string]interface{}{
		"run_id": runID,
		"total":  total,
		"status": string(models.RunStatusRunning),
	})
}

// RecordProcessed folds one finished record into the running counters
func (s *Service) RecordProcessed(runID string, index int, record models.JobRecord) {
	s.mu.Lock()
	if runID == s.runID {
		s.processed++
		s.outcome.Add(record.Extraction)
	}
	s.mu.Unlock()

	payload := map[string]interface{}{
		"run_id":    runID,
		"index":     index,
		"record_id": record.ID,
	}
	if record.Extraction != nil {
		payload["method"] = string(record.Extraction.Method)
		payload["success"] = record.Extraction.Success
		payload["managers"] = len(record.Extraction.HiringManagers)
	}
	s.publish(interfaces.EventRecordProcessed, payload)
}

// RunFinished records the final outcome of a run
func (s *Service) RunFinished(runID string, outcome models.BatchOutcome, cancelled bool) {
	status := models.RunStatusCompleted
	if cancelled {
		status = models.RunStatusCancelled
	}

	s.mu.Lock()
	if runID == s.runID {
		s.running = false
		s.outcome = outcome
	}
	final := outcome
	s.lastOutcome = &final
	s.lastCancelled = cancelled
	s.mu.Unlock()

	s.logger.Info().
		Str("run_id", runID).
		Str("status", string(status)).
		Int("attempted", outcome.Attempted).
		Int("jobs_with_managers", outcome.JobsWithManagers).
		Float64("success_rate", outcome.SuccessRate()).
		Msg("Extraction run finished")

	s.publish(interfaces.EventRunFinished, map[string]interface{}{
		"run_id":  runID,
		"status":  string(status),
		"outcome": outcome,
	})
}

// Snapshot returns a consistent copy of the current status
func (s *Service) Snapshot() Snapshot {
	authState := s.AuthState()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		AuthState:     authState,
		Running:       s.running,
		RunID:         s.runID,
		Processed:     s.processed,
		Total:         s.total,
		Outcome:       s.outcome,
		LastCancelled: s.lastCancelled,
		Timestamp:     time.Now(),
	}
	if s.lastOutcome != nil {
		last := *s.lastOutcome
		snap.LastOutcome = &last
	}

	stats := s.outcome
	if !s.running && s.lastOutcome != nil {
		stats = *s.lastOutcome
	}
	snap.SuccessRate = stats.SuccessRate()
	snap.AvgManagersPerJob = stats.AvgManagersPerJob()
	return snap
}

func (s *Service) publish(eventType interfaces.EventType, payload map[string]interface{}) {
	if s.eventService == nil {
		return
	}
	if err := s.eventService.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish status event")
	}
}
