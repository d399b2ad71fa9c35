package scheduler

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
)

// ExpirySweepJob is the name of the periodic session freshness check
const ExpirySweepJob = "session_expiry_sweep"

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	runCount    int
	lastError   string
}

// JobStatus is a read-only view of a registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	RunCount    int        `json:"run_count"`
	LastError   string     `json:"last_error,omitempty"`
}

// Service runs named jobs on cron schedules
type Service struct {
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex // Protects running
	jobMu   sync.Mutex // Protects jobs map
	jobs    map[string]*jobEntry
	running bool
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterJob adds a job. Schedules use standard cron syntax or descriptors
// such as "@every 5m".
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	if handler == nil {
		return fmt.Errorf("job %s: handler cannot be nil", name)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// Start begins running registered jobs
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.ListJobs())).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to return
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	<-s.cron.Stop().Done()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunJobNow executes a job synchronously outside its schedule
func (s *Service) RunJobNow(name string) error {
	s.jobMu.Lock()
	_, exists := s.jobs[name]
	s.jobMu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	return s.executeJob(name)
}

// GetJobStatus returns the status of one job
func (s *Service) GetJobStatus(name string) (*JobStatus, error) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	status := s.statusLocked(entry)
	return &status, nil
}

// ListJobs returns every registered job sorted by name
func (s *Service) ListJobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		out = append(out, s.statusLocked(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) statusLocked(entry *jobEntry) JobStatus {
	status := JobStatus{
		Name:        entry.name,
		Schedule:    entry.schedule,
		Description: entry.description,
		LastRun:     entry.lastRun,
		IsRunning:   entry.isRunning,
		RunCount:    entry.runCount,
		LastError:   entry.lastError,
	}
	if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
		status.NextRun = &next
	}
	return status
}

// executeJob runs a job unless a previous run is still in progress
func (s *Service) executeJob(name string) (err error) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job_name", name).Msg("Job still running, skipping this tick")
		return nil
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(buf[:n])).
				Msg("Recovered from panic in scheduled job")
			err = fmt.Errorf("job %s panicked: %v", name, r)
		}

		s.jobMu.Lock()
		entry.isRunning = false
		entry.lastRun = &startTime
		entry.runCount++
		entry.lastError = ""
		if err != nil {
			entry.lastError = err.Error()
		}
		s.jobMu.Unlock()
	}()

	err = handler()
	if err != nil {
		s.logger.Warn().Err(err).Str("job_name", name).Msg("Scheduled job failed")
		return err
	}

	s.logger.Debug().
		Str("job_name", name).
		Dur("elapsed", time.Since(startTime)).
		Msg("Scheduled job completed")
	return nil
}

// NewExpirySweep returns a job handler that re-checks session freshness.
// current yields the auth session in use, or nil when there is none. The
// check drops an expired session to Unauthenticated so the next run
// re-authenticates.
func NewExpirySweep(current func() interfaces.AuthSession, logger arbor.ILogger) func() error {
	return func() error {
		auth := current()
		if auth == nil {
			return nil
		}
		if auth.IsExpired() {
			logger.Info().Msg("Session freshness window exceeded, re-authentication required")
		}
		return nil
	}
}
