// Package file implements the JSON file Session Store.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// SessionStore keeps the session record in a single JSON file
type SessionStore struct {
	path   string
	window time.Duration
	now    func() time.Time
	logger arbor.ILogger
}

var _ interfaces.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a store at path. A non-positive window uses the 24h default.
func NewSessionStore(path string, window time.Duration, logger arbor.ILogger) *SessionStore {
	if window <= 0 {
		window = models.DefaultFreshnessWindow
	}
	return &SessionStore{
		path:   path,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the time source used by IsFresh
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

// Path returns the backing file location
func (s *SessionStore) Path() string {
	return s.path
}

// Load reads the record. Missing, unreadable or corrupt files yield nil.
func (s *SessionStore) Load(ctx context.Context) *models.SessionRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Session file unreadable, treating as absent")
		}
		return nil
	}

	var record models.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Session file corrupt, treating as absent")
		return nil
	}
	if record.CreatedAt.IsZero() {
		s.logger.Warn().Str("path", s.path).Msg("Session file has no created_at, treating as absent")
		return nil
	}

	return &record
}

// Save writes record atomically via a temp file and rename.
func (s *SessionStore) Save(ctx context.Context, record *models.SessionRecord) (err error) {
	if record == nil {
		return fmt.Errorf("failed to persist session: nil record")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	// Same directory so the rename stays on one filesystem
	tmp, err := os.CreateTemp(dir, "session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err = os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("cookies", len(record.Cookies)).
		Msg("Session saved")
	return nil
}

func (s *SessionStore) IsFresh(record *models.SessionRecord) bool {
	return record.IsFresh(s.now(), s.window)
}

// Delete removes the session file. A missing file is not an error.
func (s *SessionStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
