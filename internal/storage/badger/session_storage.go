package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// sessionKey is the single slot the session record lives in
const sessionKey = "linkedin"

// SessionStorage implements interfaces.SessionStore on Badger
type SessionStorage struct {
	db     *BadgerDB
	window time.Duration
	now    func() time.Time
	logger arbor.ILogger
}

var _ interfaces.SessionStore = (*SessionStorage)(nil)

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, window time.Duration, logger arbor.ILogger) *SessionStorage {
	if window <= 0 {
		window = models.DefaultFreshnessWindow
	}
	return &SessionStorage{
		db:     db,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

// Load returns the stored record or nil. Read failures are logged, not returned.
func (s *SessionStorage) Load(ctx context.Context) *models.SessionRecord {
	var record models.SessionRecord
	if err := s.db.Store().Get(sessionKey, &record); err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Stored session unreadable, treating as absent")
		}
		return nil
	}
	if record.CreatedAt.IsZero() {
		return nil
	}
	return &record
}

func (s *SessionStorage) Save(ctx context.Context, record *models.SessionRecord) error {
	if record == nil {
		return fmt.Errorf("failed to store session: nil record")
	}
	// Upsert replaces the value in one transaction
	if err := s.db.Store().Upsert(sessionKey, record); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *SessionStorage) IsFresh(record *models.SessionRecord) bool {
	return record.IsFresh(s.now(), s.window)
}

func (s *SessionStorage) Delete(ctx context.Context) error {
	if err := s.db.Store().Delete(sessionKey, &models.SessionRecord{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
