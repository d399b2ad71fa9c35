package badger

import (
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
)

// Manager owns the Badger connection and the storages built on it
type Manager struct {
	db      *BadgerDB
	session *SessionStorage
	runs    *RunStorage
	logger  arbor.ILogger
}

// NewManager opens the database at config.Path. window is the session freshness window.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig, window time.Duration) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		session: NewSessionStorage(db, window, logger),
		runs:    NewRunStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// SessionStorage returns the Badger-backed Session Store
func (m *Manager) SessionStorage() *SessionStorage {
	return m.session
}

// RunStorage returns the batch run history storage
func (m *Manager) RunStorage() *RunStorage {
	return m.runs
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
