package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/interfaces"
	"github.com/ternarybob/hirescout/internal/models"
)

// Manager owns the long-lived auth machine of a serving process. A Failed
// machine is terminal, so the next Begin replaces it with a new instance.
type Manager struct {
	newMachine func() *Machine
	defaults   models.Credentials
	logger     arbor.ILogger

	mu      sync.Mutex
	machine *Machine
}

// NewManager creates a manager. defaults fill credential fields a caller
// leaves empty.
func NewManager(newMachine func() *Machine, defaults models.Credentials, logger arbor.ILogger) *Manager {
	return &Manager{
		newMachine: newMachine,
		defaults:   defaults,
		logger:     logger,
	}
}

// State reports the current machine state. No machine means Unauthenticated.
func (m *Manager) State() models.AuthState {
	if machine := m.current(); machine != nil {
		return machine.CurrentState()
	}
	return models.AuthStateUnauthenticated
}

// Session returns the machine for extraction use, or nil when none exists
func (m *Manager) Session() interfaces.AuthSession {
	machine := m.current()
	if machine == nil {
		return nil
	}
	return machine
}

// Begin starts interactive authentication, creating a machine as needed
func (m *Manager) Begin(ctx context.Context, creds models.Credentials) error {
	merged := m.merge(creds)

	m.mu.Lock()
	if m.machine == nil || m.machine.CurrentState() == models.AuthStateFailed {
		if m.machine != nil {
			m.logger.Info().Msg("Replacing failed auth machine")
		}
		m.machine = m.newMachine()
	}
	machine := m.machine
	m.mu.Unlock()

	return machine.BeginInteractiveAuth(ctx, merged)
}

// Confirm polls the browser once for a completed login
func (m *Manager) Confirm(ctx context.Context) error {
	machine := m.current()
	if machine == nil {
		return fmt.Errorf("%w: no login in progress", interfaces.ErrInvalidAuthState)
	}
	return machine.ConfirmCompletion(ctx)
}

// Cancel abandons a login in progress or drops the current session
func (m *Manager) Cancel() error {
	if machine := m.current(); machine != nil {
		return machine.Cancel()
	}
	return nil
}

// Close releases the browser held by the machine
func (m *Manager) Close() error {
	if machine := m.current(); machine != nil {
		return machine.Close()
	}
	return nil
}

// HasDefaultCredentials reports whether configured credentials are complete
func (m *Manager) HasDefaultCredentials() bool {
	return m.defaults.IsComplete()
}

func (m *Manager) current() *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine
}

func (m *Manager) merge(creds models.Credentials) models.Credentials {
	email := creds.Email()
	if email == "" {
		email = m.defaults.Email()
	}
	password := creds.Password().Reveal()
	if password == "" {
		password = m.defaults.Password().Reveal()
	}
	return models.NewCredentials(email, password)
}
