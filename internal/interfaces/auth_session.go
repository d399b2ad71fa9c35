package interfaces

import (
	"context"

	"github.com/ternarybob/hirescout/internal/models"
)

// AuthSession is the view of the auth state machine used by the extraction pipeline
type AuthSession interface {
	CurrentState() models.AuthState
	// GetHandle returns the live authenticated browser session
	GetHandle() (BrowserSession, error)
	// IsExpired re-checks freshness and drops to Unauthenticated once exceeded
	IsExpired() bool
}

// AuthMachine is the full public contract of the auth state machine
type AuthMachine interface {
	AuthSession
	BeginInteractiveAuth(ctx context.Context, creds models.Credentials) error
	// ConfirmCompletion polls the browser once. It returns ErrLoginChallengeUnresolved
	// while the human has not finished logging in.
	ConfirmCompletion(ctx context.Context) error
	Cancel() error
	Close() error
}
