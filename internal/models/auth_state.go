package models

// AuthState is the lifecycle state of the authentication state machine
type AuthState string

const (
	AuthStateUnauthenticated          AuthState = "unauthenticated"
	AuthStateAwaitingManualCompletion AuthState = "awaiting_manual_completion"
	AuthStateAuthenticated            AuthState = "authenticated"
	AuthStateFailed                   AuthState = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s AuthState) IsTerminal() bool {
	return s == AuthStateFailed
}
