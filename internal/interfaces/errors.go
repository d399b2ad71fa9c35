package interfaces

import (
	"context"
	"errors"
)

// Authentication lifecycle errors
var (
	// ErrDriverUnavailable means the browser engine could not start. Fatal for the auth machine.
	ErrDriverUnavailable = errors.New("browser driver unavailable")
	// ErrLoginChallengeUnresolved is the retry signal from confirm: login or challenge still pending
	ErrLoginChallengeUnresolved = errors.New("login challenge not yet completed")
	// ErrSessionExpired means the authenticated session passed its freshness window
	ErrSessionExpired   = errors.New("session expired")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidAuthState = errors.New("operation not allowed in current auth state")
	ErrAuthFailed       = errors.New("auth machine failed")
	ErrAuthInProgress   = errors.New("interactive authentication in progress")
)

// Per-record extraction errors
var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrPageParseEmpty    = errors.New("page content empty")
)

var (
	ErrNoSession     = errors.New("no stored session")
	ErrRunNotFound   = errors.New("run not found")
	// ErrRunInProgress refuses work that would share the browser with an active run
	ErrRunInProgress = errors.New("an extraction run is already in progress")
)

// IsTransient reports whether a per-record failure is worth retrying
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNavigationTimeout) ||
		errors.Is(err, ErrPageParseEmpty) ||
		errors.Is(err, context.DeadlineExceeded)
}
