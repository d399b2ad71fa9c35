package models

import "time"

// DefaultFreshnessWindow is the maximum age of a persisted session
const DefaultFreshnessWindow = 24 * time.Hour

// Cookie is a browser cookie captured from or injected into a session
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 for session cookies
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// SessionRecord is the persisted state of one authenticated browser session
type SessionRecord struct {
	Cookies   []Cookie  `json:"cookies"`
	CreatedAt time.Time `json:"created_at"`
	LastURL   string    `json:"last_url,omitempty"`
}

// IsFresh reports whether the record was created less than window ago.
// Records with a zero or future-skewed timestamp beyond window are never fresh.
func (r *SessionRecord) IsFresh(now time.Time, window time.Duration) bool {
	if r == nil || r.CreatedAt.IsZero() {
		return false
	}
	age := now.Sub(r.CreatedAt)
	return age < window && age > -window
}

// Age returns how long ago the record was created
func (r *SessionRecord) Age(now time.Time) time.Duration {
	if r == nil {
		return 0
	}
	return now.Sub(r.CreatedAt)
}
