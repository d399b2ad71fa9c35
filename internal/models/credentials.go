package models

import "encoding/json"

// Secret holds a sensitive string. It never renders its value through fmt or JSON.
type Secret string

const redacted = "***"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string {
	return s.String()
}

// MarshalJSON keeps secrets out of API responses and log payloads
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Reveal returns the raw value. Only the browser form fill should call this.
func (s Secret) Reveal() string {
	return string(s)
}

// Credentials are the optional LinkedIn login details supplied by config or manual entry
type Credentials struct {
	email    string
	password Secret
}

// NewCredentials builds an immutable credential pair. Empty strings mean absent.
func NewCredentials(email, password string) Credentials {
	return Credentials{email: email, password: Secret(password)}
}

func (c Credentials) Email() string {
	return c.email
}

func (c Credentials) Password() Secret {
	return c.password
}

func (c Credentials) HasEmail() bool {
	return c.email != ""
}

func (c Credentials) HasPassword() bool {
	return c.password != ""
}

// IsComplete reports whether both fields are present. Incomplete credentials
// restrict a run to fallback extraction.
func (c Credentials) IsComplete() bool {
	return c.HasEmail() && c.HasPassword()
}

func (c Credentials) String() string {
	return "Credentials{email:" + c.email + ", password:" + c.password.String() + "}"
}
