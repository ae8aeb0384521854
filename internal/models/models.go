package models

import (
	"time"
)

const (
	// SessionMaxAge is how long a handshake stays usable after it starts.
	SessionMaxAge = 10 * time.Minute
	// RefreshSkew is subtracted from a credential's expiry to trigger early renewal.
	RefreshSkew = 60 * time.Second
)

// Session is a pending PKCE authorization handshake.
type Session struct {
	State        string
	CodeVerifier string
	CreatedAt    time.Time
}

// Expired reports whether the session is older than maxAge at now.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	return s.CreatedAt.Before(now.Add(-maxAge))
}

// Credential is the persistent token record for one username.
type Credential struct {
	Username     string
	ProviderID   string
	DisplayName  string
	AccessToken  string
	RefreshToken string    // empty when the provider never issued one
	ExpiresAt    time.Time // accessToken is invalid from this instant on
	CreatedAt    time.Time // reset on every re-authorization
}

// NeedsRefresh reports whether now falls inside the skew window before ExpiresAt (or past it).
func (c *Credential) NeedsRefresh(now time.Time, skew time.Duration) bool {
	return !now.Before(c.ExpiresAt.Add(-skew))
}

// CanRefresh reports whether a refresh token is on record.
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// Token is the useful part of a token endpoint response.
type Token struct {
	AccessToken  string
	RefreshToken string        // empty when the response omitted refresh_token
	ExpiresIn    time.Duration // provider lifetime, relative to issuance
}

// ExpiresAt anchors the relative lifetime at now.
func (t *Token) ExpiresAt(now time.Time) time.Time {
	return now.Add(t.ExpiresIn)
}

// Profile is the provider identity of the authorizing user.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
