// Package auth implements the PKCE authorization handshake that turns a provider login into a stored credential.
//
// [Flow.BeginAuthorization] records a session (state + code verifier) and returns the provider URL carrying the
// S256 challenge. [Flow.CompleteAuthorization] consumes that session on the redirect back: it exchanges the code,
// reads the provider profile, derives a username and upserts the credential. A session is single use; a state that
// is unknown, already consumed or older than [models.SessionMaxAge] yields [shared.ErrInvalidState].
package auth
