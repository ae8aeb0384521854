// Package repositories implements SQLite persistence for handshake sessions and user credentials.
//
// Key Implementations:
//   - [SessionRepository] : state -> code verifier for pending PKCE handshakes, with an age-based sweep
//   - [CredentialRepository] : username -> token record, with a partial token update used by refresh
//
// Both repositories go through [sqlx.DB] and touch exactly one row per statement, so every operation is atomic at the
// record level without explicit transactions. Instants are stored as unix milliseconds.
//
// Lookups of absent records return the [shared.ErrSessionNotFound] and [shared.ErrUserNotFound] sentinels.
package repositories
