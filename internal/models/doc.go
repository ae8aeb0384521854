// Package models defines the records shared by the stores, the authorization flow and the token manager.
//
//   - [Session] : an in-flight PKCE handshake, keyed by its anti-forgery state token
//   - [Credential] : the durable per-user record holding the current access and refresh tokens
//   - [Token] : a token endpoint response before it is bound to a user
//   - [Profile] : the identity returned by the provider's profile endpoint
//
// Instants are [time.Time] in memory and unix milliseconds on disk.
package models
