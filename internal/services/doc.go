// Package services implements the Spotify client used by the authorization flow, the token manager and the API handlers.
//
// # Token Endpoint
//
// [SpotifyService.Exchange] and [SpotifyService.Refresh] post form-encoded bodies to the accounts service through
// [oauth2.Config] with [oauth2.AuthStyleInParams]:
//
//	authorization_code: client_id, grant_type, code, redirect_uri, code_verifier
//	refresh_token:      client_id, grant_type, refresh_token
//
// Responses are reduced to a [models.Token] holding the raw expires_in lifetime so callers anchor expiry to their own
// clock, and an empty RefreshToken when the response did not rotate it.
//
// # Web API
//
// [SpotifyService.UserProfile], [SpotifyService.CurrentlyPlaying], [SpotifyService.TopTracks] and
// [SpotifyService.RecentlyPlayed] take the bearer token per call; the service holds no per-user state.
//
// # Error Handling
//
//   - [shared.ErrAPIRequest] : transport failure or non-2xx Web API status
//   - [shared.ErrNoAccessToken] : empty bearer token
//   - [shared.ErrMissingCredentials] : client id or redirect URI missing at construction
package services
