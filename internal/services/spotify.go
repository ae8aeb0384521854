package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultTimeout = 15 * time.Second
)

// Scopes requested during authorization.
var Scopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
	"user-top-read",
	"user-read-recently-played",
	"user-read-private",
	"user-read-email",
}

// Endpoints holds the provider URLs; empty fields fall back to Spotify production.
type Endpoints struct {
	AuthURL  string
	TokenURL string
	APIURL   string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.AuthURL == "" {
		e.AuthURL = spotifyAuthURL
	}
	if e.TokenURL == "" {
		e.TokenURL = spotifyTokenURL
	}
	if e.APIURL == "" {
		e.APIURL = spotifyBaseURL
	}
	return e
}

// SpotifyOpts configures a [SpotifyService].
type SpotifyOpts struct {
	Credentials shared.SpotifyConfig
	Endpoints   Endpoints
	HTTPClient  *http.Client
}

// SpotifyService talks to the Spotify token endpoint (authorization_code and refresh_token grants) and the Web API.
//
// Token endpoint calls go through [oauth2.Config] as a public PKCE client: the form body carries client_id, grant_type
// and the grant fields, never a client secret.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify client.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	creds := opts.Credentials
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	endpoints := opts.Endpoints.withDefaults()

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	config := &oauth2.Config{
		ClientID:    creds.ClientID,
		RedirectURL: creds.RedirectURI,
		Scopes:      Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   endpoints.AuthURL,
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	return &SpotifyService{
		config:     config,
		apiURL:     endpoints.APIURL,
		httpClient: client,
	}, nil
}

// AuthCodeURL returns the authorization URL for state, carrying the S256 challenge derived from verifier.
func (s *SpotifyService) AuthCodeURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code and its PKCE verifier for tokens.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*models.Token, error) {
	tok, err := s.config.Exchange(s.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return newToken(tok), nil
}

// Refresh mints a new access token from refreshToken.
//
// The returned RefreshToken is empty when the response did not rotate it.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*models.Token, error) {
	src := s.config.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return newToken(tok), nil
}

// UserProfile retrieves the profile of the user owning accessToken.
func (s *SpotifyService) UserProfile(ctx context.Context, accessToken string) (*models.Profile, error) {
	var profile models.Profile
	if _, err := s.doRequest(ctx, accessToken, "/me", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CurrentlyPlaying returns the user's current playback, or nil when nothing is playing (204/404).
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context, accessToken string) (*SpotifyCurrentlyPlaying, error) {
	var playing SpotifyCurrentlyPlaying
	status, err := s.doRequest(ctx, accessToken, "/me/player/currently-playing", &playing)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || status == http.StatusNotFound || playing.Item == nil {
		return nil, nil
	}
	return &playing, nil
}

// TopTracks returns the user's top tracks for timeRange (short_term, medium_term, long_term).
func (s *SpotifyService) TopTracks(ctx context.Context, accessToken string, limit int, timeRange string) ([]SpotifyTrack, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(limit)))
	q.Set("time_range", timeRange)

	var page pagedTracks
	if _, err := s.doRequest(ctx, accessToken, "/me/top/tracks?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// RecentlyPlayed returns the user's most recently played tracks.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]SpotifyPlayHistory, error) {
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", clampLimit(limit))

	var page pagedPlayHistory
	if _, err := s.doRequest(ctx, accessToken, endpoint, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// doRequest performs a bearer-authenticated GET against the Web API.
//
// 204 and 404 are returned as statuses without an error and without decoding.
func (s *SpotifyService) doRequest(ctx context.Context, accessToken, endpoint string, result any) (int, error) {
	if accessToken == "" {
		return 0, shared.ErrNoAccessToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return resp.StatusCode, fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// clientContext routes oauth2 token requests through s.httpClient.
func (s *SpotifyService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// newToken reads the raw response fields instead of the oauth2 conveniences: the refresher copies the old refresh
// token into responses that omit one, and Expiry is stamped from the wall clock rather than the injected one.
func newToken(tok *oauth2.Token) *models.Token {
	refresh, _ := tok.Extra("refresh_token").(string)

	return &models.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresIn:    time.Duration(expiresInSeconds(tok)) * time.Second,
	}
}

func expiresInSeconds(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	if limit > 50 {
		return 50
	}
	return limit
}
