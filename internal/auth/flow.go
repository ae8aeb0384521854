package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// SessionStore is the part of the session repository the flow uses.
type SessionStore interface {
	Create(ctx context.Context, state, codeVerifier string) error
	Get(ctx context.Context, state string) (*models.Session, error)
	Delete(ctx context.Context, state string) error
}

// CredentialStore is the part of the credential repository the flow uses.
type CredentialStore interface {
	Get(ctx context.Context, username string) (*models.Credential, error)
	Upsert(ctx context.Context, cred *models.Credential) error
}

// Provider is the OAuth2 provider: authorization URL, code exchange and identity lookup.
type Provider interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*models.Token, error)
	UserProfile(ctx context.Context, accessToken string) (*models.Profile, error)
}

// FlowOpts contains the dependencies of a [Flow].
type FlowOpts struct {
	Sessions    SessionStore
	Credentials CredentialStore
	Provider    Provider
	Clock       shared.Clock
	Logger      *log.Logger

	// NewState and NewVerifier default to [shared.GenerateState] and [shared.GenerateVerifier].
	NewState    func() (string, error)
	NewVerifier func() string
}

// Flow is the authorization flow controller.
//
// A handshake moves Started -> Pending (session stored) -> Completed (credential stored, session deleted).
// Abandoned handshakes are never recorded; the janitor sweeps their sessions.
type Flow struct {
	sessions    SessionStore
	credentials CredentialStore
	provider    Provider
	clock       shared.Clock
	logger      *log.Logger
	newState    func() (string, error)
	newVerifier func() string
}

// NewFlow creates a new [Flow].
func NewFlow(opts FlowOpts) *Flow {
	if opts.Clock == nil {
		opts.Clock = shared.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.NewState == nil {
		opts.NewState = shared.GenerateState
	}
	if opts.NewVerifier == nil {
		opts.NewVerifier = shared.GenerateVerifier
	}

	return &Flow{
		sessions:    opts.Sessions,
		credentials: opts.Credentials,
		provider:    opts.Provider,
		clock:       opts.Clock,
		logger:      shared.WithLogger(opts.Logger, "component", "auth"),
		newState:    opts.NewState,
		newVerifier: opts.NewVerifier,
	}
}

// BeginAuthorization starts a handshake: it stores a fresh state/verifier pair and returns the provider URL the
// browser should be sent to, plus the state for logging.
func (f *Flow) BeginAuthorization(ctx context.Context) (redirectURL, state string, err error) {
	state, err = f.newState()
	if err != nil {
		return "", "", err
	}
	verifier := f.newVerifier()

	if err := f.sessions.Create(ctx, state, verifier); err != nil {
		return "", "", fmt.Errorf("failed to store session: %w", err)
	}

	f.logger.Debug("authorization started", "state", state)
	return f.provider.AuthCodeURL(state, verifier), state, nil
}

// CompleteAuthorization finishes the handshake identified by state.
//
// Errors:
//   - [shared.ErrInvalidState] : unknown, replayed or expired state; nothing is written
//   - [shared.ErrTokenExchangeFailed] : the provider did not issue an access token for code
//   - [shared.ErrProfileFetchFailed] : the provider profile could not be read or has no id
func (f *Flow) CompleteAuthorization(ctx context.Context, code, state string) (*models.Credential, error) {
	session, err := f.sessions.Get(ctx, state)
	if errors.Is(err, shared.ErrSessionNotFound) {
		return nil, shared.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if session.Expired(f.clock.Now(), models.SessionMaxAge) {
		return nil, fmt.Errorf("%w: handshake older than %s", shared.ErrInvalidState, models.SessionMaxAge)
	}

	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", shared.ErrTokenExchangeFailed)
	}

	token, err := f.provider.Exchange(ctx, code, session.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrTokenExchangeFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token received", shared.ErrTokenExchangeFailed)
	}

	profile, err := f.provider.UserProfile(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrProfileFetchFailed, err)
	}
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("%w: profile has no id", shared.ErrProfileFetchFailed)
	}

	username, err := f.resolveUsername(ctx, profile)
	if err != nil {
		return nil, err
	}

	now := f.clock.Now()
	cred := &models.Credential{
		Username:     username,
		ProviderID:   profile.ID,
		DisplayName:  profile.DisplayName,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt(now),
		CreatedAt:    now,
	}
	if err := f.credentials.Upsert(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	if err := f.sessions.Delete(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to delete session: %w", err)
	}

	f.logger.Info("authorization completed", "username", username, "provider_id", profile.ID)
	return cred, nil
}

// resolveUsername derives the username for profile. When the derived name already belongs to a different provider
// account, the provider id is appended instead of overwriting that account's credential.
func (f *Flow) resolveUsername(ctx context.Context, profile *models.Profile) (string, error) {
	username := DeriveUsername(profile)

	existing, err := f.credentials.Get(ctx, username)
	switch {
	case errors.Is(err, shared.ErrUserNotFound):
		return username, nil
	case err != nil:
		return "", fmt.Errorf("failed to look up credential: %w", err)
	case existing.ProviderID == profile.ID:
		return username, nil
	}

	disambiguated := username + "-" + profile.ID
	f.logger.Warn("username collision", "username", username, "owner", existing.ProviderID, "provider_id", profile.ID, "using", disambiguated)
	return disambiguated, nil
}

// DeriveUsername lower-cases the display name and strips all whitespace from it, falling back to the provider id
// when that leaves nothing.
func DeriveUsername(profile *models.Profile) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToLower(profile.DisplayName))

	if name == "" {
		return profile.ID
	}
	return name
}
