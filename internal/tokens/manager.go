package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/sync/singleflight"
)

// CredentialStore is the part of the credential repository the manager uses.
type CredentialStore interface {
	Get(ctx context.Context, username string) (*models.Credential, error)
	UpdateTokens(ctx context.Context, username, accessToken, refreshToken string, expiresAt time.Time) error
}

// Refresher performs the refresh_token grant.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.Token, error)
}

type ManagerOpts struct {
	Credentials CredentialStore
	Provider    Refresher
	Clock       shared.Clock
	Logger      *log.Logger
	Skew        time.Duration // defaults to [models.RefreshSkew]
}

// Manager is the token lifecycle manager.
type Manager struct {
	credentials CredentialStore
	provider    Refresher
	clock       shared.Clock
	logger      *log.Logger
	skew        time.Duration
	group       singleflight.Group
}

func NewManager(opts ManagerOpts) *Manager {
	if opts.Clock == nil {
		opts.Clock = shared.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Skew <= 0 {
		opts.Skew = models.RefreshSkew
	}

	return &Manager{
		credentials: opts.Credentials,
		provider:    opts.Provider,
		clock:       opts.Clock,
		logger:      shared.WithLogger(opts.Logger, "component", "tokens"),
		skew:        opts.Skew,
	}
}

// GetValidAccessToken returns an access token for username, refreshing it when it expires within the skew window.
//
// Only [shared.ErrUserNotFound] and storage read failures are returned; refresh failures fall back to the stored token.
func (m *Manager) GetValidAccessToken(ctx context.Context, username string) (string, error) {
	cred, err := m.credentials.Get(ctx, username)
	if err != nil {
		return "", err
	}

	if !cred.NeedsRefresh(m.clock.Now(), m.skew) {
		return cred.AccessToken, nil
	}

	token, err := m.refresh(ctx, username, false)
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, shared.ErrUserNotFound):
		return "", err
	default:
		m.logger.Warn("refresh failed, using stored token", "username", username, "expires_at", cred.ExpiresAt, "error", err)
		return cred.AccessToken, nil
	}
}

// Refresh unconditionally refreshes the credential of username and returns the new access token.
//
// Errors:
//   - [shared.ErrUserNotFound] : no credential for username
//   - [shared.ErrNoRefreshToken] : the credential has no refresh token; the provider is not contacted
//   - [shared.ErrRefreshFailed] : the provider rejected the grant or returned no access token
//
// A failed refresh leaves the credential untouched.
func (m *Manager) Refresh(ctx context.Context, username string) (string, error) {
	return m.refresh(ctx, username, true)
}

type flight struct {
	token     string
	refreshed bool
}

// refresh runs at most one refresh per username at a time. Callers that join an in-flight refresh share its result,
// except that a forced caller which joined a flight that found the token fresh starts its own.
func (m *Manager) refresh(ctx context.Context, username string, force bool) (string, error) {
	ctx = context.WithoutCancel(ctx)

	for {
		v, err, joined := m.group.Do(username, func() (any, error) {
			cred, err := m.credentials.Get(ctx, username)
			if err != nil {
				return flight{}, err
			}
			if !force && !cred.NeedsRefresh(m.clock.Now(), m.skew) {
				return flight{token: cred.AccessToken}, nil
			}
			token, err := m.exchange(ctx, cred)
			return flight{token: token, refreshed: err == nil}, err
		})
		if err != nil {
			return "", err
		}

		result := v.(flight)
		if joined {
			m.logger.Debug("joined in-flight refresh", "username", username, "refreshed", result.refreshed)
		}
		if force && !result.refreshed {
			continue
		}
		return result.token, nil
	}
}

func (m *Manager) exchange(ctx context.Context, cred *models.Credential) (string, error) {
	if !cred.CanRefresh() {
		return "", fmt.Errorf("%w: %s", shared.ErrNoRefreshToken, cred.Username)
	}

	token, err := m.provider.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token received", shared.ErrRefreshFailed)
	}

	expiresAt := token.ExpiresAt(m.clock.Now())
	if err := m.credentials.UpdateTokens(ctx, cred.Username, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}

	m.logger.Info("token refreshed", "username", cred.Username, "expires_at", expiresAt, "rotated", token.RefreshToken != "")
	return token.AccessToken, nil
}
