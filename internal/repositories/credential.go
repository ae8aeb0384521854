package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/jmoiron/sqlx"
)

const credentialColumns = `username, provider_id, display_name, access_token, refresh_token, expires_at, created_at`

type credentialRow struct {
	Username     string `db:"username"`
	ProviderID   string `db:"provider_id"`
	DisplayName  string `db:"display_name"`
	AccessToken  string `db:"access_token"`
	RefreshToken string `db:"refresh_token"`
	ExpiresAt    int64  `db:"expires_at"`
	CreatedAt    int64  `db:"created_at"`
}

func newCredentialRow(c *models.Credential) credentialRow {
	return credentialRow{
		Username:     c.Username,
		ProviderID:   c.ProviderID,
		DisplayName:  c.DisplayName,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    toMillis(c.ExpiresAt),
		CreatedAt:    toMillis(c.CreatedAt),
	}
}

func (r credentialRow) model() *models.Credential {
	return &models.Credential{
		Username:     r.Username,
		ProviderID:   r.ProviderID,
		DisplayName:  r.DisplayName,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    fromMillis(r.ExpiresAt),
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// CredentialRepository persists one token record per username.
type CredentialRepository struct {
	db *sqlx.DB
}

// NewCredentialRepository creates a new [CredentialRepository] with the given database connection
func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get retrieves the credential for username. Returns [shared.ErrUserNotFound] if there is none.
func (r *CredentialRepository) Get(ctx context.Context, username string) (*models.Credential, error) {
	var row credentialRow
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE username = ?`

	err := r.db.GetContext(ctx, &row, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return row.model(), nil
}

// Upsert replaces the whole record for cred.Username, inserting it if absent.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	if cred.Username == "" {
		return fmt.Errorf("%w: empty username", shared.ErrInvalidArgument)
	}

	query := `
		INSERT OR REPLACE INTO credentials (` + credentialColumns + `)
		VALUES (:username, :provider_id, :display_name, :access_token, :refresh_token, :expires_at, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, newCredentialRow(cred)); err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// UpdateTokens stores a refreshed token set for username.
//
// An empty refreshToken keeps the stored one. Returns [shared.ErrUserNotFound] when no row matches.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, username, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE credentials
		SET access_token = ?, refresh_token = COALESCE(NULLIF(?, ''), refresh_token), expires_at = ?
		WHERE username = ?
	`

	result, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, toMillis(expiresAt), username)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	return nil
}

// List returns every credential ordered by username.
func (r *CredentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	var rows []credentialRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+credentialColumns+` FROM credentials ORDER BY username ASC`); err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}

	creds := make([]*models.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, row.model())
	}
	return creds, nil
}

// Delete removes the credential for username. Administrative only; nothing in the token lifecycle deletes credentials.
func (r *CredentialRepository) Delete(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrUserNotFound, username)
	}
	return nil
}
