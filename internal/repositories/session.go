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

type sessionRow struct {
	State        string `db:"state"`
	CodeVerifier string `db:"code_verifier"`
	CreatedAt    int64  `db:"created_at"`
}

func (r sessionRow) model() *models.Session {
	return &models.Session{
		State:        r.State,
		CodeVerifier: r.CodeVerifier,
		CreatedAt:    fromMillis(r.CreatedAt),
	}
}

// SessionRepository persists pending PKCE handshakes.
type SessionRepository struct {
	db    *sqlx.DB
	clock shared.Clock
}

// NewSessionRepository creates a new [SessionRepository]. A nil clock means wall time.
func NewSessionRepository(db *sqlx.DB, clock shared.Clock) *SessionRepository {
	if clock == nil {
		clock = shared.NewClock()
	}
	return &SessionRepository{db: db, clock: clock}
}

// Create stores the verifier for state, replacing any session already using that state.
func (r *SessionRepository) Create(ctx context.Context, state, codeVerifier string) error {
	query := `INSERT OR REPLACE INTO sessions (state, code_verifier, created_at) VALUES (?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, state, codeVerifier, toMillis(r.clock.Now())); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get looks up the session for state. Returns [shared.ErrSessionNotFound] if there is none.
func (r *SessionRepository) Get(ctx context.Context, state string) (*models.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `SELECT state, code_verifier, created_at FROM sessions WHERE state = ?`, state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return row.model(), nil
}

// Delete removes the session for state; deleting an unknown state is not an error.
func (r *SessionRepository) Delete(ctx context.Context, state string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE state = ?`, state); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SweepOlderThan deletes every session created before now - maxAge and returns how many were removed.
func (r *SessionRepository) SweepOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := toMillis(r.clock.Now().Add(-maxAge))

	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// Count returns the number of stored sessions, live or not yet swept.
func (r *SessionRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
