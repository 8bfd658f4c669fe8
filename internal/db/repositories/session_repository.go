// session_repository.go implements SessionRepository for browser session
// tokens: creation at login, lookup on every cookie-authenticated request,
// deletion at logout, and expiry sweeping.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/launchboard/launchboard/internal/db/models"
)

// SessionRepository handles session token database operations
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession stores a new session token
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token, user_id, issued_ip, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.Token,
		session.UserID,
		session.IssuedIP,
		session.CreatedAt,
		session.ExpiresAt,
	)
	return err
}

// GetSession retrieves a session by its token
func (r *SessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT token, user_id, issued_ip, created_at, expires_at
		FROM sessions
		WHERE token = $1
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.IssuedIP,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session token (logout). Deleting an unknown token is
// not an error.
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteExpiredSessions removes all sessions past their expiry (for the
// periodic cleanup job) and returns how many were removed.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
