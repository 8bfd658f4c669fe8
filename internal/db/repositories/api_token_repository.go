// api_token_repository.go implements APITokenRepository, providing database
// queries for API token creation, prefix lookup during bearer authentication,
// owner-scoped revocation, and last-used timestamp updates.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/launchboard/launchboard/internal/db/models"
)

// APITokenRepository handles API token database operations
type APITokenRepository struct {
	db *sql.DB
}

// NewAPITokenRepository creates a new APITokenRepository
func NewAPITokenRepository(db *sql.DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

// CreateToken creates a new API token record
func (r *APITokenRepository) CreateToken(ctx context.Context, token *models.APIToken) error {
	token.ID = uuid.New().String()
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO api_tokens (id, user_id, name, token_hash, token_prefix, masked_token, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Name,
		token.TokenHash,
		token.TokenPrefix,
		token.MaskedToken,
		token.CreatedAt,
		token.LastUsedAt,
	)
	return err
}

// GetTokensByPrefix retrieves API tokens matching a lookup prefix (for bearer
// authentication). The prefix narrows the candidate set so the caller runs the
// expensive bcrypt comparison on a few rows instead of the whole table.
func (r *APITokenRepository) GetTokensByPrefix(ctx context.Context, prefix string) ([]*models.APIToken, error) {
	query := `
		SELECT id, user_id, name, token_hash, token_prefix, masked_token, created_at, last_used_at
		FROM api_tokens
		WHERE token_prefix = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*models.APIToken, 0)
	for rows.Next() {
		tok := &models.APIToken{}
		err := rows.Scan(
			&tok.ID,
			&tok.UserID,
			&tok.Name,
			&tok.TokenHash,
			&tok.TokenPrefix,
			&tok.MaskedToken,
			&tok.CreatedAt,
			&tok.LastUsedAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// ListTokensByUser retrieves all API tokens owned by a user, newest first.
func (r *APITokenRepository) ListTokensByUser(ctx context.Context, userID string) ([]*models.APIToken, error) {
	query := `
		SELECT id, user_id, name, token_hash, token_prefix, masked_token, created_at, last_used_at
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]*models.APIToken, 0)
	for rows.Next() {
		tok := &models.APIToken{}
		err := rows.Scan(
			&tok.ID,
			&tok.UserID,
			&tok.Name,
			&tok.TokenHash,
			&tok.TokenPrefix,
			&tok.MaskedToken,
			&tok.CreatedAt,
			&tok.LastUsedAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

// UpdateLastUsed updates the last_used_at timestamp for a token
func (r *APITokenRepository) UpdateLastUsed(ctx context.Context, tokenID string) error {
	query := `UPDATE api_tokens SET last_used_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, tokenID, time.Now())
	return err
}

// RevokeToken deletes a token, scoped to its owner so one user can never
// revoke another's token. Returns false when nothing was deleted (unknown id
// or different owner) — callers map that to 404.
func (r *APITokenRepository) RevokeToken(ctx context.Context, tokenID, ownerUserID string) (bool, error) {
	if _, err := uuid.Parse(tokenID); err != nil {
		return false, nil
	}
	query := `DELETE FROM api_tokens WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, tokenID, ownerUserID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
