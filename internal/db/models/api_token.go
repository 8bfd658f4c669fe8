// api_token.go defines the APIToken model for long-lived bearer credentials.
package models

import "time"

// APIToken represents a programmatic bearer credential. Only the bcrypt hash of
// the secret is stored; TokenPrefix holds the first characters in plaintext so
// authentication can narrow candidates with an indexed query before running the
// expensive bcrypt comparison, and MaskedToken is the only preview ever shown
// after creation.
type APIToken struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Name        string     `db:"name" json:"name"`
	TokenHash   string     `db:"token_hash" json:"-"`
	TokenPrefix string     `db:"token_prefix" json:"-"`
	MaskedToken string     `db:"masked_token" json:"masked_token"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at"`
}
