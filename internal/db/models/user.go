// Package models defines the database model types for the Launchboard server.
// Each type corresponds to a database table and uses struct tags for both JSON
// serialization and sqlx row scanning.
// Models are pure data types — business logic belongs in the service layer,
// query logic belongs in the repositories layer.
package models

import "time"

// User represents a registered account. The password hash never leaves the
// repository layer in API responses.
type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	LastConfigID *string   `db:"last_config_id" json:"last_config_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
