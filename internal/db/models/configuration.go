// configuration.go defines the Configuration and ConfigVersion models.
package models

import (
	"encoding/json"
	"time"
)

// Configuration is the live home-screen document for one (user, config) pair.
// Exactly one row exists per pair. UpdatedAt strictly advances on every
// successful write and serves as the optimistic-concurrency fence: writers may
// supply the UpdatedAt they last read, and the save is rejected if the stored
// value has moved on.
type Configuration struct {
	UserID        string          `db:"user_id" json:"user_id"`
	ConfigID      string          `db:"config_id" json:"config_id"`
	SchemaVersion string          `db:"schema_version" json:"schema_version"`
	Document      json.RawMessage `db:"document" json:"document"`
	LoadedVersion *int            `db:"loaded_version" json:"loaded_version"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// ConfigVersion is an append-only snapshot of a configuration document.
// Version numbers per (user, config) start at 1 and are gapless; rows are
// never mutated or deleted by normal flows.
type ConfigVersion struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	ConfigID  string          `db:"config_id" json:"config_id"`
	Version   int             `db:"version" json:"version"`
	Document  json.RawMessage `db:"document" json:"document"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ConfigListItem is the per-configuration summary returned by list endpoints.
type ConfigListItem struct {
	ConfigID     string    `db:"config_id" json:"config_id"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	VersionCount int       `db:"version_count" json:"version_count"`
}
