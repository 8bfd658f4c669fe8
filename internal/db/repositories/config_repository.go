// config_repository.go implements ConfigRepository, which owns Configuration
// and ConfigVersion persistence: optimistic-concurrency saves, gapless version
// numbering, restore, and the loaded-version pointer.
//
// Concurrency model: every operation that reads row state and then writes runs
// in a single transaction, and takes a row lock on the configurations row
// (SELECT ... FOR UPDATE) so "read max version, insert max+1" and "read
// updated_at, compare fence, write" are serialized per (user, config) key.
// The UNIQUE (user_id, config_id, version) constraint is the backstop: a
// collision there means a concurrent writer won the race and the insert
// retries inside a fresh transaction.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/launchboard/launchboard/internal/db/models"
)

// versionInsertRetries bounds the retry loop for the unique-constraint
// backstop. More than one retry only happens under sustained write contention
// on the same (user, config) key.
const versionInsertRetries = 3

// ConfigRepository handles configuration and version snapshot persistence
type ConfigRepository struct {
	db *sqlx.DB
}

// NewConfigRepository creates a new ConfigRepository
func NewConfigRepository(db *sqlx.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get retrieves the live configuration for (user, config); (nil, nil) if absent.
func (r *ConfigRepository) Get(ctx context.Context, userID, configID string) (*models.Configuration, error) {
	query := `
		SELECT user_id, config_id, schema_version, document, loaded_version, created_at, updated_at
		FROM configurations
		WHERE user_id = $1 AND config_id = $2
	`
	cfg := &models.Configuration{}
	err := r.db.GetContext(ctx, cfg, query, userID, configID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Create inserts a new live configuration and seeds version 1 with the same
// document, atomically. Returns ErrConfigExists when a row is already live for
// the pair.
func (r *ConfigRepository) Create(ctx context.Context, userID, configID, schemaVersion string, document json.RawMessage) (*models.Configuration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	query := `
		INSERT INTO configurations (user_id, config_id, schema_version, document, loaded_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	one := 1
	if _, err := tx.ExecContext(ctx, query, userID, configID, schemaVersion, document, &one, now); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConfigExists
		}
		return nil, err
	}

	if err := insertVersion(ctx, tx, userID, configID, 1, document, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &models.Configuration{
		UserID:        userID,
		ConfigID:      configID,
		SchemaVersion: schemaVersion,
		Document:      document,
		LoadedVersion: &one,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Save updates the live document for an existing configuration, advancing
// updated_at. When expectedUpdatedAt is non-nil and does not equal the stored
// value the write is rejected with ErrStaleData and the row is left unchanged.
// Saving also clears the loaded-version pointer: the live document now holds
// edits beyond any snapshot. Propagates sql.ErrNoRows when the configuration
// does not exist; callers map that to 404.
func (r *ConfigRepository) Save(ctx context.Context, userID, configID, schemaVersion string, document json.RawMessage, expectedUpdatedAt *time.Time) (time.Time, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockRow(ctx, tx, userID, configID)
	if err != nil {
		return time.Time{}, err
	}

	if expectedUpdatedAt != nil && !current.Equal(*expectedUpdatedAt) {
		return time.Time{}, ErrStaleData
	}

	now := strictlyAfter(current)
	query := `
		UPDATE configurations
		SET schema_version = $3, document = $4, loaded_version = NULL, updated_at = $5
		WHERE user_id = $1 AND config_id = $2
	`
	if _, err := tx.ExecContext(ctx, query, userID, configID, schemaVersion, document, now); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// Upsert overwrites or creates the live configuration regardless of previous
// state and clears the loaded-version pointer. Used by import, which replaces
// whatever was there.
func (r *ConfigRepository) Upsert(ctx context.Context, userID, configID, schemaVersion string, document json.RawMessage) (time.Time, error) {
	now := time.Now()
	query := `
		INSERT INTO configurations (user_id, config_id, schema_version, document, loaded_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $5)
		ON CONFLICT (user_id, config_id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    document = EXCLUDED.document,
		    loaded_version = NULL,
		    updated_at = GREATEST(EXCLUDED.updated_at, configurations.updated_at + interval '1 microsecond')
		RETURNING updated_at
	`
	var updatedAt time.Time
	if err := r.db.QueryRowContext(ctx, query, userID, configID, schemaVersion, document, now).Scan(&updatedAt); err != nil {
		return time.Time{}, err
	}
	return updatedAt, nil
}

// EnsureConfig idempotently creates a configuration (and its version 1) if the
// pair has none yet. Used to seed the "default" configuration at registration.
func (r *ConfigRepository) EnsureConfig(ctx context.Context, userID, configID, schemaVersion string, document json.RawMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	query := `
		INSERT INTO configurations (user_id, config_id, schema_version, document, loaded_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (user_id, config_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query, userID, configID, schemaVersion, document, now)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted > 0 {
		if err := insertVersion(ctx, tx, userID, configID, 1, document, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateVersion appends a snapshot with version = previous max + 1 (1 when no
// snapshots exist), independent of whether the live document changed. The row
// lock serializes concurrent callers per key; the unique constraint catches
// anything the lock cannot (e.g. a concurrent Create seeding version 1) and
// the insert retries.
func (r *ConfigRepository) CreateVersion(ctx context.Context, userID, configID string, document json.RawMessage) (int, error) {
	var lastErr error
	for attempt := 0; attempt < versionInsertRetries; attempt++ {
		version, err := r.createVersionOnce(ctx, userID, configID, document)
		if err == nil {
			return version, nil
		}
		if !isUniqueViolation(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("version number contention on %s/%s: %w", userID, configID, lastErr)
}

func (r *ConfigRepository) createVersionOnce(ctx context.Context, userID, configID string, document json.RawMessage) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockRow(ctx, tx, userID, configID); err != nil {
		return 0, err
	}

	var maxVersion int
	err = tx.GetContext(ctx, &maxVersion, `
		SELECT COALESCE(MAX(version), 0)
		FROM config_versions
		WHERE user_id = $1 AND config_id = $2
	`, userID, configID)
	if err != nil {
		return 0, err
	}

	next := maxVersion + 1
	if err := insertVersion(ctx, tx, userID, configID, next, document, time.Now()); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}

// ListVersions returns snapshots for (user, config), newest first.
func (r *ConfigRepository) ListVersions(ctx context.Context, userID, configID string, limit int) ([]*models.ConfigVersion, error) {
	query := `
		SELECT id, user_id, config_id, version, document, created_at
		FROM config_versions
		WHERE user_id = $1 AND config_id = $2
		ORDER BY version DESC
		LIMIT $3
	`
	versions := make([]*models.ConfigVersion, 0)
	if err := r.db.SelectContext(ctx, &versions, query, userID, configID, limit); err != nil {
		return nil, err
	}
	return versions, nil
}

// GetVersion retrieves one snapshot; (nil, nil) if absent.
func (r *ConfigRepository) GetVersion(ctx context.Context, userID, configID string, version int) (*models.ConfigVersion, error) {
	query := `
		SELECT id, user_id, config_id, version, document, created_at
		FROM config_versions
		WHERE user_id = $1 AND config_id = $2 AND version = $3
	`
	v := &models.ConfigVersion{}
	err := r.db.GetContext(ctx, v, query, userID, configID, version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// LatestVersionNumber returns the highest version for (user, config), 0 if none.
func (r *ConfigRepository) LatestVersionNumber(ctx context.Context, userID, configID string) (int, error) {
	var maxVersion int
	err := r.db.GetContext(ctx, &maxVersion, `
		SELECT COALESCE(MAX(version), 0)
		FROM config_versions
		WHERE user_id = $1 AND config_id = $2
	`, userID, configID)
	return maxVersion, err
}

// RestoreVersion copies the snapshot's document back into the live
// configuration, advancing updated_at and pointing loaded_version at the
// restored number. Returns (nil, nil) when the version does not exist for the
// pair.
func (r *ConfigRepository) RestoreVersion(ctx context.Context, userID, configID string, version int) (*models.Configuration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snapshot := &models.ConfigVersion{}
	err = tx.GetContext(ctx, snapshot, `
		SELECT id, user_id, config_id, version, document, created_at
		FROM config_versions
		WHERE user_id = $1 AND config_id = $2 AND version = $3
	`, userID, configID, version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	current, err := lockRow(ctx, tx, userID, configID)
	if err != nil {
		return nil, err
	}

	now := strictlyAfter(current)
	cfg := &models.Configuration{}
	err = tx.GetContext(ctx, cfg, `
		UPDATE configurations
		SET document = $3, loaded_version = $4, updated_at = $5
		WHERE user_id = $1 AND config_id = $2
		RETURNING user_id, config_id, schema_version, document, loaded_version, created_at, updated_at
	`, userID, configID, snapshot.Document, version, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetLoadedVersion records which snapshot the live document currently mirrors;
// nil means "live edits beyond any saved version".
func (r *ConfigRepository) SetLoadedVersion(ctx context.Context, userID, configID string, version *int) error {
	query := `
		UPDATE configurations
		SET loaded_version = $3
		WHERE user_id = $1 AND config_id = $2
	`
	_, err := r.db.ExecContext(ctx, query, userID, configID, version)
	return err
}

// ListForUser returns a summary of every configuration the user owns.
func (r *ConfigRepository) ListForUser(ctx context.Context, userID string) ([]models.ConfigListItem, error) {
	query := `
		SELECT c.config_id,
		       c.updated_at,
		       COUNT(v.id) AS version_count
		FROM configurations c
		LEFT JOIN config_versions v
		       ON v.user_id = c.user_id AND v.config_id = c.config_id
		WHERE c.user_id = $1
		GROUP BY c.config_id, c.updated_at
		ORDER BY c.updated_at DESC
	`
	items := make([]models.ConfigListItem, 0)
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, err
	}
	return items, nil
}

// lockRow takes the per-key row lock and returns the current updated_at.
// Propagates sql.ErrNoRows when the configuration does not exist.
func lockRow(ctx context.Context, tx *sqlx.Tx, userID, configID string) (time.Time, error) {
	var updatedAt time.Time
	err := tx.GetContext(ctx, &updatedAt, `
		SELECT updated_at FROM configurations
		WHERE user_id = $1 AND config_id = $2
		FOR UPDATE
	`, userID, configID)
	return updatedAt, err
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, userID, configID string, version int, document json.RawMessage, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO config_versions (id, user_id, config_id, version, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), userID, configID, version, document, createdAt)
	return err
}

// strictlyAfter returns now, nudged forward when the clock has not advanced
// past the stored timestamp (updated_at must strictly increase on every write).
func strictlyAfter(current time.Time) time.Time {
	now := time.Now()
	if !now.After(current) {
		now = current.Add(time.Microsecond)
	}
	return now
}
