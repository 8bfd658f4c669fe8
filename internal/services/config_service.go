// Package services holds domain logic that spans repositories: the
// configuration lifecycle (create, save, snapshot, restore) and the schema
// migration pipeline behind import.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/homescreen"
	"github.com/launchboard/launchboard/internal/telemetry"
)

// Service-level sentinels. Handlers map these onto the error-code taxonomy.
// Validation failures are returned as *homescreen.ValidationError so handlers
// can surface the offending field.
var (
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrConfigExists    = repositories.ErrConfigExists
	ErrStaleData       = repositories.ErrStaleData
)

func invalidConfigID(err error) error {
	return &homescreen.ValidationError{Field: "configId", Message: err.Error()}
}

// ConfigService coordinates configuration persistence, versioning, and the
// import/export pipeline.
type ConfigService struct {
	configRepo *repositories.ConfigRepository
	userRepo   *repositories.UserRepository
	logger     *slog.Logger
}

func NewConfigService(configRepo *repositories.ConfigRepository, userRepo *repositories.UserRepository, logger *slog.Logger) *ConfigService {
	return &ConfigService{configRepo: configRepo, userRepo: userRepo, logger: logger}
}

// Get returns a user's configuration.
func (s *ConfigService) Get(ctx context.Context, userID, configID string) (*models.Configuration, error) {
	if err := homescreen.ValidateConfigID(configID); err != nil {
		return nil, invalidConfigID(err)
	}

	cfg, err := s.configRepo.Get(ctx, userID, configID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

// Create records a new named configuration seeded with the default document.
// The first version snapshot is written in the same transaction.
func (s *ConfigService) Create(ctx context.Context, userID, configID string) (*models.Configuration, error) {
	if err := homescreen.ValidateConfigID(configID); err != nil {
		return nil, invalidConfigID(err)
	}

	doc, err := defaultDocument()
	if err != nil {
		return nil, err
	}
	cfg, err := s.configRepo.Create(ctx, userID, configID, homescreen.CurrentSchemaVersion, doc)
	if err != nil {
		return nil, err
	}
	s.logger.Info("configuration created", "user_id", userID, "config_id", configID)
	return cfg, nil
}

// Save validates and persists the working document. expectedUpdatedAt carries
// the caller's last-seen timestamp; a mismatch means someone else saved in
// between and the write is refused with ErrStaleData rather than silently
// clobbered.
func (s *ConfigService) Save(ctx context.Context, userID, configID string, data json.RawMessage, expectedUpdatedAt *time.Time) (time.Time, error) {
	normalized, err := s.validateDocument(configID, data)
	if err != nil {
		telemetry.ConfigSavesTotal.WithLabelValues("invalid").Inc()
		return time.Time{}, err
	}

	updatedAt, err := s.configRepo.Save(ctx, userID, configID, homescreen.CurrentSchemaVersion, normalized, expectedUpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		telemetry.ConfigSavesTotal.WithLabelValues("invalid").Inc()
		return time.Time{}, ErrConfigNotFound
	case errors.Is(err, repositories.ErrStaleData):
		telemetry.ConfigSavesTotal.WithLabelValues("conflict").Inc()
		return time.Time{}, ErrStaleData
	case err != nil:
		return time.Time{}, err
	}

	telemetry.ConfigSavesTotal.WithLabelValues("ok").Inc()
	return updatedAt, nil
}

// SaveVersion snapshots the current working document as the next version
// number. Numbers are assigned gaplessly per (user, config).
func (s *ConfigService) SaveVersion(ctx context.Context, userID, configID string) (*models.ConfigVersion, error) {
	cfg, err := s.Get(ctx, userID, configID)
	if err != nil {
		return nil, err
	}

	n, err := s.configRepo.CreateVersion(ctx, userID, configID, cfg.Document)
	if err != nil {
		return nil, err
	}
	telemetry.ConfigVersionsCreatedTotal.Inc()
	s.logger.Info("version snapshot created",
		"user_id", userID, "config_id", configID, "version", n)
	return s.configRepo.GetVersion(ctx, userID, configID, n)
}

// ListVersions returns snapshots newest-first.
func (s *ConfigService) ListVersions(ctx context.Context, userID, configID string, limit int) ([]*models.ConfigVersion, error) {
	if _, err := s.Get(ctx, userID, configID); err != nil {
		return nil, err
	}
	return s.configRepo.ListVersions(ctx, userID, configID, limit)
}

// RestoreVersion replaces the working document with snapshot n. The snapshot
// itself is immutable; loaded_version records which one the editor is now
// based on.
func (s *ConfigService) RestoreVersion(ctx context.Context, userID, configID string, version int) (*models.Configuration, error) {
	if version < 1 {
		return nil, ErrVersionNotFound
	}
	if _, err := s.Get(ctx, userID, configID); err != nil {
		return nil, err
	}

	cfg, err := s.configRepo.RestoreVersion(ctx, userID, configID, version)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrVersionNotFound
	}
	s.logger.Info("version restored", "user_id", userID, "config_id", configID, "version", version)
	return cfg, nil
}

// GetVersion returns a single snapshot.
func (s *ConfigService) GetVersion(ctx context.Context, userID, configID string, version int) (*models.ConfigVersion, error) {
	if version < 1 {
		return nil, ErrVersionNotFound
	}
	if _, err := s.Get(ctx, userID, configID); err != nil {
		return nil, err
	}
	v, err := s.configRepo.GetVersion(ctx, userID, configID, version)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVersionNotFound
	}
	return v, nil
}

// List returns the user's configurations with version counts.
func (s *ConfigService) List(ctx context.Context, userID string) ([]models.ConfigListItem, error) {
	return s.configRepo.ListForUser(ctx, userID)
}

// Export wraps the working document in the portable envelope.
func (s *ConfigService) Export(ctx context.Context, userID, configID string) (*homescreen.Envelope, error) {
	cfg, err := s.Get(ctx, userID, configID)
	if err != nil {
		return nil, err
	}
	return &homescreen.Envelope{
		ConfigID:      cfg.ConfigID,
		SchemaVersion: cfg.SchemaVersion,
		UpdatedAt:     cfg.UpdatedAt,
		Data:          cfg.Document,
	}, nil
}

// ImportResult reports what an import did.
type ImportResult struct {
	ConfigID      string
	SchemaVersion string
	UpdatedAt     time.Time
	Migrated      bool
	// FromSchemaVersion is the schema the file declared.
	FromSchemaVersion string
}

// Import runs the full pipeline on an exported envelope: parse, schema check,
// migrate to the current schema, validate, then upsert as the working document
// of the envelope's config id. Imports overwrite unconditionally; the
// optimistic-concurrency fence only applies to editor saves.
func (s *ConfigService) Import(ctx context.Context, userID string, raw json.RawMessage) (*ImportResult, error) {
	env, err := homescreen.ParseEnvelope(raw)
	if err != nil {
		return nil, &homescreen.ValidationError{Field: "file", Message: err.Error()}
	}
	if err := homescreen.ValidateConfigID(env.ConfigID); err != nil {
		return nil, invalidConfigID(err)
	}
	if err := homescreen.ValidateSchemaVersion(env.SchemaVersion); err != nil {
		return nil, &homescreen.ValidationError{Field: "schemaVersion", Message: err.Error()}
	}

	doc, err := homescreen.Migrate(env.Data, env.SchemaVersion)
	if err != nil {
		return nil, &homescreen.ValidationError{Field: "data", Message: err.Error()}
	}
	if err := homescreen.ValidateAndNormalize(doc); err != nil {
		return nil, err
	}
	normalized, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	updatedAt, err := s.configRepo.Upsert(ctx, userID, env.ConfigID, homescreen.CurrentSchemaVersion, normalized)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.SetLastConfig(ctx, userID, &env.ConfigID); err != nil {
		s.logger.Warn("failed to record last config after import", "user_id", userID, "error", err)
	}

	s.logger.Info("configuration imported",
		"user_id", userID, "config_id", env.ConfigID,
		"from_schema", env.SchemaVersion, "to_schema", homescreen.CurrentSchemaVersion)
	return &ImportResult{
		ConfigID:          env.ConfigID,
		SchemaVersion:     homescreen.CurrentSchemaVersion,
		UpdatedAt:         updatedAt,
		Migrated:          env.SchemaVersion != homescreen.CurrentSchemaVersion,
		FromSchemaVersion: env.SchemaVersion,
	}, nil
}

// SetLoadedVersion repoints the loaded-version marker without touching the
// document. nil clears it. A non-nil target must name an existing snapshot.
func (s *ConfigService) SetLoadedVersion(ctx context.Context, userID, configID string, version *int) error {
	if _, err := s.Get(ctx, userID, configID); err != nil {
		return err
	}
	if version != nil {
		latest, err := s.configRepo.LatestVersionNumber(ctx, userID, configID)
		if err != nil {
			return err
		}
		if *version < 1 || *version > latest {
			return ErrVersionNotFound
		}
	}
	return s.configRepo.SetLoadedVersion(ctx, userID, configID, version)
}

// SetLastConfig records which configuration the user last worked on.
func (s *ConfigService) SetLastConfig(ctx context.Context, userID, configID string) error {
	if _, err := s.Get(ctx, userID, configID); err != nil {
		return err
	}
	return s.userRepo.SetLastConfig(ctx, userID, &configID)
}

// EnsureDefault creates the "default" configuration for a new account if it
// does not exist yet.
func (s *ConfigService) EnsureDefault(ctx context.Context, userID string) error {
	doc, err := defaultDocument()
	if err != nil {
		return err
	}
	return s.configRepo.EnsureConfig(ctx, userID, "default", homescreen.CurrentSchemaVersion, doc)
}

func (s *ConfigService) validateDocument(configID string, data json.RawMessage) (json.RawMessage, error) {
	if err := homescreen.ValidateConfigID(configID); err != nil {
		return nil, invalidConfigID(err)
	}
	doc, err := homescreen.ParseDocument(data)
	if err != nil {
		return nil, &homescreen.ValidationError{Field: "data", Message: err.Error()}
	}
	if err := homescreen.ValidateAndNormalize(doc); err != nil {
		return nil, err
	}
	return doc.Encode()
}

// defaultDocument is the empty-but-valid starting layout.
func defaultDocument() (json.RawMessage, error) {
	doc := &homescreen.Document{SectionOrder: append([]string(nil), homescreen.DefaultSectionOrder...)}
	return doc.Encode()
}
