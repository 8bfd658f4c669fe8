package repositories

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var configColumns = []string{"user_id", "config_id", "schema_version", "document", "loaded_version", "created_at", "updated_at"}
var versionColumns = []string{"id", "user_id", "config_id", "version", "document", "created_at"}

func newConfigRepo(t *testing.T) (*ConfigRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewConfigRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func testDoc() json.RawMessage {
	return json.RawMessage(`{"sectionOrder":["carousel","textBlock","cta"]}`)
}

func TestConfigGet(t *testing.T) {
	repo, mock := newConfigRepo(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM configurations")).
		WithArgs("u-1", "default").
		WillReturnRows(sqlmock.NewRows(configColumns).
			AddRow("u-1", "default", "2", []byte(testDoc()), 1, now, now))

	cfg, err := repo.Get(context.Background(), "u-1", "default")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if cfg == nil || cfg.ConfigID != "default" || cfg.SchemaVersion != "2" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LoadedVersion == nil || *cfg.LoadedVersion != 1 {
		t.Errorf("LoadedVersion = %v, want 1", cfg.LoadedVersion)
	}
}

func TestConfigGet_Absent(t *testing.T) {
	repo, mock := newConfigRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM configurations")).
		WithArgs("u-1", "ghost").
		WillReturnRows(sqlmock.NewRows(configColumns))

	cfg, err := repo.Get(context.Background(), "u-1", "ghost")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %+v, want nil", cfg)
	}
}

func TestConfigCreate_SeedsVersionOne(t *testing.T) {
	repo, mock := newConfigRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO configurations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO config_versions")).
		WithArgs(sqlmock.AnyArg(), "u-1", "default", 1, []byte(testDoc()), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg, err := repo.Create(context.Background(), "u-1", "default", "2", testDoc())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if cfg.LoadedVersion == nil || *cfg.LoadedVersion != 1 {
		t.Errorf("LoadedVersion = %v, want 1", cfg.LoadedVersion)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConfigCreate_AlreadyExists(t *testing.T) {
	repo, mock := newConfigRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO configurations")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "u-1", "default", "2", testDoc())
	if err != ErrConfigExists {
		t.Errorf("err = %v, want ErrConfigExists", err)
	}
}

func TestConfigSave_AdvancesUpdatedAt(t *testing.T) {
	repo, mock := newConfigRepo(t)

	stored := time.Now().Add(-time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u-1", "default").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(stored))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE configurations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updatedAt, err := repo.Save(context.Background(), "u-1", "default", "2", testDoc(), nil)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !updatedAt.After(stored) {
		t.Errorf("updatedAt %v did not advance past %v", updatedAt, stored)
	}
}

func TestConfigSave_StaleFence(t *testing.T) {
	repo, mock := newConfigRepo(t)

	stored := time.Now()
	stale := stored.Add(-time.Second)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u-1", "default").
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(stored))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), "u-1", "default", "2", testDoc(), &stale)
	if err != ErrStaleData {
		t.Errorf("err = %v, want ErrStaleData", err)
	}
}

func TestCreateVersion_AssignsNextNumber(t *testing.T) {
	repo, mock := newConfigRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(version), 0)")).
		WithArgs("u-1", "default").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO config_versions")).
		WithArgs(sqlmock.AnyArg(), "u-1", "default", 5, []byte(testDoc()), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.CreateVersion(context.Background(), "u-1", "default", testDoc())
	if err != nil {
		t.Fatalf("CreateVersion returned error: %v", err)
	}
	if n != 5 {
		t.Errorf("version = %d, want 5", n)
	}
}

func TestCreateVersion_RetriesOnUniqueCollision(t *testing.T) {
	repo, mock := newConfigRepo(t)

	// First attempt hits the unique backstop (concurrent writer won).
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(version), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO config_versions")).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	// Retry sees the new max and succeeds.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(MAX(version), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO config_versions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.CreateVersion(context.Background(), "u-1", "default", testDoc())
	if err != nil {
		t.Fatalf("CreateVersion returned error: %v", err)
	}
	if n != 3 {
		t.Errorf("version = %d, want 3", n)
	}
}

func TestRestoreVersion_UnknownSnapshot(t *testing.T) {
	repo, mock := newConfigRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM config_versions")).
		WithArgs("u-1", "default", 99).
		WillReturnRows(sqlmock.NewRows(versionColumns))
	mock.ExpectRollback()

	cfg, err := repo.RestoreVersion(context.Background(), "u-1", "default", 99)
	if err != nil {
		t.Fatalf("RestoreVersion returned error: %v", err)
	}
	if cfg != nil {
		t.Errorf("cfg = %+v, want nil for unknown snapshot", cfg)
	}
}

func TestRestoreVersion(t *testing.T) {
	repo, mock := newConfigRepo(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM config_versions")).
		WithArgs("u-1", "default", 2).
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow("v-2", "u-1", "default", 2, []byte(testDoc()), now.Add(-time.Hour)))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now.Add(-time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE configurations")).
		WillReturnRows(sqlmock.NewRows(configColumns).
			AddRow("u-1", "default", "2", []byte(testDoc()), 2, now.Add(-time.Hour), now))
	mock.ExpectCommit()

	cfg, err := repo.RestoreVersion(context.Background(), "u-1", "default", 2)
	if err != nil {
		t.Fatalf("RestoreVersion returned error: %v", err)
	}
	if cfg.LoadedVersion == nil || *cfg.LoadedVersion != 2 {
		t.Errorf("LoadedVersion = %v, want 2", cfg.LoadedVersion)
	}
}

func TestListForUser(t *testing.T) {
	repo, mock := newConfigRepo(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN config_versions")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"config_id", "updated_at", "version_count"}).
			AddRow("default", now, 3).
			AddRow("seasonal", now.Add(-time.Hour), 0))

	items, err := repo.ListForUser(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if len(items) != 2 || items[0].VersionCount != 3 {
		t.Errorf("items = %+v", items)
	}
}
