package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/lib/pq"
)

var userColumns = []string{"id", "username", "password_hash", "last_config_id", "created_at", "updated_at"}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(db), mock
}

func userRow(id, username string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).
		AddRow(id, username, "$2a$12$hash", nil, now, now)
}

func TestCreateUser(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "alice", "$2a$12$hash", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Username: "alice", PasswordHash: "$2a$12$hash"}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if user.ID == "" {
		t.Error("CreateUser did not assign an ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser did not set CreatedAt")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateUser_UsernameTaken(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateUser(context.Background(), &models.User{Username: "alice", PasswordHash: "h"})
	if err != ErrUsernameTaken {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash, last_config_id, created_at, updated_at")).
		WithArgs("alice").
		WillReturnRows(userRow("u-1", "alice"))

	user, err := repo.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername returned error: %v", err)
	}
	if user == nil || user.ID != "u-1" {
		t.Errorf("user = %+v, want id u-1", user)
	}
}

func TestGetUserByUsername_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(userColumns))

	user, err := repo.GetUserByUsername(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetUserByUsername returned error: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil for unknown username", user)
	}
}

func TestSetLastConfig(t *testing.T) {
	repo, mock := newUserRepo(t)

	configID := "default"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("u-1", "default", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetLastConfig(context.Background(), "u-1", &configID); err != nil {
		t.Fatalf("SetLastConfig returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
