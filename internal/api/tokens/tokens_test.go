package tokens

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/middleware"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newTokensRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := NewHandler(repositories.NewAPITokenRepository(db), slog.Default())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "u-1")
		c.Next()
	})
	r.GET("/api/v1/tokens", h.List)
	r.DELETE("/api/v1/tokens/:id", h.Revoke)
	return r, mock
}

func TestList_MaskedOnly(t *testing.T) {
	r, mock := newTokensRouter(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "token_hash", "token_prefix", "masked_token", "created_at", "last_used_at"}).
			AddRow("t-1", "u-1", "ci", "$2a$12$secret-hash", "lb_abc123def", "lb_abc123def...wxyz", now, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "lb_abc123def...wxyz") {
		t.Errorf("body = %s, want masked preview", body)
	}
	if strings.Contains(body, "secret-hash") {
		t.Error("response leaks the token hash")
	}
	if !strings.Contains(body, `"lastUsedAt":null`) {
		t.Errorf("body = %s, want explicit null lastUsedAt", body)
	}
}

func TestRevoke(t *testing.T) {
	r, mock := newTokensRouter(t)

	tokenID := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM api_tokens")).
		WithArgs(tokenID, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/"+tokenID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRevoke_NotOwnedReports404(t *testing.T) {
	r, mock := newTokensRouter(t)

	tokenID := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM api_tokens")).
		WithArgs(tokenID, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/"+tokenID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if !strings.Contains(w.Body.String(), "TOKEN_NOT_FOUND") {
		t.Errorf("body = %s, want TOKEN_NOT_FOUND code", w.Body.String())
	}
}

func TestRevoke_MalformedID(t *testing.T) {
	r, _ := newTokensRouter(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/tokens/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
