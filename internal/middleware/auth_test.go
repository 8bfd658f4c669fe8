package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/auth"
	"github.com/launchboard/launchboard/internal/db/repositories"
)

var (
	sessionAuthColumns = []string{"token", "user_id", "issued_ip", "created_at", "expires_at"}
	userAuthColumns    = []string{"id", "username", "password_hash", "last_config_id", "created_at", "updated_at"}
	tokenAuthColumns   = []string{"id", "user_id", "name", "token_hash", "token_prefix", "masked_token", "created_at", "last_used_at"}
)

func newSessionAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sessionRepo := repositories.NewSessionRepository(db)
	userRepo := repositories.NewUserRepository(db)

	r := gin.New()
	r.Use(SessionAuthMiddleware(csrfTestConfig(), sessionRepo, userRepo))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": CurrentUserID(c)})
	})
	return r, mock
}

func newBearerAuthRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tokenRepo := repositories.NewAPITokenRepository(db)
	userRepo := repositories.NewUserRepository(db)

	r := gin.New()
	r.Use(BearerAuthMiddleware(tokenRepo, userRepo))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": CurrentUserID(c)})
	})
	return r, mock
}

func sessionRequest(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.RemoteAddr = ip + ":40612"
	req.AddCookie(&http.Cookie{Name: "lb_session", Value: "sess-abc"})
	return req
}

func expectSessionRow(mock sqlmock.Sqlmock, issuedIP string, expiresAt time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions")).
		WithArgs("sess-abc").
		WillReturnRows(sqlmock.NewRows(sessionAuthColumns).
			AddRow("sess-abc", "u-1", issuedIP, time.Now().Add(-time.Hour), expiresAt))
}

func TestSessionAuth_IssuingIPPasses(t *testing.T) {
	r, mock := newSessionAuthRouter(t)

	expectSessionRow(mock, "10.1.2.3", time.Now().Add(time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userAuthColumns).
			AddRow("u-1", "alice", "hash", nil, time.Now(), time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest("10.1.2.3"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"userId":"u-1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// A session token presented from an address other than the one it was issued
// to is rejected even though it is unexpired.
func TestSessionAuth_DifferentIPRejected(t *testing.T) {
	r, mock := newSessionAuthRouter(t)

	expectSessionRow(mock, "10.1.2.3", time.Now().Add(time.Hour))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest("10.9.9.9"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "UNAUTHORIZED") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSessionAuth_ExpiredSession(t *testing.T) {
	r, mock := newSessionAuthRouter(t)

	expectSessionRow(mock, "10.1.2.3", time.Now().Add(-time.Minute))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, sessionRequest("10.1.2.3"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "SESSION_EXPIRED") {
		t.Errorf("body = %s, want SESSION_EXPIRED code", w.Body.String())
	}
}

func TestSessionAuth_MissingCookie(t *testing.T) {
	r, _ := newSessionAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestBearerAuth_ValidToken(t *testing.T) {
	r, mock := newBearerAuthRouter(t)

	token, hash, lookupPrefix, masked, err := auth.GenerateAPIToken("lb_")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_tokens")).
		WithArgs(lookupPrefix).
		WillReturnRows(sqlmock.NewRows(tokenAuthColumns).
			AddRow("t-1", "u-1", "ci", hash, lookupPrefix, masked, time.Now(), nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userAuthColumns).
			AddRow("u-1", "alice", "hash", nil, time.Now(), time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"userId":"u-1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

// After revocation the token row is gone; the prefix lookup finds nothing and
// the request fails exactly like one carrying a never-issued token.
func TestBearerAuth_RevokedTokenRejected(t *testing.T) {
	r, mock := newBearerAuthRouter(t)

	token, _, lookupPrefix, _, err := auth.GenerateAPIToken("lb_")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_tokens")).
		WithArgs(lookupPrefix).
		WillReturnRows(sqlmock.NewRows(tokenAuthColumns))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "UNAUTHORIZED") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	r, _ := newBearerAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
