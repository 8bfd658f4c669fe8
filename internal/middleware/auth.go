// Package middleware provides Gin HTTP middleware for authentication, CSRF
// protection, rate limiting, request sizing, security headers, and request-id
// correlation.
//
// Middleware ordering matters and is enforced in router.go. The shared chain is
//
//	Security → RequestID → Metrics → Logger → BodyLimit
//
// Security headers run first so they appear on all responses including errors;
// the body-size guard runs before anything that might read the body. Past the
// shared chain the two surfaces order differently. The session surface runs
// RateLimit → SessionAuth → CSRF: brute force is blocked before any session
// lookup, and the CSRF check reads the auth method populated by SessionAuth to
// decide whether the request is cookie-authenticated (bearer requests are
// exempt). The bearer surface runs BearerAuth → RateLimit, so the limit is
// charged to authenticated callers.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/auth"
	"github.com/launchboard/launchboard/internal/config"
	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/safego"
)

// Context keys populated by the auth middleware.
const (
	UserKey       = "user"
	UserIDKey     = "user_id"
	AuthMethodKey = "auth_method"
	SessionKey    = "session_token"
)

// Auth method values stored under AuthMethodKey.
const (
	AuthMethodSession = "session"
	AuthMethodBearer  = "bearer"
)

// SessionResult is the typed outcome of a session validation. Failures are
// values, never panics or errors, so callers map them uniformly to 401.
type SessionResult struct {
	Authenticated bool
	Reason        string
	User          *models.User
	Session       *models.Session
}

// ValidateSession resolves the session cookie to a user. It fails closed on a
// missing cookie, unknown or expired token, and on an IP mismatch: a session
// token presented from an address other than the one it was issued to is
// invalid even if otherwise unexpired.
func ValidateSession(ctx context.Context, c *gin.Context, cfg *config.Config, sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository) (SessionResult, error) {
	cookie, err := c.Cookie(cfg.Auth.SessionCookieName)
	if err != nil || cookie == "" {
		return SessionResult{Reason: "no session cookie"}, nil
	}

	session, err := sessionRepo.GetSession(ctx, cookie)
	if err != nil {
		return SessionResult{}, err
	}
	if session == nil {
		return SessionResult{Reason: "unknown session token"}, nil
	}
	if session.Expired(time.Now()) {
		return SessionResult{Reason: "session expired"}, nil
	}
	if session.IssuedIP != c.ClientIP() {
		return SessionResult{Reason: "session ip mismatch"}, nil
	}

	user, err := userRepo.GetUserByID(ctx, session.UserID)
	if err != nil {
		return SessionResult{}, err
	}
	if user == nil {
		return SessionResult{Reason: "session user no longer exists"}, nil
	}

	return SessionResult{Authenticated: true, User: user, Session: session}, nil
}

// SessionAuthMiddleware requires a valid session cookie. Used for the browser
// surfaces: logout, token issuance, and the CSRF-protected account endpoints.
func SessionAuthMiddleware(cfg *config.Config, sessionRepo *repositories.SessionRepository, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ValidateSession(c.Request.Context(), c, cfg, sessionRepo, userRepo)
		if err != nil {
			respond.Error(c, respond.CodeInternalError, "Authentication failed")
			return
		}
		if !res.Authenticated {
			code := respond.CodeUnauthorized
			if res.Reason == "session expired" {
				code = respond.CodeSessionExpired
			}
			respond.Error(c, code, "Not logged in")
			return
		}

		c.Set(UserKey, res.User)
		c.Set(UserIDKey, res.User.ID)
		c.Set(AuthMethodKey, AuthMethodSession)
		c.Set(SessionKey, res.Session.Token)
		c.Next()
	}
}

// BearerAuthMiddleware requires an API token in the Authorization header.
// Used for all /api/v1 programmatic endpoints; these are exempt from CSRF
// because the bearer secret itself proves intent and cannot be replayed
// cross-site by a browser.
func BearerAuthMiddleware(tokenRepo *repositories.APITokenRepository, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			respond.Error(c, respond.CodeUnauthorized, "Missing or malformed authorization header")
			return
		}

		apiToken, err := authenticateAPIToken(c.Request.Context(), token, tokenRepo)
		if err != nil {
			respond.Error(c, respond.CodeInternalError, "Authentication failed")
			return
		}
		if apiToken == nil {
			// Unknown and revoked tokens are indistinguishable on purpose.
			respond.Error(c, respond.CodeUnauthorized, "Invalid token")
			return
		}

		// Last-used tracking is best-effort and fire-and-forget: a failed
		// update is not a correctness problem, and a synchronous write would
		// add DB latency to every authenticated request.
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tokenRepo.UpdateLastUsed(ctx, apiToken.ID)
		})

		user, err := userRepo.GetUserByID(c.Request.Context(), apiToken.UserID)
		if err != nil {
			respond.Error(c, respond.CodeInternalError, "Authentication failed")
			return
		}
		if user == nil {
			respond.Error(c, respond.CodeUnauthorized, "Invalid token")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(AuthMethodKey, AuthMethodBearer)
		c.Next()
	}
}

// authenticateAPIToken narrows candidates by the plaintext lookup prefix, then
// runs the bcrypt comparison only on those rows. Without the prefix every
// request would bcrypt-scan the whole api_tokens table.
func authenticateAPIToken(ctx context.Context, providedToken string, tokenRepo *repositories.APITokenRepository) (*models.APIToken, error) {
	prefix := providedToken
	if len(providedToken) > auth.LookupPrefixLength {
		prefix = providedToken[:auth.LookupPrefixLength]
	}

	candidates, err := tokenRepo.GetTokensByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for _, tok := range candidates {
		if auth.ValidateAPIToken(providedToken, tok.TokenHash) {
			return tok, nil
		}
	}
	return nil, nil
}

// CurrentUser returns the authenticated user from the context, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentUserID returns the authenticated user's ID, or "".
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
