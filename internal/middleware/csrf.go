package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/auth"
	"github.com/launchboard/launchboard/internal/config"
)

// CSRFHeader is the request header that must echo the CSRF cookie on
// cookie-authenticated mutations.
const CSRFHeader = "X-CSRF-Token"

// CSRFFormField is the fallback location for the token on form submissions
// that cannot set custom headers.
const CSRFFormField = "csrfToken"

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// EnsureCSRFCookie issues the double-submit CSRF cookie when the client does
// not already carry one. The cookie is intentionally readable by script
// (HttpOnly=false) so the frontend can copy it into the request header; the
// session cookie stays HttpOnly.
func EnsureCSRFCookie(c *gin.Context, cfg *config.Config) (string, error) {
	if existing, err := c.Cookie(cfg.Auth.CSRFCookieName); err == nil && existing != "" {
		return existing, nil
	}
	token, err := auth.GenerateCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.Auth.CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// CSRFMiddleware validates the double-submit pair on mutating requests that
// were authenticated with a session cookie. Bearer-authenticated requests pass
// through untouched. The token may arrive in the header or, for plain form
// posts, in the csrfToken field. The check fails closed: a missing cookie, a
// missing token, or a mismatch all reject.
func CSRFMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethods[c.Request.Method] {
			c.Next()
			return
		}
		if c.GetString(AuthMethodKey) != AuthMethodSession {
			c.Next()
			return
		}

		cookie, err := c.Cookie(cfg.Auth.CSRFCookieName)
		if err != nil || cookie == "" {
			respond.Error(c, respond.CodeInvalidCSRF, "CSRF token missing")
			return
		}
		supplied := c.GetHeader(CSRFHeader)
		if supplied == "" {
			// PostForm only reads form-encoded bodies; JSON requests are
			// untouched and must use the header.
			supplied = c.PostForm(CSRFFormField)
		}
		if supplied == "" {
			respond.Error(c, respond.CodeInvalidCSRF, "CSRF token missing")
			return
		}
		if subtle.ConstantTimeCompare([]byte(cookie), []byte(supplied)) != 1 {
			respond.Error(c, respond.CodeInvalidCSRF, "CSRF token mismatch")
			return
		}
		c.Next()
	}
}
