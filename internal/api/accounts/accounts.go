// Package accounts implements the session-facing endpoints: registration,
// login, logout, the current-user view, and API token issuance.
//
// Token issuance deliberately lives here rather than in the bearer-protected
// surface: a bearer token must never be able to mint further tokens, so the
// only path to a new token is a live browser session plus a CSRF proof.
package accounts

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchboard/launchboard/internal/api/respond"
	"github.com/launchboard/launchboard/internal/auth"
	"github.com/launchboard/launchboard/internal/config"
	"github.com/launchboard/launchboard/internal/db/models"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/middleware"
	"github.com/launchboard/launchboard/internal/ratelimit"
	"github.com/launchboard/launchboard/internal/services"
	"github.com/launchboard/launchboard/internal/telemetry"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// Handler bundles the account endpoints' dependencies.
type Handler struct {
	cfg           *config.Config
	userRepo      *repositories.UserRepository
	sessionRepo   *repositories.SessionRepository
	tokenRepo     *repositories.APITokenRepository
	configService *services.ConfigService
	loginPolicy   *ratelimit.Policy
	logger        *slog.Logger
}

func NewHandler(cfg *config.Config, userRepo *repositories.UserRepository, sessionRepo *repositories.SessionRepository, tokenRepo *repositories.APITokenRepository, configService *services.ConfigService, loginPolicy *ratelimit.Policy, logger *slog.Logger) *Handler {
	return &Handler{
		cfg:           cfg,
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		tokenRepo:     tokenRepo,
		configService: configService,
		loginPolicy:   loginPolicy,
		logger:        logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	LastConfigID *string `json:"lastConfigId"`
	CreatedAt    string  `json:"createdAt"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		LastConfigID: u.LastConfigID,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register creates an account and logs it in immediately, seeding the default
// configuration so the editor has something to open.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respond.Error(c, respond.CodeMissingField, "Username and password are required")
		return
	}
	if !usernamePattern.MatchString(req.Username) {
		respond.Error(c, respond.CodeValidationError, "Username must be 3-50 characters of letters, digits, hyphen, or underscore")
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		respond.Error(c, respond.CodeValidationError, "Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(c, respond.CodeInternalError, "Failed to create account")
		return
	}

	user := &models.User{Username: req.Username, PasswordHash: hash}
	if err := h.userRepo.CreateUser(c.Request.Context(), user); err != nil {
		if err == repositories.ErrUsernameTaken {
			respond.Error(c, respond.CodeUsernameTaken, "Username is already taken")
			return
		}
		h.logger.Error("failed to create user", "error", err)
		respond.Error(c, respond.CodeInternalError, "Failed to create account")
		return
	}

	if err := h.configService.EnsureDefault(c.Request.Context(), user.ID); err != nil {
		h.logger.Error("failed to seed default configuration", "user_id", user.ID, "error", err)
	}

	if err := h.startSession(c, user); err != nil {
		respond.Error(c, respond.CodeInternalError, "Account created but login failed")
		return
	}

	h.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

// Login verifies credentials under the per-(IP, username) rate limit. Unknown
// usernames and wrong passwords produce the identical response so the endpoint
// cannot be used to enumerate accounts.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respond.Error(c, respond.CodeMissingField, "Username and password are required")
		return
	}

	limitKey := "login:" + c.ClientIP() + ":" + strings.ToLower(req.Username)
	res, err := h.loginPolicy.Check(c.Request.Context(), limitKey)
	if err == nil {
		for k, v := range h.loginPolicy.Headers(res) {
			c.Header(k, v)
		}
		if !res.Allowed {
			telemetry.RateLimitRejectionsTotal.WithLabelValues(h.loginPolicy.Name).Inc()
			telemetry.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
			respond.Error(c, respond.CodeRateLimitExceeded, "Too many login attempts")
			return
		}
	}

	user, err := h.userRepo.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Error("login lookup failed", "error", err)
		respond.Error(c, respond.CodeInternalError, "Login failed")
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		respond.Error(c, respond.CodeInvalidCredentials, "Invalid username or password")
		return
	}

	// A correct password proves the caller is not the attacker the budget
	// exists to slow down, so the counter resets.
	if err := h.loginPolicy.Reset(c.Request.Context(), limitKey); err != nil {
		h.logger.Warn("failed to reset login rate limit", "error", err)
	}

	if err := h.startSession(c, user); err != nil {
		respond.Error(c, respond.CodeInternalError, "Login failed")
		return
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	h.logger.Info("user logged in", "user_id", user.ID)
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

// Logout revokes the presented session server-side and clears both cookies.
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString(middleware.SessionKey)
	if token != "" {
		if err := h.sessionRepo.DeleteSession(c.Request.Context(), token); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		}
	}
	h.clearCookie(c, h.cfg.Auth.SessionCookieName, true)
	h.clearCookie(c, h.cfg.Auth.CSRFCookieName, false)
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

// Me returns the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		respond.Error(c, respond.CodeUnauthorized, "Not logged in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

type createTokenRequest struct {
	Name string `json:"name"`
}

// CreateToken mints a new API token for the session user. The secret appears
// once in this response and is stored only as a bcrypt hash.
func (h *Handler) CreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err, respond.CodeValidationError, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respond.Error(c, respond.CodeMissingField, "Token name is required")
		return
	}
	if len(req.Name) > 100 {
		respond.Error(c, respond.CodeValidationError, "Token name must be at most 100 characters")
		return
	}

	token, hash, lookupPrefix, masked, err := auth.GenerateAPIToken(h.cfg.Auth.TokenPrefix)
	if err != nil {
		respond.Error(c, respond.CodeInternalError, "Failed to generate token")
		return
	}

	record := &models.APIToken{
		UserID:      middleware.CurrentUserID(c),
		Name:        req.Name,
		TokenHash:   hash,
		TokenPrefix: lookupPrefix,
		MaskedToken: masked,
	}
	if err := h.tokenRepo.CreateToken(c.Request.Context(), record); err != nil {
		h.logger.Error("failed to store token", "error", err)
		respond.Error(c, respond.CodeInternalError, "Failed to create token")
		return
	}

	h.logger.Info("api token created", "user_id", record.UserID, "token_id", record.ID)
	c.JSON(http.StatusCreated, gin.H{
		"id":        record.ID,
		"name":      record.Name,
		"token":     token,
		"masked":    record.MaskedToken,
		"createdAt": record.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// CSRF ensures the double-submit cookie exists and returns its value.
func (h *Handler) CSRF(c *gin.Context) {
	token, err := middleware.EnsureCSRFCookie(c, h.cfg)
	if err != nil {
		respond.Error(c, respond.CodeInternalError, "Failed to issue CSRF token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

// startSession creates the session row bound to the caller's IP and sets the
// session and CSRF cookies.
func (h *Handler) startSession(c *gin.Context, user *models.User) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return err
	}
	now := time.Now()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		IssuedIP:  c.ClientIP(),
		CreatedAt: now,
		ExpiresAt: now.Add(h.cfg.Auth.SessionTTL),
	}
	if err := h.sessionRepo.CreateSession(c.Request.Context(), session); err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cfg.Auth.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if _, err := middleware.EnsureCSRFCookie(c, h.cfg); err != nil {
		return err
	}
	return nil
}

func (h *Handler) clearCookie(c *gin.Context, name string, httpOnly bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.cfg.Auth.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
