// Package api wires together all HTTP routes for the Launchboard backend.
//
// Route grouping philosophy:
//   - /auth/* endpoints are session-facing: registration and login are public
//     (rate limited), everything else requires the session cookie and, for
//     mutations, the CSRF double-submit pair. API token issuance lives here
//     so a stolen bearer token can never mint further tokens.
//   - /api/v1/* endpoints require a bearer API token. They are exempt from
//     CSRF because browsers cannot attach a bearer secret cross-site.
//
// Middleware ordering is deliberate: security headers first so they cover
// error responses, then request-id and metrics, then the body-size guard
// before anything reads a body, then rate limiting before auth so brute
// force is rejected without DB work.
package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/launchboard/launchboard/internal/api/accounts"
	"github.com/launchboard/launchboard/internal/api/configs"
	"github.com/launchboard/launchboard/internal/api/tokens"
	"github.com/launchboard/launchboard/internal/config"
	"github.com/launchboard/launchboard/internal/db/repositories"
	"github.com/launchboard/launchboard/internal/middleware"
	"github.com/launchboard/launchboard/internal/ratelimit"
	"github.com/launchboard/launchboard/internal/services"
	"github.com/launchboard/launchboard/internal/telemetry"
)

// Version is the reported application version. Overridden at build time via
// -ldflags "-X github.com/launchboard/launchboard/internal/api.Version=...".
var Version = "0.1.0"

// BackgroundServices holds resources that must be stopped during graceful
// shutdown. The caller (cmd/server) invokes Shutdown after the HTTP server
// has drained in-flight requests.
type BackgroundServices struct {
	memoryStore   *ratelimit.MemoryStore
	redisClient   *redis.Client
	stopCollector func()
}

// Shutdown stops background goroutines and closes the Redis connection.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.stopCollector != nil {
		bg.stopCollector()
	}
	if bg.memoryStore != nil {
		bg.memoryStore.Stop()
	}
	if bg.redisClient != nil {
		if err := bg.redisClient.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	userRepo := repositories.NewUserRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	tokenRepo := repositories.NewAPITokenRepository(db)

	// Configuration queries use sqlx for struct scanning and transactions.
	sqlxDB := sqlx.NewDb(db, "postgres")
	configRepo := repositories.NewConfigRepository(sqlxDB)

	logger := slog.Default()
	configService := services.NewConfigService(configRepo, userRepo, logger)

	bg := &BackgroundServices{}

	// Rate-limit backing store: in-process counters by default, Redis when
	// budgets must be shared across instances.
	var store ratelimit.Store
	switch cfg.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		bg.redisClient = client
		store = ratelimit.NewRedisStore(client)
	default:
		mem := ratelimit.NewMemoryStore(time.Minute)
		bg.memoryStore = mem
		store = mem
	}

	loginPolicy := &ratelimit.Policy{
		Name:   "login",
		Store:  store,
		Limit:  cfg.RateLimit.LoginAttempts,
		Window: cfg.RateLimit.LoginWindow,
	}
	apiPolicy := &ratelimit.Policy{
		Name:   "api",
		Store:  store,
		Limit:  cfg.RateLimit.APIRequests,
		Window: cfg.RateLimit.APIWindow,
	}

	if cfg.Telemetry.Enabled {
		bg.stopCollector = telemetry.StartDBPoolCollector(db, 15*time.Second)
	}

	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))

	router.GET("/healthz", healthCheckHandler(db))
	router.GET("/readyz", readinessHandler(db))
	router.GET("/version", versionHandler())

	accountHandler := accounts.NewHandler(cfg, userRepo, sessionRepo, tokenRepo, configService, loginPolicy, logger)
	tokenHandler := tokens.NewHandler(tokenRepo, logger)
	configHandler := configs.NewHandler(configService, logger)

	// Session surface. Register and login are public; the login handler
	// applies the per-(IP, username) policy itself so the key can include
	// the username.
	authGroup := router.Group("/auth")
	{
		if cfg.RateLimit.Enabled {
			authGroup.Use(middleware.RateLimitMiddleware(apiPolicy))
		}
		authGroup.POST("/register", accountHandler.Register)
		authGroup.POST("/login", accountHandler.Login)
		authGroup.GET("/csrf", accountHandler.CSRF)

		sessionGroup := authGroup.Group("")
		sessionGroup.Use(middleware.SessionAuthMiddleware(cfg, sessionRepo, userRepo))
		sessionGroup.Use(middleware.CSRFMiddleware(cfg))
		{
			sessionGroup.POST("/logout", accountHandler.Logout)
			sessionGroup.GET("/me", accountHandler.Me)
			sessionGroup.POST("/tokens", accountHandler.CreateToken)
		}
	}

	// Programmatic surface, bearer tokens only.
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.BearerAuthMiddleware(tokenRepo, userRepo))
	if cfg.RateLimit.Enabled {
		apiV1.Use(middleware.RateLimitMiddleware(apiPolicy))
	}
	{
		apiV1.GET("/tokens", tokenHandler.List)
		apiV1.DELETE("/tokens/:id", tokenHandler.Revoke)

		apiV1.GET("/configs", configHandler.List)
		apiV1.POST("/configs", configHandler.Create)
		apiV1.GET("/configs/:configId", configHandler.Get)
		apiV1.PUT("/configs/:configId", configHandler.Save)
		apiV1.PUT("/configs/:configId/loaded-version", configHandler.SetLoadedVersion)
		apiV1.GET("/configs/:configId/export", configHandler.Export)
		apiV1.GET("/configs/:configId/versions", configHandler.ListVersions)
		apiV1.POST("/configs/:configId/versions", configHandler.CreateVersion)
		apiV1.GET("/configs/:configId/versions/:version", configHandler.GetVersion)
		apiV1.POST("/configs/:configId/versions/:version/restore", configHandler.RestoreVersion)

		apiV1.POST("/import", configHandler.Import)
		apiV1.POST("/actions", configHandler.Action)
	}

	return router, bg
}

// healthCheckHandler reports process liveness plus database connectivity.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler gates traffic on the database being reachable.
func readinessHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready": false,
				"error": "database not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready": true,
			"time":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware emits one structured record per request. Output format
// (JSON or text) follows the global slog handler configured at startup.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}
