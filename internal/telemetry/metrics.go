// Package telemetry provides application-level observability for the Launchboard server.
//
// All metrics are registered against the default Prometheus registry and are
// served on a side-channel HTTP server started by main.go:
//
//	GET http://<host>:<LB_TELEMETRY_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is deliberately NOT served by the Gin router
// so the scrape path stays off the public ingress and is never rate limited.
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/configs/:configId)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as configuration IDs.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Domain metrics.
var (
	// ConfigSavesTotal counts configuration writes by outcome: "ok", "conflict"
	// (stale optimistic-concurrency fence), or "invalid".
	ConfigSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_saves_total",
			Help: "Configuration save attempts, by outcome (ok, conflict, invalid).",
		},
		[]string{"outcome"},
	)

	// ConfigVersionsCreatedTotal counts snapshot creations (manual saves,
	// config creation seeds, and restores do not count restores themselves).
	ConfigVersionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "config_versions_created_total",
			Help: "Total number of configuration version snapshots created.",
		},
	)

	// LoginAttemptsTotal counts login attempts by outcome: "ok", "invalid_credentials",
	// or "rate_limited".
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Login attempts, by outcome (ok, invalid_credentials, rate_limited).",
		},
		[]string{"outcome"},
	)

	// RateLimitRejectionsTotal counts requests rejected by the rate limiter,
	// by policy ("login" or "api").
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by policy.",
		},
		[]string{"policy"},
	)
)

// Database pool gauges, polled periodically by StartDBPoolCollector.
var (
	dbOpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Number of open database connections (in use + idle).",
	})
	dbInUseConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "db_in_use_connections",
		Help: "Number of database connections currently in use.",
	})
)

// StartDBPoolCollector polls sql.DB pool statistics every interval and exports
// them as gauges. It returns a stop function; call it during shutdown.
func StartDBPoolCollector(db *sql.DB, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := db.Stats()
				dbOpenConnections.Set(float64(stats.OpenConnections))
				dbInUseConnections.Set(float64(stats.InUse))
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		slog.Debug("db pool collector stopped")
	}
}
