// Package ratelimit implements keyed, time-windowed request budgets behind an
// injectable Store so the backing can be swapped: an in-process map for
// single-instance deployments, Redis (via redis_rate) when counters must be
// shared across instances.
//
// Two policies are built on top of the store by the middleware layer: the
// login policy keyed by (client IP, username) with a small budget and
// reset-on-success, and the API policy keyed by client IP alone.
package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// Result reports the outcome of a single budget check.
type Result struct {
	// Allowed is false when the key is over budget for the current window.
	Allowed bool
	// Remaining is the number of requests left in the window.
	Remaining int
	// RetryAfter is how long until the key has budget again; zero when allowed.
	RetryAfter time.Duration
}

// Store counts requests per key within a rolling window.
type Store interface {
	// Take consumes one unit of budget for key and reports the outcome.
	Take(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	// Reset clears the counter for key (e.g. after a successful login).
	Reset(ctx context.Context, key string) error
}

// Policy binds a Store to a fixed budget and window.
type Policy struct {
	Name   string
	Store  Store
	Limit  int
	Window time.Duration
}

// Check consumes one unit of budget for key under this policy.
func (p *Policy) Check(ctx context.Context, key string) (*Result, error) {
	return p.Store.Take(ctx, key, p.Limit, p.Window)
}

// Reset clears the counter for key under this policy.
func (p *Policy) Reset(ctx context.Context, key string) error {
	return p.Store.Reset(ctx, key)
}

// Headers returns the rate-limit response headers for a check outcome. The
// X-RateLimit-* pair is always present; Retry-After only on rejection.
func (p *Policy) Headers(res *Result) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(p.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(res.Remaining),
	}
	if !res.Allowed {
		h["Retry-After"] = strconv.Itoa(RetryAfterSeconds(res.RetryAfter))
	}
	return h
}

// RetryAfterSeconds converts a retry interval to whole seconds, rounding up so
// a client that waits the advertised time is guaranteed fresh budget.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
