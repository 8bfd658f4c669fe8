package ratelimit

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	s := NewMemoryStore(time.Hour)
	t.Cleanup(s.Stop)

	current := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }
	return s, &current
}

func TestMemoryStore_BudgetExhaustion(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.Take(ctx, "ip:1.2.3.4", 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
		if want := 3 - (i + 1); res.Remaining != want {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res, err := s.Take(ctx, "ip:1.2.3.4", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Error("fourth request should be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
}

func TestMemoryStore_WindowRollover(t *testing.T) {
	s, current := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Take(ctx, "k", 2, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if res, _ := s.Take(ctx, "k", 2, time.Minute); res.Allowed {
		t.Fatal("expected over-budget rejection")
	}

	// Advance past the window: budget is fresh.
	*current = current.Add(61 * time.Second)
	res, err := s.Take(ctx, "k", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Allowed || res.Remaining != 1 {
		t.Errorf("after rollover: %+v", res)
	}
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Take(ctx, "ip:a|alice", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if res, _ := s.Take(ctx, "ip:a|alice", 1, time.Minute); res.Allowed {
		t.Error("alice's key should be exhausted")
	}
	if res, _ := s.Take(ctx, "ip:a|bob", 1, time.Minute); !res.Allowed {
		t.Error("bob's key must be unaffected")
	}
}

func TestMemoryStore_Reset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Take(ctx, "k", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if res, _ := s.Take(ctx, "k", 1, time.Minute); res.Allowed {
		t.Fatal("expected exhausted budget")
	}

	if err := s.Reset(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if res, _ := s.Take(ctx, "k", 1, time.Minute); !res.Allowed {
		t.Error("reset did not clear the counter")
	}
}

func TestPolicyHeaders(t *testing.T) {
	p := &Policy{Name: "login", Limit: 5, Window: time.Minute}

	h := p.Headers(&Result{Allowed: true, Remaining: 2})
	if h["X-RateLimit-Limit"] != "5" || h["X-RateLimit-Remaining"] != "2" {
		t.Errorf("allowed headers: %v", h)
	}
	if _, ok := h["Retry-After"]; ok {
		t.Error("Retry-After must be absent when allowed")
	}

	h = p.Headers(&Result{Allowed: false, Remaining: 0, RetryAfter: 1500 * time.Millisecond})
	if h["Retry-After"] != "2" {
		t.Errorf("Retry-After = %q, want 2 (rounded up)", h["Retry-After"])
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{59*time.Second + time.Millisecond, 60},
	}
	for _, tt := range tests {
		if got := RetryAfterSeconds(tt.d); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
