// memory.go implements the in-process Store: a fixed-window counter per key
// with a periodic cleanup goroutine so abandoned keys do not accumulate.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count       int
	windowStart time.Time
}

// MemoryStore is a process-local fixed-window counter store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates a MemoryStore and starts its cleanup goroutine.
// cleanupInterval also serves as the retention horizon: entries whose window
// started more than two intervals ago are dropped.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go s.cleanup(cleanupInterval)
	return s
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := s.now().Add(-2 * interval)
			s.mu.Lock()
			for key, entry := range s.entries {
				if entry.windowStart.Before(cutoff) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Take consumes one unit of budget for key in the current fixed window.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.entries[key]
	if !exists || now.Sub(entry.windowStart) >= window {
		s.entries[key] = &memoryEntry{count: 1, windowStart: now}
		return &Result{Allowed: true, Remaining: limit - 1}, nil
	}

	if entry.count >= limit {
		return &Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: entry.windowStart.Add(window).Sub(now),
		}, nil
	}

	entry.count++
	return &Result{Allowed: true, Remaining: limit - entry.count}, nil
}

// Reset clears the counter for key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
