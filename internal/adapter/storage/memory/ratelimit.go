package memory

import (
	"context"
	"sync"
	"time"

	"points-ledger/internal/core/ports"
)

// RateLimiter is a fixed-window ports.RateLimiter for single-process use.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

type window struct {
	id    int64
	count int64
}

// NewRateLimiter creates a RateLimiter. A nil clock uses time.Now.
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{windows: make(map[string]window), now: now}
}

// Allow counts one request for key in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int64, size time.Duration) (*ports.RateLimitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	secs := int64(size.Seconds())
	if secs < 1 {
		secs = 1
	}
	id := r.now().Unix() / secs

	w := r.windows[key]
	if w.id != id {
		w = window{id: id}
	}
	w.count++
	r.windows[key] = w

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (id + 1) * secs,
	}, nil
}
