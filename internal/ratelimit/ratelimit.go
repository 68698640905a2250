// Package ratelimit provides a fixed-window request limiter with TTL
// semantics, injected into the HTTP layer rather than held as global
// process state.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter answers whether one more event is allowed for a key within
// the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type memoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter returns an in-process limiter for single-instance
// deployments and tests.
func NewMemoryLimiter() Limiter {
	return &memoryLimiter{windows: make(map[string]*window)}
}

func (l *memoryLimiter) Allow(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(ttl)}
		l.windows[key] = w
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}
