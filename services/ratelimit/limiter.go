// Package ratelimit throttles proposal submissions per student.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether one more hit on key fits in limit hits per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

type bucket struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter local to the process.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) bool {
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		l.gc(now)
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(window)}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

// gc drops expired buckets. Must be called with l.mu held.
func (l *MemoryLimiter) gc(now time.Time) {
	for k, b := range l.buckets {
		if !now.Before(b.resetAt) {
			delete(l.buckets, k)
		}
	}
}
