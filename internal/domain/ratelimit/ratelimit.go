// Package ratelimit gates publishes behind a per-user cooldown.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultInterval is the minimum spacing between two publishes by one user.
const DefaultInterval = time.Minute

// CheckAndReserve decides whether a publish at now is allowed given the
// caller's last reserved publish. A zero last always passes.
// Rejections carry a positive RetryAfterSeconds.
func CheckAndReserve(last, now time.Time, minInterval time.Duration) error {
	if last.IsZero() || minInterval <= 0 {
		return nil
	}
	elapsed := now.Sub(last)
	if elapsed >= minInterval {
		return nil
	}
	remaining := minInterval - elapsed
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return &RateLimitedError{RetryAfterSeconds: secs}
}

// Limiter reserves a publish slot for a user.
type Limiter interface {
	// Reserve atomically checks the cooldown and, when it passes, records now
	// as the user's last publish. The reservation is not released if the
	// publish later fails.
	Reserve(ctx context.Context, userID string) error
}

// memoryLimiter keeps last-publish timestamps in process memory.
type memoryLimiter struct {
	mu         sync.Mutex
	last       map[string]time.Time
	interval   time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(opts ...Option) Limiter {
	l := &memoryLimiter{
		interval:   DefaultInterval,
		maxEntries: 100_000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.last = make(map[string]time.Time)
	return l
}

func (l *memoryLimiter) Reserve(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUser
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if err := CheckAndReserve(l.last[userID], now, l.interval); err != nil {
		return err
	}
	if l.maxEntries > 0 && len(l.last) >= l.maxEntries {
		l.evictExpired(now)
	}
	l.last[userID] = now
	return nil
}

// evictExpired drops entries whose cooldown has passed. Must be called with l.mu held.
func (l *memoryLimiter) evictExpired(now time.Time) {
	for id, ts := range l.last {
		if now.Sub(ts) >= l.interval {
			delete(l.last, id)
		}
	}
}

// Size returns the number of tracked users.
func (l *memoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.last)
}
