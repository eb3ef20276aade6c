package ratelimit

import "time"

// Option applies a configuration option to the in-memory limiter.
type Option func(*memoryLimiter)

// WithInterval sets the cooldown between publishes.
func WithInterval(d time.Duration) Option {
	return func(l *memoryLimiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMaxEntries bounds the number of tracked users before expired entries are evicted.
// maxEntries <= 0 disables eviction.
func WithMaxEntries(n int) Option {
	return func(l *memoryLimiter) {
		l.maxEntries = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *memoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}
