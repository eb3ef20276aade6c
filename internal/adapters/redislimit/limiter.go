// Package redislimit is a ratelimit.Limiter shared across service instances
// through Redis.
package redislimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/postflow/internal/domain/ratelimit"
)

const defaultPrefix = "postflow:publish:"

// Limiter reserves a slot with SET NX PX, so the key exists exactly while the
// user's cooldown runs and the check-and-reserve is a single atomic command.
type Limiter struct {
	client   redis.UniversalClient
	interval time.Duration
	prefix   string
	now      func() time.Time
}

var _ ratelimit.Limiter = (*Limiter)(nil)

// Option configures a Limiter.
type Option func(*Limiter)

func WithInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithPrefix namespaces the reservation keys.
func WithPrefix(p string) Option {
	return func(l *Limiter) {
		if p != "" {
			l.prefix = p
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter over client.
func New(client redis.UniversalClient, opts ...Option) *Limiter {
	l := &Limiter{
		client:   client,
		interval: ratelimit.DefaultInterval,
		prefix:   defaultPrefix,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Reserve implements ratelimit.Limiter.
func (l *Limiter) Reserve(ctx context.Context, userID string) error {
	const op = "redislimit.reserve"

	if userID == "" {
		return ratelimit.ErrEmptyUser
	}
	key := l.prefix + userID
	now := l.now()

	// A key can expire between SETNX and PTTL; one more round settles it.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := l.client.SetNX(ctx, key, strconv.FormatInt(now.UnixMilli(), 10), l.interval).Result()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return nil
		}

		ttl, err := l.client.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ttl > 0 {
			// The reservation started interval - ttl ago.
			return ratelimit.CheckAndReserve(now.Add(ttl-l.interval), now, l.interval)
		}
		if ttl == -1 {
			// Written without expiry by something else; repair it.
			if err := l.client.PExpire(ctx, key, l.interval).Err(); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return ratelimit.CheckAndReserve(now, now, l.interval)
		}
	}
	return fmt.Errorf("%s: reservation for %s kept expiring", op, userID)
}
