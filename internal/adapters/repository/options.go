package repository

import (
	"time"

	"github.com/okian/postflow/pkg/logger"
)

const defaultMaxAttempts = 8

type storeConfig struct {
	maxAttempts int
	now         func() time.Time
	log         logger.Logger
	beforeCommit func()
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		log:         logger.NewNop(),
	}
}

// Option applies a configuration option to a store.
type Option func(*storeConfig)

// WithMaxAttempts bounds how many times a conflicting transaction is re-run.
func WithMaxAttempts(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithClock overrides the time source used for server-side timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *storeConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(c *storeConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// withBeforeCommit installs a hook run between a transaction body and its
// commit. Tests use it to inject concurrent writers.
func withBeforeCommit(fn func()) Option {
	return func(c *storeConfig) {
		c.beforeCommit = fn
	}
}
