// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and POSTFLOW_ env vars over the defaults.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Backend names accepted by the *_backend keys.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendGridFS = "gridfs"
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
	BackendLog    = "log"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	HTTPReadTimeoutMS  int `koanf:"http_read_timeout_ms"`
	HTTPWriteTimeoutMS int `koanf:"http_write_timeout_ms"`

	// StoreBackend selects the document store: memory or mongo.
	StoreBackend  string `koanf:"store_backend"`
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// BlobBackend selects the object store: memory or gridfs.
	BlobBackend string `koanf:"blob_backend"`
	BlobBucket  string `koanf:"blob_bucket"`

	// PublicBaseURL prefixes every asset url handed out by the object store.
	PublicBaseURL string `koanf:"public_base_url"`

	// RateLimitBackend selects where cooldown reservations live: memory or redis.
	RateLimitBackend  string `koanf:"rate_limit_backend"`
	RedisAddr         string `koanf:"redis_addr"`
	PublishIntervalMS int    `koanf:"publish_interval_ms"`

	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
	MaxAssets      int   `koanf:"max_assets"`

	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// EventsBackend selects the post event sink: log or kafka.
	EventsBackend string `koanf:"events_backend"`

	// KafkaBrokers is a comma-separated broker list.
	KafkaBrokers     string `koanf:"kafka_brokers"`
	KafkaTopic       string `koanf:"kafka_topic"`
	EventQueueSize   int    `koanf:"event_queue_size"`
	EventWorkerCount int    `koanf:"event_worker_count"`

	SweepIntervalMS int `koanf:"sweep_interval_ms"`
	PendingGraceMS  int `koanf:"pending_grace_ms"`

	TracingEnabled     bool   `koanf:"tracing_enabled"`
	TracingServiceName string `koanf:"tracing_service_name"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		HTTPReadTimeoutMS:  30_000,
		HTTPWriteTimeoutMS: 60_000,
		StoreBackend:       BackendMemory,
		MongoURI:           "mongodb://localhost:27017",
		MongoDatabase:      "postflow",
		BlobBackend:        BackendMemory,
		BlobBucket:         "assets",
		PublicBaseURL:      "http://localhost:9080/assets",
		RateLimitBackend:   BackendMemory,
		RedisAddr:          "localhost:6379",
		PublishIntervalMS:  60_000,
		MaxUploadBytes:     32 << 20,
		MaxAssets:          10,
		JWTSecret:          "",
		JWTIssuer:          "postflow",
		EventsBackend:      BackendLog,
		KafkaBrokers:       "localhost:9092",
		KafkaTopic:         "post-published",
		EventQueueSize:     10_000,
		EventWorkerCount:   runtime.NumCPU(),
		SweepIntervalMS:    int(time.Hour / time.Millisecond),
		PendingGraceMS:     int(5 * time.Minute / time.Millisecond),
		TracingEnabled:     false,
		TracingServiceName: "postflow",
	}
}

// PublishInterval returns the per-user publish cooldown.
func (c *Config) PublishInterval() time.Duration {
	return time.Duration(c.PublishIntervalMS) * time.Millisecond
}

// SweepInterval returns the integrity sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// PendingGrace returns how long a pending post may live before the sweep removes it.
func (c *Config) PendingGrace() time.Duration {
	return time.Duration(c.PendingGraceMS) * time.Millisecond
}

// Brokers splits KafkaBrokers into its entries.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks the config for values the service cannot start with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	positives := map[string]int{
		"publish_interval_ms": c.PublishIntervalMS,
		"max_assets":          c.MaxAssets,
		"event_queue_size":    c.EventQueueSize,
		"event_worker_count":  c.EventWorkerCount,
		"sweep_interval_ms":   c.SweepIntervalMS,
		"pending_grace_ms":    c.PendingGraceMS,
	}
	for k, v := range positives {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, k)
		}
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("%w: mongo store requires mongo_uri and mongo_database", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	switch c.BlobBackend {
	case BackendMemory:
	case BackendGridFS:
		if c.MongoURI == "" || c.BlobBucket == "" {
			return fmt.Errorf("%w: gridfs blobs require mongo_uri and blob_bucket", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown blob_backend %q", ErrInvalidConfig, c.BlobBackend)
	}

	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis rate limiting requires redis_addr", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown rate_limit_backend %q", ErrInvalidConfig, c.RateLimitBackend)
	}

	switch c.EventsBackend {
	case BackendLog:
	case BackendKafka:
		if len(c.Brokers()) == 0 || c.KafkaTopic == "" {
			return fmt.Errorf("%w: kafka events require kafka_brokers and kafka_topic", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown events_backend %q", ErrInvalidConfig, c.EventsBackend)
	}
	return nil
}
