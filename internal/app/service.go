// Package service composes the publish pipeline and exposes it to the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/postflow/internal/adapters/blob"
	eventqueue "github.com/okian/postflow/internal/adapters/mq/queue"
	workerpool "github.com/okian/postflow/internal/adapters/mq/worker"
	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/metadata"
	"github.com/okian/postflow/internal/domain/publication"
	"github.com/okian/postflow/internal/domain/ratelimit"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/internal/domain/upload"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

const (
	defaultMaxAssets      = 10
	defaultMaxUploadBytes = 32 << 20
	defaultQueueSize      = 10_000
	stopTimeout           = 30 * time.Second
)

// ObjectStore is the asset store the pipeline uploads to and probes from.
type ObjectStore interface {
	upload.ObjectStore
	metadata.Opener
}

// Service implements the API dependencies for the publish pipeline.
type Service struct {
	mu sync.RWMutex

	// Backends
	store     repository.Store
	objects   ObjectStore
	limiter   ratelimit.Limiter
	publisher workerpool.Publisher

	// Pipeline components, built in Start
	uploader   *upload.Uploader
	extractor  *metadata.Extractor
	posts      *publication.Publisher
	engine     *rewards.Engine
	eventQueue eventqueue.Queue
	workerPool *workerpool.Pool
	sweeper    *Sweeper

	// Configuration
	workerCount    int
	queueSize      int
	maxAssets      int
	maxUploadBytes int64
	interval       time.Duration
	sweepInterval  time.Duration
	pendingGrace   time.Duration
	now            func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the document store. Defaults to an in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithObjectStore sets the asset store. Defaults to an in-memory store.
func WithObjectStore(o ObjectStore) Option {
	return func(s *Service) {
		if o != nil {
			s.objects = o
		}
	}
}

// WithLimiter sets the publish rate limiter. Defaults to an in-memory limiter
// using the configured interval.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithEventPublisher sets where post events are relayed. Defaults to the log.
func WithEventPublisher(p workerpool.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithWorkerCount sets the number of event relay workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

func WithMaxAssets(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAssets = n
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithPublishInterval sets the cooldown of the default limiter.
func WithPublishInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweep sets how often the integrity sweep runs and how long a pending
// post may live. A zero interval disables the background loop.
func WithSweep(interval, pendingGrace time.Duration) Option {
	return func(s *Service) {
		s.sweepInterval = interval
		if pendingGrace > 0 {
			s.pendingGrace = pendingGrace
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		maxAssets:      defaultMaxAssets,
		maxUploadBytes: defaultMaxUploadBytes,
		interval:       ratelimit.DefaultInterval,
		sweepInterval:  time.Hour,
		pendingGrace:   5 * time.Minute,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the pipeline and starts the event workers and the sweep loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.NamedOrNop("service")
	}
	s.logger.Info(ctx, "starting publish service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithLogger(s.logger.Named("store")))
		s.logger.Info(ctx, "using in-memory document store")
	}
	if s.objects == nil {
		s.objects = blob.NewMemoryStore("memory://assets")
		s.logger.Info(ctx, "using in-memory object store")
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewMemoryLimiter(ratelimit.WithInterval(s.interval), ratelimit.WithClock(s.now))
	}
	if s.publisher == nil {
		s.publisher = workerpool.NewLogPublisher(s.logger.Named("events"))
	}

	s.uploader = upload.NewUploader(s.objects, upload.WithClock(s.now))
	s.extractor = metadata.NewExtractor(s.objects, s.logger.Named("metadata"))
	s.engine = rewards.NewEngine(s.store,
		rewards.WithLogger(s.logger.Named("rewards")),
		rewards.WithClock(s.now),
	)
	s.posts = publication.NewPublisher(s.store, s.objects, tracedAwarder{svc: s, engine: s.engine},
		publication.WithLogger(s.logger.Named("publication")),
		publication.WithClock(s.now),
	)

	// Workers outlive the caller's ctx; Stop drains them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.publisher,
		workerpool.WithLogger(s.logger.Named("events")),
	)
	s.workerPool.Start(runCtx)

	s.sweeper = NewSweeper(s.store, s.objects,
		WithSweepLogger(s.logger.Named("sweeper")),
		WithSweepClock(s.now),
		WithPendingGrace(s.pendingGrace),
	)
	if s.sweepInterval > 0 {
		s.sweeper.Start(runCtx, s.sweepInterval)
	}

	s.started = true
	s.logger.Info(ctx, "publish service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("maxAssets", s.maxAssets),
	)
	return nil
}

// Stop drains pending events, stops the sweep and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping publish service...")

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.workerPool != nil {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "event workers did not drain", logger.Error(err))
		}
	}
	s.cancel()

	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "publish service stopped")
}

// IsStarted reports whether Start has completed.
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"maxAssets":   s.maxAssets,
	}
	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["lastSweep"] = s.sweeper.LastReport()

		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// pipeline returns the started components or ErrNotStarted.
func (s *Service) pipeline() (*pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return &pipeline{
		store:     s.store,
		objects:   s.objects,
		limiter:   s.limiter,
		uploader:  s.uploader,
		extractor: s.extractor,
		posts:     s.posts,
		engine:    s.engine,
		queue:     s.eventQueue,
	}, nil
}

// pipeline is a consistent snapshot of the components a request runs against.
type pipeline struct {
	store     repository.Store
	objects   ObjectStore
	limiter   ratelimit.Limiter
	uploader  *upload.Uploader
	extractor *metadata.Extractor
	posts     *publication.Publisher
	engine    *rewards.Engine
	queue     eventqueue.Queue
}
