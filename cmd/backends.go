package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/okian/postflow/internal/adapters/blob"
	"github.com/okian/postflow/internal/adapters/mq/kafka"
	"github.com/okian/postflow/internal/adapters/redislimit"
	"github.com/okian/postflow/internal/adapters/repository"
	app "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/config"
	"github.com/okian/postflow/pkg/logger"
)

// backends holds the adapters selected by the *_backend keys. A nil field
// leaves the service on its in-memory default.
type backends struct {
	store     repository.Store
	objects   app.ObjectStore
	limiter   *redislimit.Limiter
	publisher *kafka.Producer
	closers   []func(context.Context) error
	log       logger.Logger
}

// openBackends dials every external backend cfg selects. On error the
// backends opened so far are closed.
func openBackends(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *backends, err error) {
	const op = "main.open_backends"

	be := &backends{log: log}
	defer func() {
		if err != nil {
			be.Close(context.Background())
			if be.store != nil {
				_ = be.store.Close(context.Background())
			}
		}
	}()

	var client *mongo.Client
	if cfg.StoreBackend == config.BackendMongo || cfg.BlobBackend == config.BackendGridFS {
		if client, err = repository.Connect(ctx, cfg.MongoURI); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if cfg.StoreBackend != config.BackendMongo {
			// The store disconnects the client on Close; without it nothing else would.
			be.closers = append(be.closers, client.Disconnect)
		}
	}

	if cfg.StoreBackend == config.BackendMongo {
		st, err := repository.NewMongoStore(ctx, client, cfg.MongoDatabase, repository.WithLogger(log.Named("store")))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		be.store = st
	}

	if cfg.BlobBackend == config.BackendGridFS {
		objects, err := blob.NewGridFSStore(client.Database(cfg.MongoDatabase), cfg.BlobBucket, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		be.objects = objects
	}

	if cfg.RateLimitBackend == config.BackendRedis {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		be.closers = append(be.closers, func(context.Context) error { return rc.Close() })
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("%s: redis ping: %w", op, err)
		}
		be.limiter = redislimit.New(rc, redislimit.WithInterval(cfg.PublishInterval()))
	}

	if cfg.EventsBackend == config.BackendKafka {
		p, err := kafka.NewProducer(cfg.Brokers(), cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		be.publisher = p
		be.closers = append(be.closers, func(context.Context) error { return p.Close() })
	}
	return be, nil
}

// Options returns the service options for the opened backends.
func (b *backends) Options() []app.Option {
	var opts []app.Option
	if b.store != nil {
		opts = append(opts, app.WithStore(b.store))
	}
	if b.objects != nil {
		opts = append(opts, app.WithObjectStore(b.objects))
	}
	if b.limiter != nil {
		opts = append(opts, app.WithLimiter(b.limiter))
	}
	if b.publisher != nil {
		opts = append(opts, app.WithEventPublisher(b.publisher))
	}
	return opts
}

// Close releases the backends in reverse order of opening. The store is
// closed by the service.
func (b *backends) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			b.log.Warn(ctx, "backend close failed", logger.Error(err))
		}
	}
	b.closers = nil
}
