package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/upload"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

// SweepStore is the slice of the document store the sweep needs.
type SweepStore interface {
	ListPosts(ctx context.Context, f repository.PostFilter) ([]model.Post, error)
	DeletePost(ctx context.Context, id string) error
	DeleteCommerceItemsForPost(ctx context.Context, postID string) (int, error)
}

// Resolver confirms an asset url can be read back.
type Resolver interface {
	Resolve(ctx context.Context, url string) error
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	At             time.Time `json:"at"`
	PendingRemoved int       `json:"pendingRemoved"`
	BrokenRemoved  int       `json:"brokenRemoved"`
	Checked        int       `json:"checked"`
	Errors         int       `json:"errors"`
}

// Sweeper removes posts that must not be served: posts stuck pending past
// their grace period, and published posts whose assets no longer resolve.
type Sweeper struct {
	store    SweepStore
	resolver Resolver
	grace    time.Duration
	now      func() time.Time
	log      logger.Logger

	mu      sync.Mutex
	last    SweepReport
	running bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// SweepOption configures a Sweeper.
type SweepOption func(*Sweeper)

func WithSweepLogger(l logger.Logger) SweepOption {
	return func(w *Sweeper) {
		if l != nil {
			w.log = l
		}
	}
}

func WithSweepClock(now func() time.Time) SweepOption {
	return func(w *Sweeper) {
		if now != nil {
			w.now = now
		}
	}
}

// WithPendingGrace sets how long a post may stay pending before removal.
func WithPendingGrace(d time.Duration) SweepOption {
	return func(w *Sweeper) {
		if d > 0 {
			w.grace = d
		}
	}
}

// NewSweeper creates a Sweeper.
func NewSweeper(store SweepStore, resolver Resolver, opts ...SweepOption) *Sweeper {
	w := &Sweeper{
		store:    store,
		resolver: resolver,
		grace:    5 * time.Minute,
		now:      time.Now,
		log:      logger.NewNop(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs RunOnce every interval until Stop or ctx is done.
func (w *Sweeper) Start(ctx context.Context, interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil {
					w.log.Error(ctx, "integrity sweep failed", logger.Error(err))
				}
			}
		}
	}()
}

// Stop ends the loop started by Start and waits for it. It is a no-op when
// Start was never called.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}
	select {
	case <-w.done:
	case <-time.After(stopTimeout):
	}
}

// LastReport returns the report of the most recent run.
func (w *Sweeper) LastReport() SweepReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// RunOnce performs one sweep. Per-post failures are counted, not returned;
// an error means a listing failed.
func (w *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	const op = "service.sweep"

	now := w.now()
	rep := SweepReport{At: now}
	metrics.RecordSweepRun()

	pending, err := w.store.ListPosts(ctx, repository.PostFilter{
		Status:        model.StatusPending,
		CreatedBefore: now.Add(-w.grace),
	})
	if err != nil {
		return rep, fmt.Errorf("%s: list pending: %w", op, err)
	}
	for i := range pending {
		if w.remove(ctx, &pending[i], "pending") {
			rep.PendingRemoved++
		} else {
			rep.Errors++
		}
	}

	published, err := w.store.ListPosts(ctx, repository.PostFilter{Status: model.StatusPublished})
	if err != nil {
		return rep, fmt.Errorf("%s: list published: %w", op, err)
	}
	for i := range published {
		rep.Checked++
		broken, err := w.broken(ctx, &published[i])
		if err != nil {
			rep.Errors++
			w.log.Warn(ctx, "asset check failed", logger.String("post_id", published[i].ID), logger.Error(err))
			continue
		}
		if !broken {
			continue
		}
		if w.remove(ctx, &published[i], "broken") {
			rep.BrokenRemoved++
		} else {
			rep.Errors++
		}
	}

	metrics.RecordSweepRemoved("pending", rep.PendingRemoved)
	metrics.RecordSweepRemoved("broken", rep.BrokenRemoved)

	w.mu.Lock()
	w.last = rep
	w.mu.Unlock()

	w.log.Info(ctx, "integrity sweep complete",
		logger.Int("pending_removed", rep.PendingRemoved),
		logger.Int("broken_removed", rep.BrokenRemoved),
		logger.Int("checked", rep.Checked),
		logger.Int("errors", rep.Errors),
	)
	return rep, nil
}

// broken reports whether any asset of post is definitely gone. Transient
// resolve errors are returned so the post is kept.
func (w *Sweeper) broken(ctx context.Context, post *model.Post) (bool, error) {
	for _, url := range post.AssetURLs() {
		err := w.resolver.Resolve(ctx, url)
		switch {
		case err == nil:
		case errors.Is(err, upload.ErrObjectNotFound):
			return true, nil
		default:
			return false, err
		}
	}
	return false, nil
}

func (w *Sweeper) remove(ctx context.Context, post *model.Post, reason string) bool {
	if _, err := w.store.DeleteCommerceItemsForPost(ctx, post.ID); err != nil {
		w.log.Warn(ctx, "commerce cleanup failed", logger.String("post_id", post.ID), logger.Error(err))
		return false
	}
	if err := w.store.DeletePost(ctx, post.ID); err != nil {
		w.log.Warn(ctx, "post removal failed", logger.String("post_id", post.ID), logger.Error(err))
		return false
	}
	w.log.Info(ctx, "post removed by sweep", logger.String("post_id", post.ID), logger.String("reason", reason))
	return true
}
