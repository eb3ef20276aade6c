// Package publication turns uploaded assets into a durable post: write,
// verify, then the best-effort follow-ups (commerce, counters, rewards,
// collections).
package publication

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/pricing"
	"github.com/okian/postflow/internal/domain/rewards"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

// ProfileReader looks up stored profiles.
type ProfileReader interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// Store is the slice of the document store publication writes to.
type Store interface {
	ProfileReader
	CreatePost(ctx context.Context, p *model.Post) error
	UpdatePostStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) error
	DeletePost(ctx context.Context, id string) error
	CreateCommerceItem(ctx context.Context, c *model.CommerceItem) error
	IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error
	AppendToCollection(ctx context.Context, collectionID, ownerID, postID string) error
}

// Resolver confirms an asset url can be read back.
type Resolver interface {
	Resolve(ctx context.Context, url string) error
}

// Awarder runs the reward engine for a published post.
type Awarder interface {
	AwardForPost(ctx context.Context, post *model.Post) (rewards.Result, error)
}

// Step names a best-effort stage whose failure never fails the publish.
type Step string

const (
	StepProfile    Step = "profile"
	StepCommerce   Step = "commerce"
	StepCounters   Step = "counters"
	StepRewards    Step = "rewards"
	StepCollection Step = "collection"
)

// StepResult records the failure of one best-effort stage.
type StepResult struct {
	Step Step
	Err  error
}

// Request is a post whose assets are already uploaded.
type Request struct {
	Identity       *model.Identity
	Title          string
	Tags           []string
	Location       string
	CollectionID   string
	Status         model.PostStatus
	PremiumCreator bool
	Assets         []model.Asset
}

// Result is what a successful publish produced.
type Result struct {
	Post            *model.Post
	CommerceItemIDs []string
	Rewards         rewards.Result
	// Degraded lists best-effort stages that failed.
	Degraded []StepResult
}

// Publisher runs the publication transaction.
type Publisher struct {
	store    Store
	resolver Resolver
	awarder  Awarder
	log      logger.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIDGenerator overrides post id generation.
func WithIDGenerator(fn func() string) Option {
	return func(p *Publisher) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// NewPublisher creates a Publisher. awarder may be nil to skip rewards.
func NewPublisher(store Store, resolver Resolver, awarder Awarder, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		resolver: resolver,
		awarder:  awarder,
		log:      logger.NewNop(),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes the post as pending, verifies every asset url, and only
// then flips it to the requested status. A verification failure deletes the
// post and returns ErrVerificationFailed. A pending post left behind by a
// crash is removed by the integrity sweep.
func (p *Publisher) Publish(ctx context.Context, req Request) (Result, error) {
	const op = "publication.publish"

	if req.Identity == nil {
		return Result{}, fmt.Errorf("%s: %w", op, ErrNoIdentity)
	}
	if len(req.Assets) == 0 {
		return Result{}, fmt.Errorf("%s: %w", op, ErrNoAssets)
	}
	target := req.Status
	if target == "" {
		target = model.StatusPublished
	}

	var res Result
	author, err := ResolveAuthor(ctx, p.store, req.Identity)
	if err != nil {
		res.degrade(ctx, p.log, StepProfile, err)
	}

	now := p.now()
	post := &model.Post{
		ID:             p.newID(),
		AuthorID:       req.Identity.UserID,
		AuthorName:     author.Name,
		AuthorPhotoURL: author.PhotoURL,
		Title:          req.Title,
		Tags:           req.Tags,
		Location:       req.Location,
		Assets:         req.Assets,
		Status:         model.StatusPending,
		CollectionID:   req.CollectionID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	post.SearchKeywords = SearchKeywords(req.Title, author.Name, req.Location, req.Tags)
	for _, a := range req.Assets {
		if a.Sellable && a.Kind == model.AssetImage {
			post.HasCommerce = true
		}
	}

	if err := p.store.CreatePost(ctx, post); err != nil {
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrPersistFailed, err)
	}

	if err := p.verify(ctx, post); err != nil {
		metrics.RecordVerificationFailure()
		p.log.Warn(ctx, "post verification failed, removing",
			logger.String("post_id", post.ID), logger.Error(err))
		p.compensate(ctx, post.ID)
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrVerificationFailed, err)
	}
	if err := p.store.UpdatePostStatus(ctx, post.ID, target, p.now()); err != nil {
		p.compensate(ctx, post.ID)
		return Result{}, fmt.Errorf("%s: %w: %w", op, ErrPersistFailed, err)
	}
	post.Status = target
	res.Post = post

	res.CommerceItemIDs = p.createCommerceItems(ctx, &res, post, req.PremiumCreator)

	if err := p.store.IncrementCounters(ctx, post.AuthorID, model.CounterDelta{PostCount: 1}); err != nil {
		res.degrade(ctx, p.log, StepCounters, err)
	}

	if p.awarder != nil {
		awarded, err := p.awarder.AwardForPost(ctx, post)
		if err != nil {
			// The post stands; a partial award is reported as none.
			res.degrade(ctx, p.log, StepRewards, err)
		} else {
			res.Rewards = awarded
		}
	}

	if req.CollectionID != "" {
		if err := p.store.AppendToCollection(ctx, req.CollectionID, post.AuthorID, post.ID); err != nil {
			res.degrade(ctx, p.log, StepCollection, err)
		}
	}
	return res, nil
}

func (p *Publisher) verify(ctx context.Context, post *model.Post) error {
	for _, a := range post.Assets {
		if a.Kind != model.AssetImage {
			continue
		}
		if a.URL == "" {
			return fmt.Errorf("asset %d has no url", a.Index)
		}
		if err := p.resolver.Resolve(ctx, a.URL); err != nil {
			return fmt.Errorf("asset %d: %w", a.Index, err)
		}
	}
	return nil
}

// compensate removes a post that must never be served. Failure leaves it
// pending for the sweep.
func (p *Publisher) compensate(ctx context.Context, postID string) {
	metrics.RecordCompensatingDelete()
	if err := p.store.DeletePost(context.WithoutCancel(ctx), postID); err != nil {
		p.log.Error(ctx, "compensating delete failed", logger.String("post_id", postID), logger.Error(err))
	}
}

func (p *Publisher) createCommerceItems(ctx context.Context, res *Result, post *model.Post, premiumCreator bool) []string {
	var ids []string
	for _, a := range post.Assets {
		if !a.Sellable || a.Kind != model.AssetImage {
			continue
		}
		tier, ok := pricing.ParseTier(a.Tier)
		if !ok {
			metrics.RecordCommerceItem("skipped")
			res.degrade(ctx, p.log, StepCommerce, fmt.Errorf("asset %d: %w %q", a.Index, pricing.ErrUnknownTier, a.Tier))
			continue
		}
		prices := pricing.Catalog(pricing.CatalogInput{
			Tier:            tier,
			PremiumCreator:  premiumCreator,
			AspectRatio:     a.AspectRatio,
			IncludeStickers: a.Stickers,
		})
		if prices == nil {
			// No best-fit size: the draft is still listed so the owner can configure it.
			prices = []model.PriceEntry{}
		}

		item := &model.CommerceItem{
			ID:         CommerceItemID(post.ID, a.Index),
			PostID:     post.ID,
			AssetIndex: a.Index,
			AuthorID:   post.AuthorID,
			AuthorName: post.AuthorName,
			Title:      itemTitle(post.Title, a.Index),
			ImageURL:   a.URL,
			Tier:       tier.String(),
			Prices:     prices,
			Available:  false,
			Status:     string(model.StatusDraft),
			CreatedAt:  post.CreatedAt,
			UpdatedAt:  post.CreatedAt,
		}
		if err := p.store.CreateCommerceItem(ctx, item); err != nil {
			metrics.RecordCommerceItem("skipped")
			res.degrade(ctx, p.log, StepCommerce, fmt.Errorf("asset %d: %w", a.Index, err))
			continue
		}
		metrics.RecordCommerceItem("created")
		ids = append(ids, item.ID)
	}
	return ids
}

// CommerceItemID is deterministic so a replayed publish cannot list an asset twice.
func CommerceItemID(postID string, index int) string {
	return postID + "_" + strconv.Itoa(index)
}

func itemTitle(title string, index int) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	if index == 0 {
		return title
	}
	return title + " #" + strconv.Itoa(index+1)
}

func (r *Result) degrade(ctx context.Context, log logger.Logger, step Step, err error) {
	metrics.RecordDegradedStep(string(step))
	log.Warn(ctx, "publish step degraded", logger.String("step", string(step)), logger.Error(err))
	r.Degraded = append(r.Degraded, StepResult{Step: step, Err: err})
}
