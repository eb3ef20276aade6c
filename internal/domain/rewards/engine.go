package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

// Store is the slice of the document store the engine needs.
type Store interface {
	RunTransaction(ctx context.Context, fn repository.TxFunc) error
	FindBadge(ctx context.Context, userID, subject string) (*model.Badge, error)
	IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error
	ListBadges(ctx context.Context, userID string) ([]model.Badge, error)
	ListRewards(ctx context.Context, userID string) ([]model.Reward, error)
	ClaimReward(ctx context.Context, userID, rewardID string, at time.Time) (*model.Reward, error)
}

// Result summarizes what a post earned.
type Result struct {
	Badges      []model.Badge
	Rewards     []model.Reward
	BonusPoints int64
}

// Engine awards badges and milestone rewards.
type Engine struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides the time source used for awardedAt and createdAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine over store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store, log: logger.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AwardForPost processes every subject referenced by the post. A first
// sighting creates the badge, adds its points and issues any milestone
// crossed, all in one transaction. A repeat grants BonusPoints outside the
// transaction. On error the partial result so far is returned with it.
func (e *Engine) AwardForPost(ctx context.Context, post *model.Post) (Result, error) {
	const op = "rewards.award_for_post"

	var res Result
	if post.AuthorID == "" {
		return res, fmt.Errorf("%s: %w", op, ErrEmptyUser)
	}

	var imageURL string
	if urls := post.AssetURLs(); len(urls) > 0 {
		imageURL = urls[0]
	}

	for _, subject := range ExtractSubjects(post.Tags, post.Location) {
		_, err := e.store.FindBadge(ctx, post.AuthorID, string(subject.Key))
		switch {
		case err == nil:
			if err := e.grantBonus(ctx, post.AuthorID); err != nil {
				return res, fmt.Errorf("%s: bonus %s: %w", op, subject.Key, err)
			}
			res.BonusPoints += BonusPoints
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return res, fmt.Errorf("%s: find badge %s: %w", op, subject.Key, err)
		}

		badge, issued, err := e.award(ctx, post, subject, imageURL)
		if errors.Is(err, errAlreadyAwarded) {
			// Lost a race with a concurrent publish for the same subject.
			if err := e.grantBonus(ctx, post.AuthorID); err != nil {
				return res, fmt.Errorf("%s: bonus %s: %w", op, subject.Key, err)
			}
			res.BonusPoints += BonusPoints
			continue
		}
		if err != nil {
			return res, fmt.Errorf("%s: award %s: %w", op, subject.Key, err)
		}

		metrics.RecordBadgeAwarded(string(subject.Category))
		for _, r := range issued {
			metrics.RecordRewardIssued(string(r.Type))
		}
		e.log.Info(ctx, "badge awarded",
			logger.String("user_id", post.AuthorID),
			logger.String("subject", string(subject.Key)),
			logger.Int("points", badge.PointsAwarded),
			logger.Int("rewards", len(issued)),
		)
		res.Badges = append(res.Badges, badge)
		res.Rewards = append(res.Rewards, issued...)
	}
	return res, nil
}

// award runs the badge transaction. The closure rebuilds its outputs from
// scratch on every attempt.
func (e *Engine) award(ctx context.Context, post *model.Post, subject Subject, imageURL string) (model.Badge, []model.Reward, error) {
	at := e.now()
	points := Points(subject.Rarity, DefaultCoolness)

	var (
		badge  model.Badge
		issued []model.Reward
	)
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		issued = nil

		counters, err := tx.GetCounters(ctx, post.AuthorID)
		if err != nil {
			return err
		}
		_, err = tx.GetBadge(ctx, post.AuthorID, string(subject.Key))
		if err == nil {
			return errAlreadyAwarded
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		badge = model.Badge{
			ID:            model.BadgeID(post.AuthorID, string(subject.Key)),
			UserID:        post.AuthorID,
			UserName:      post.AuthorName,
			Subject:       string(subject.Key),
			Name:          subject.Name,
			Category:      string(subject.Category),
			Rarity:        subject.Rarity,
			Coolness:      DefaultCoolness,
			PointsAwarded: int(points),
			PostID:        post.ID,
			ImageURL:      imageURL,
			AwardedAt:     at,
		}
		if err := tx.CreateBadge(ctx, &badge); err != nil {
			if errors.Is(err, repository.ErrAlreadyExists) {
				return errAlreadyAwarded
			}
			return err
		}

		delta := model.CounterDelta{
			Points:      points,
			TotalBadges: 1,
			Categories:  map[string]int64{string(subject.Category): 1},
		}
		if err := tx.IncrementCounters(ctx, post.AuthorID, delta); err != nil {
			return err
		}

		for _, m := range CrossedMilestones(counters.Points, counters.Points+points) {
			r := m.Reward(post.AuthorID, at)
			if err := tx.CreateReward(ctx, &r); err != nil {
				return err
			}
			issued = append(issued, r)
		}
		return nil
	})
	if errors.Is(err, repository.ErrAlreadyExists) {
		err = errAlreadyAwarded
	}
	return badge, issued, err
}

func (e *Engine) grantBonus(ctx context.Context, userID string) error {
	if err := e.store.IncrementCounters(ctx, userID, model.CounterDelta{Points: BonusPoints}); err != nil {
		return err
	}
	metrics.RecordBonusGrant()
	return nil
}

// ListBadges returns the user's collected badges.
func (e *Engine) ListBadges(ctx context.Context, userID string) ([]model.Badge, error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}
	return e.store.ListBadges(ctx, userID)
}

// ListRewards returns the user's issued rewards, claimed or not.
func (e *Engine) ListRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}
	return e.store.ListRewards(ctx, userID)
}

// ClaimReward redeems one of the user's rewards.
func (e *Engine) ClaimReward(ctx context.Context, userID, rewardID string) (*model.Reward, error) {
	const op = "rewards.claim"

	if userID == "" {
		return nil, ErrEmptyUser
	}
	r, err := e.store.ClaimReward(ctx, userID, rewardID, e.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, ErrRewardNotFound)
	case errors.Is(err, repository.ErrAlreadyClaimed):
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyClaimed)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordRewardClaimed()
	return r, nil
}
