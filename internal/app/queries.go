package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/postflow/internal/adapters/repository"
	"github.com/okian/postflow/internal/domain/model"
)

// PostView is a post with its commerce listings.
type PostView struct {
	*model.Post
	CommerceItems []model.CommerceItem `json:"commerceItems,omitempty"`
}

// GetPost returns a servable post. Pending posts are never served and drafts
// are visible to their author only.
func (s *Service) GetPost(ctx context.Context, id *model.Identity, postID string) (*PostView, error) {
	const op = "service.get_post"

	p, err := s.pipeline()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	post, err := p.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreError(err))
	}
	switch post.Status {
	case model.StatusPending:
		return nil, fmt.Errorf("%s: %s: %w", op, postID, ErrNotFound)
	case model.StatusDraft:
		if id == nil || id.UserID != post.AuthorID {
			return nil, fmt.Errorf("%s: %s: %w", op, postID, ErrNotFound)
		}
	}

	view := &PostView{Post: post}
	if post.HasCommerce {
		items, err := p.store.ListCommerceItems(ctx, postID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		view.CommerceItems = items
	}
	return view, nil
}

// SetCommerceAvailability opens or closes a listing. Only its author may.
func (s *Service) SetCommerceAvailability(ctx context.Context, id *model.Identity, itemID string, available bool) (*model.CommerceItem, error) {
	const op = "service.set_commerce_availability"

	p, err := s.pipeline()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if id == nil || id.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotAuthenticated)
	}
	item, err := p.store.GetCommerceItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreError(err))
	}
	if item.AuthorID != id.UserID {
		return nil, fmt.Errorf("%s: %s: %w", op, itemID, ErrForbidden)
	}

	at := s.now()
	if err := p.store.SetCommerceAvailability(ctx, itemID, available, at); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStoreError(err))
	}
	item.Available = available
	item.UpdatedAt = at
	return item, nil
}

// ListBadges returns the caller's badges.
func (s *Service) ListBadges(ctx context.Context, id *model.Identity) ([]model.Badge, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	if id == nil || id.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	return p.engine.ListBadges(ctx, id.UserID)
}

// ListRewards returns the caller's milestone rewards.
func (s *Service) ListRewards(ctx context.Context, id *model.Identity) ([]model.Reward, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	if id == nil || id.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	return p.engine.ListRewards(ctx, id.UserID)
}

// ClaimReward redeems one of the caller's rewards.
func (s *Service) ClaimReward(ctx context.Context, id *model.Identity, rewardID string) (*model.Reward, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	if id == nil || id.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	r, err := p.engine.ClaimReward(ctx, id.UserID, rewardID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return r, nil
}

// Counters returns the caller's counters, zero-valued for a new user.
func (s *Service) Counters(ctx context.Context, id *model.Identity) (*model.Counters, error) {
	p, err := s.pipeline()
	if err != nil {
		return nil, err
	}
	if id == nil || id.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	c, err := p.store.GetCounters(ctx, id.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.Counters{UserID: id.UserID}, nil
	}
	return c, err
}
