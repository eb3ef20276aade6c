// Package repository defines the document store used by the publication
// pipeline, with in-memory and MongoDB implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/postflow/internal/domain/model"
)

// TxFunc is the body of a transaction. It may run more than once when the
// store retries after a conflict, so it must derive everything it writes from
// what it reads through tx and must not touch state outside the closure.
type TxFunc func(ctx context.Context, tx Tx) error

// Tx is the view of the store available inside a transaction.
type Tx interface {
	// GetCounters returns the user's counters, or a zero document when absent.
	GetCounters(ctx context.Context, userID string) (*model.Counters, error)
	// GetBadge returns ErrNotFound when the pair was never awarded.
	GetBadge(ctx context.Context, userID, subject string) (*model.Badge, error)
	// CreateBadge fails with ErrAlreadyExists when the badge id is taken.
	CreateBadge(ctx context.Context, b *model.Badge) error
	// CreateReward fails with ErrAlreadyExists when the reward id is taken.
	CreateReward(ctx context.Context, r *model.Reward) error
	// IncrementCounters applies a commutative delta, creating the document if absent.
	IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error
}

// PostFilter narrows ListPosts.
type PostFilter struct {
	Status        model.PostStatus
	AuthorID      string
	CreatedBefore time.Time
	Limit         int
}

// Store provides read/write access to posts, commerce items, rewards and counters.
type Store interface {
	// RunTransaction executes fn atomically, retrying on ErrConflict.
	RunTransaction(ctx context.Context, fn TxFunc) error

	CreatePost(ctx context.Context, p *model.Post) error
	// GetPost returns ErrNotFound for unknown ids.
	GetPost(ctx context.Context, id string) (*model.Post, error)
	UpdatePostStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) error
	// DeletePost is idempotent: deleting a missing post is not an error.
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, f PostFilter) ([]model.Post, error)

	CreateCommerceItem(ctx context.Context, c *model.CommerceItem) error
	GetCommerceItem(ctx context.Context, id string) (*model.CommerceItem, error)
	SetCommerceAvailability(ctx context.Context, id string, available bool, at time.Time) error
	ListCommerceItems(ctx context.Context, postID string) ([]model.CommerceItem, error)
	DeleteCommerceItemsForPost(ctx context.Context, postID string) (int, error)

	FindBadge(ctx context.Context, userID, subject string) (*model.Badge, error)
	ListBadges(ctx context.Context, userID string) ([]model.Badge, error)
	ListRewards(ctx context.Context, userID string) ([]model.Reward, error)
	// ClaimReward marks an unclaimed reward as claimed. It returns ErrNotFound
	// for unknown rewards and ErrAlreadyClaimed when claimedAt is already set.
	ClaimReward(ctx context.Context, userID, rewardID string, at time.Time) (*model.Reward, error)

	// GetCounters returns ErrNotFound when the user has no counters yet.
	GetCounters(ctx context.Context, userID string) (*model.Counters, error)
	IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error

	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	PutProfile(ctx context.Context, p *model.Profile) error

	PutCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, id string) (*model.Collection, error)
	// AppendToCollection adds postID to the end of the collection unless
	// already present, creating the collection for ownerID when missing.
	// ErrForbidden when another user owns it.
	AppendToCollection(ctx context.Context, collectionID, ownerID, postID string) error

	Close(ctx context.Context) error
}
