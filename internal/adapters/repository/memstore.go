package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

// MemoryStore is an in-process Store. Transactions use optimistic
// concurrency: every transactional document carries a version, a transaction
// records the versions it read and buffers its writes, and commit rejects the
// whole batch with ErrConflict when any read version moved.
type MemoryStore struct {
	mu sync.Mutex

	posts       map[string]*model.Post
	commerce    map[string]*model.CommerceItem
	badges      map[string]*model.Badge
	rewards     map[string]*model.Reward
	counters    map[string]*model.Counters
	profiles    map[string]*model.Profile
	collections map[string]*model.Collection

	// versions is keyed by docKey and bumped on every write.
	versions map[string]uint64
	closed   bool

	cfg storeConfig
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryStore{
		posts:       make(map[string]*model.Post),
		commerce:    make(map[string]*model.CommerceItem),
		badges:      make(map[string]*model.Badge),
		rewards:     make(map[string]*model.Reward),
		counters:    make(map[string]*model.Counters),
		profiles:    make(map[string]*model.Profile),
		collections: make(map[string]*model.Collection),
		versions:    make(map[string]uint64),
		cfg:         cfg,
	}
}

func counterKey(userID string) string { return "counters/" + userID }
func badgeKey(id string) string       { return "badges/" + id }
func rewardKey(id string) string      { return "rewards/" + id }

// RunTransaction implements Store.
func (s *MemoryStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	const op = "repository.memory.run_transaction"

	start := time.Now()
	defer func() {
		metrics.RecordTransactionLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	}()

	for attempt := 1; attempt <= s.cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		tx := &memTx{
			store:    s,
			reads:    make(map[string]uint64),
			counters: make(map[string]model.CounterDelta),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if s.cfg.beforeCommit != nil {
			s.cfg.beforeCommit()
		}
		err := tx.commit()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return fmt.Errorf("%s: %w", op, err)
		}
		metrics.RecordTransactionRetry()
		s.cfg.log.Debug(ctx, "transaction conflict, retrying", logger.Int("attempt", attempt))
	}
	return fmt.Errorf("%s: %w after %d attempts", op, ErrTooManyRetries, s.cfg.maxAttempts)
}

type memTx struct {
	store *MemoryStore

	// reads maps docKey to the version observed; 0 means absent.
	reads    map[string]uint64
	badges   []*model.Badge
	rewards  []*model.Reward
	counters map[string]model.CounterDelta
}

func (t *memTx) observe(key string) {
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = t.store.versions[key]
	}
}

func (t *memTx) GetCounters(ctx context.Context, userID string) (*model.Counters, error) {
	s := t.store
	s.mu.Lock()
	t.observe(counterKey(userID))
	c := &model.Counters{UserID: userID}
	if cur, ok := s.counters[userID]; ok {
		c = cloneCounters(cur)
	}
	s.mu.Unlock()

	// Read your own buffered increments.
	if d, ok := t.counters[userID]; ok {
		c.Apply(d, c.UpdatedAt)
	}
	return c, nil
}

func (t *memTx) GetBadge(ctx context.Context, userID, subject string) (*model.Badge, error) {
	id := model.BadgeID(userID, subject)
	for _, b := range t.badges {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t.observe(badgeKey(id))
	b, ok := s.badges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) CreateBadge(ctx context.Context, b *model.Badge) error {
	for _, pending := range t.badges {
		if pending.ID == b.ID {
			return ErrAlreadyExists
		}
	}
	cp := *b
	t.badges = append(t.badges, &cp)
	return nil
}

func (t *memTx) CreateReward(ctx context.Context, r *model.Reward) error {
	for _, pending := range t.rewards {
		if pending.ID == r.ID {
			return ErrAlreadyExists
		}
	}
	cp := *r
	t.rewards = append(t.rewards, &cp)
	return nil
}

func (t *memTx) IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error {
	cur := t.counters[userID]
	cur.PostCount += d.PostCount
	cur.Points += d.Points
	cur.TotalBadges += d.TotalBadges
	if len(d.Categories) > 0 {
		merged := make(map[string]int64, len(cur.Categories)+len(d.Categories))
		for k, v := range cur.Categories {
			merged[k] = v
		}
		for k, v := range d.Categories {
			merged[k] += v
		}
		cur.Categories = merged
	}
	t.counters[userID] = cur
	return nil
}

// commit validates the read set and applies the buffered writes under the
// store lock. Creates that collide with a document the transaction never
// read fail with ErrAlreadyExists.
func (t *memTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for key, seen := range t.reads {
		if s.versions[key] != seen {
			return ErrConflict
		}
	}
	for _, b := range t.badges {
		if _, ok := s.badges[b.ID]; ok {
			if _, read := t.reads[badgeKey(b.ID)]; read {
				return ErrConflict
			}
			return ErrAlreadyExists
		}
	}
	for _, r := range t.rewards {
		if _, ok := s.rewards[r.ID]; ok {
			if _, read := t.reads[rewardKey(r.ID)]; read {
				return ErrConflict
			}
			return ErrAlreadyExists
		}
	}

	now := s.cfg.now()
	for _, b := range t.badges {
		s.badges[b.ID] = b
		s.versions[badgeKey(b.ID)]++
	}
	for _, r := range t.rewards {
		s.rewards[r.ID] = r
		s.versions[rewardKey(r.ID)]++
	}
	for userID, d := range t.counters {
		s.applyCountersLocked(userID, d, now)
	}
	return nil
}

func (s *MemoryStore) applyCountersLocked(userID string, d model.CounterDelta, at time.Time) {
	c, ok := s.counters[userID]
	if !ok {
		c = &model.Counters{UserID: userID}
		s.counters[userID] = c
	}
	c.Apply(d, at)
	s.versions[counterKey(userID)]++
}

func (s *MemoryStore) CreatePost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; ok {
		return ErrAlreadyExists
	}
	s.posts[p.ID] = clonePost(p)
	return nil
}

func (s *MemoryStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *MemoryStore) UpdatePostStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = at
	return nil
}

func (s *MemoryStore) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
	return nil
}

// ListPosts returns matching posts, newest first.
func (s *MemoryStore) ListPosts(ctx context.Context, f PostFilter) ([]model.Post, error) {
	s.mu.Lock()
	out := make([]model.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if !f.CreatedBefore.IsZero() && !p.CreatedAt.Before(f.CreatedBefore) {
			continue
		}
		out = append(out, *clonePost(p))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateCommerceItem(ctx context.Context, c *model.CommerceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commerce[c.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *c
	cp.Prices = slices.Clone(c.Prices)
	s.commerce[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCommerceItem(ctx context.Context, id string) (*model.CommerceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commerce[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Prices = slices.Clone(c.Prices)
	return &cp, nil
}

func (s *MemoryStore) SetCommerceAvailability(ctx context.Context, id string, available bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commerce[id]
	if !ok {
		return ErrNotFound
	}
	c.Available = available
	c.UpdatedAt = at
	return nil
}

// ListCommerceItems returns the post's items ordered by asset index.
func (s *MemoryStore) ListCommerceItems(ctx context.Context, postID string) ([]model.CommerceItem, error) {
	s.mu.Lock()
	var out []model.CommerceItem
	for _, c := range s.commerce {
		if c.PostID == postID {
			cp := *c
			cp.Prices = slices.Clone(c.Prices)
			out = append(out, cp)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].AssetIndex < out[j].AssetIndex })
	return out, nil
}

func (s *MemoryStore) DeleteCommerceItemsForPost(ctx context.Context, postID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.commerce {
		if c.PostID == postID {
			delete(s.commerce, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) FindBadge(ctx context.Context, userID, subject string) (*model.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.badges[model.BadgeID(userID, subject)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// ListBadges returns the user's badges, oldest award first.
func (s *MemoryStore) ListBadges(ctx context.Context, userID string) ([]model.Badge, error) {
	s.mu.Lock()
	var out []model.Badge
	for _, b := range s.badges {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AwardedAt.Before(out[j].AwardedAt)
	})
	return out, nil
}

// ListRewards returns the user's rewards ordered by milestone.
func (s *MemoryStore) ListRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	s.mu.Lock()
	var out []model.Reward
	for _, r := range s.rewards {
		if r.UserID == userID {
			out = append(out, cloneReward(r))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Milestone < out[j].Milestone })
	return out, nil
}

func (s *MemoryStore) ClaimReward(ctx context.Context, userID, rewardID string, at time.Time) (*model.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rewards[rewardID]
	if !ok || r.UserID != userID {
		return nil, ErrNotFound
	}
	if r.Claimed() {
		return nil, ErrAlreadyClaimed
	}
	claimed := at
	r.ClaimedAt = &claimed
	s.versions[rewardKey(rewardID)]++
	out := cloneReward(r)
	return &out, nil
}

func (s *MemoryStore) GetCounters(ctx context.Context, userID string) (*model.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneCounters(c), nil
}

func (s *MemoryStore) IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCountersLocked(userID, d, s.cfg.now())
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutProfile(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func (s *MemoryStore) PutCollection(ctx context.Context, c *model.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.PostIDs = slices.Clone(c.PostIDs)
	s.collections[c.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.PostIDs = slices.Clone(c.PostIDs)
	return &cp, nil
}

func (s *MemoryStore) AppendToCollection(ctx context.Context, collectionID, ownerID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionID]
	if !ok {
		c = &model.Collection{ID: collectionID, OwnerID: ownerID}
		s.collections[collectionID] = c
	}
	if c.OwnerID != ownerID {
		return ErrForbidden
	}
	if !slices.Contains(c.PostIDs, postID) {
		c.PostIDs = append(c.PostIDs, postID)
	}
	c.UpdatedAt = s.cfg.now()
	return nil
}

// Close marks the store closed; later commits fail with ErrClosed.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func clonePost(p *model.Post) *model.Post {
	cp := *p
	cp.Tags = slices.Clone(p.Tags)
	cp.SearchKeywords = slices.Clone(p.SearchKeywords)
	cp.Assets = make([]model.Asset, len(p.Assets))
	for i, a := range p.Assets {
		if a.Exif != nil {
			e := *a.Exif
			a.Exif = &e
		}
		cp.Assets[i] = a
	}
	return &cp
}

func cloneCounters(c *model.Counters) *model.Counters {
	cp := *c
	if c.BadgesByCategory != nil {
		cp.BadgesByCategory = make(map[string]int64, len(c.BadgesByCategory))
		for k, v := range c.BadgesByCategory {
			cp.BadgesByCategory[k] = v
		}
	}
	return &cp
}

func cloneReward(r *model.Reward) model.Reward {
	cp := *r
	if r.ClaimedAt != nil {
		t := *r.ClaimedAt
		cp.ClaimedAt = &t
	}
	return cp
}
