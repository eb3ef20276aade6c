package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/pkg/metrics"
)

// Collection names.
const (
	collPosts       = "posts"
	collCommerce    = "commerce_items"
	collBadges      = "badges"
	collRewards     = "rewards"
	collCounters    = "counters"
	collProfiles    = "profiles"
	collCollections = "collections"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	const op = "repository.mongo.connect"

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return client, nil
}

// MongoStore is a Store backed by a MongoDB replica set. Transactions use
// driver sessions, which retry transient transaction errors themselves.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    storeConfig
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps client and ensures the secondary indexes exist.
// Close disconnects client.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string, opts ...Option) (*MongoStore, error) {
	const op = "repository.mongo.new"

	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &MongoStore{client: client, db: client.Database(database), cfg: cfg}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collPosts: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "searchKeywords", Value: 1}}},
		},
		collCommerce: {{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "assetIndex", Value: 1}}}},
		collBadges:   {{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "awardedAt", Value: 1}}}},
		collRewards:  {{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "milestone", Value: 1}}}},
	}
	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoStore) coll(name string) *mongo.Collection { return s.db.Collection(name) }

// RunTransaction implements Store. fn receives the session context and must
// pass it to every Tx call.
func (s *MongoStore) RunTransaction(ctx context.Context, fn TxFunc) error {
	const op = "repository.mongo.run_transaction"

	start := time.Now()
	defer func() {
		metrics.RecordTransactionLatency(float64(time.Since(start).Nanoseconds()) / 1e6)
	}()

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("%s: start session: %w", op, err)
	}
	defer session.EndSession(ctx)

	attempts := 0
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		attempts++
		if attempts > 1 {
			metrics.RecordTransactionRetry()
		}
		return nil, fn(sc, &mongoTx{s: s})
	})
	if err != nil {
		return mapMongoError(err)
	}
	return nil
}

type mongoTx struct {
	s *MongoStore
}

func (t *mongoTx) GetCounters(ctx context.Context, userID string) (*model.Counters, error) {
	var c model.Counters
	err := t.s.coll(collCounters).FindOne(ctx, bson.M{"_id": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &model.Counters{UserID: userID}, nil
	}
	if err != nil {
		return nil, mapMongoError(err)
	}
	return &c, nil
}

func (t *mongoTx) GetBadge(ctx context.Context, userID, subject string) (*model.Badge, error) {
	return t.s.FindBadge(ctx, userID, subject)
}

func (t *mongoTx) CreateBadge(ctx context.Context, b *model.Badge) error {
	_, err := t.s.coll(collBadges).InsertOne(ctx, b)
	return mapMongoError(err)
}

func (t *mongoTx) CreateReward(ctx context.Context, r *model.Reward) error {
	_, err := t.s.coll(collRewards).InsertOne(ctx, r)
	return mapMongoError(err)
}

func (t *mongoTx) IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error {
	return t.s.IncrementCounters(ctx, userID, d)
}

func (s *MongoStore) CreatePost(ctx context.Context, p *model.Post) error {
	_, err := s.coll(collPosts).InsertOne(ctx, p)
	return mapMongoError(err)
}

func (s *MongoStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.coll(collPosts).FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapMongoError(err)
	}
	return &p, nil
}

func (s *MongoStore) UpdatePostStatus(ctx context.Context, id string, status model.PostStatus, at time.Time) error {
	res, err := s.coll(collPosts).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": at}},
	)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	_, err := s.coll(collPosts).DeleteOne(ctx, bson.M{"_id": id})
	return mapMongoError(err)
}

func (s *MongoStore) ListPosts(ctx context.Context, f PostFilter) ([]model.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.coll(collPosts).Find(ctx, postFilter(f), opts)
	if err != nil {
		return nil, mapMongoError(err)
	}
	var out []model.Post
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapMongoError(err)
	}
	return out, nil
}

func postFilter(f PostFilter) bson.M {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.AuthorID != "" {
		filter["authorId"] = f.AuthorID
	}
	if !f.CreatedBefore.IsZero() {
		filter["createdAt"] = bson.M{"$lt": f.CreatedBefore}
	}
	return filter
}

func (s *MongoStore) CreateCommerceItem(ctx context.Context, c *model.CommerceItem) error {
	_, err := s.coll(collCommerce).InsertOne(ctx, c)
	return mapMongoError(err)
}

func (s *MongoStore) GetCommerceItem(ctx context.Context, id string) (*model.CommerceItem, error) {
	var c model.CommerceItem
	if err := s.coll(collCommerce).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapMongoError(err)
	}
	return &c, nil
}

func (s *MongoStore) SetCommerceAvailability(ctx context.Context, id string, available bool, at time.Time) error {
	res, err := s.coll(collCommerce).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"available": available, "updatedAt": at}},
	)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListCommerceItems(ctx context.Context, postID string) ([]model.CommerceItem, error) {
	cur, err := s.coll(collCommerce).Find(ctx, bson.M{"postId": postID},
		options.Find().SetSort(bson.D{{Key: "assetIndex", Value: 1}}))
	if err != nil {
		return nil, mapMongoError(err)
	}
	var out []model.CommerceItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapMongoError(err)
	}
	return out, nil
}

func (s *MongoStore) DeleteCommerceItemsForPost(ctx context.Context, postID string) (int, error) {
	res, err := s.coll(collCommerce).DeleteMany(ctx, bson.M{"postId": postID})
	if err != nil {
		return 0, mapMongoError(err)
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) FindBadge(ctx context.Context, userID, subject string) (*model.Badge, error) {
	var b model.Badge
	if err := s.coll(collBadges).FindOne(ctx, bson.M{"_id": model.BadgeID(userID, subject)}).Decode(&b); err != nil {
		return nil, mapMongoError(err)
	}
	return &b, nil
}

func (s *MongoStore) ListBadges(ctx context.Context, userID string) ([]model.Badge, error) {
	cur, err := s.coll(collBadges).Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "awardedAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapMongoError(err)
	}
	var out []model.Badge
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapMongoError(err)
	}
	return out, nil
}

func (s *MongoStore) ListRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	cur, err := s.coll(collRewards).Find(ctx, bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "milestone", Value: 1}}))
	if err != nil {
		return nil, mapMongoError(err)
	}
	var out []model.Reward
	if err := cur.All(ctx, &out); err != nil {
		return nil, mapMongoError(err)
	}
	return out, nil
}

// ClaimReward sets claimedAt with a conditional update so concurrent claims
// of the same reward cannot both succeed.
func (s *MongoStore) ClaimReward(ctx context.Context, userID, rewardID string, at time.Time) (*model.Reward, error) {
	var r model.Reward
	err := s.coll(collRewards).FindOneAndUpdate(ctx,
		bson.M{"_id": rewardID, "userId": userID, "claimedAt": nil},
		bson.M{"$set": bson.M{"claimedAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, mapMongoError(err)
	}
	n, err := s.coll(collRewards).CountDocuments(ctx, bson.M{"_id": rewardID, "userId": userID})
	if err != nil {
		return nil, mapMongoError(err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrAlreadyClaimed
}

func (s *MongoStore) GetCounters(ctx context.Context, userID string) (*model.Counters, error) {
	var c model.Counters
	if err := s.coll(collCounters).FindOne(ctx, bson.M{"_id": userID}).Decode(&c); err != nil {
		return nil, mapMongoError(err)
	}
	return &c, nil
}

// IncrementCounters upserts the counters document with a single $inc.
func (s *MongoStore) IncrementCounters(ctx context.Context, userID string, d model.CounterDelta) error {
	if d.IsZero() {
		return nil
	}
	_, err := s.coll(collCounters).UpdateOne(ctx,
		bson.M{"_id": userID},
		counterUpdate(d, s.cfg.now()),
		options.Update().SetUpsert(true),
	)
	return mapMongoError(err)
}

func counterUpdate(d model.CounterDelta, at time.Time) bson.M {
	inc := bson.M{}
	if d.PostCount != 0 {
		inc["postCount"] = d.PostCount
	}
	if d.Points != 0 {
		inc["points"] = d.Points
	}
	if d.TotalBadges != 0 {
		inc["totalBadges"] = d.TotalBadges
	}
	for k, v := range d.Categories {
		if v != 0 {
			inc["badgesByCategory."+k] = v
		}
	}
	return bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": at},
	}
}

func (s *MongoStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	if err := s.coll(collProfiles).FindOne(ctx, bson.M{"_id": userID}).Decode(&p); err != nil {
		return nil, mapMongoError(err)
	}
	return &p, nil
}

func (s *MongoStore) PutProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.coll(collProfiles).ReplaceOne(ctx, bson.M{"_id": p.UserID}, p, options.Replace().SetUpsert(true))
	return mapMongoError(err)
}

func (s *MongoStore) PutCollection(ctx context.Context, c *model.Collection) error {
	_, err := s.coll(collCollections).ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	return mapMongoError(err)
}

func (s *MongoStore) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	var c model.Collection
	if err := s.coll(collCollections).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, mapMongoError(err)
	}
	return &c, nil
}

// AppendToCollection relies on the owner being part of the upsert filter: a
// collection owned by someone else fails the upsert with a duplicate _id.
func (s *MongoStore) AppendToCollection(ctx context.Context, collectionID, ownerID, postID string) error {
	_, err := s.coll(collCollections).UpdateOne(ctx,
		bson.M{"_id": collectionID, "ownerId": ownerID},
		bson.M{
			"$addToSet": bson.M{"postIds": postID},
			"$set":      bson.M{"updatedAt": s.cfg.now()},
		},
		options.Update().SetUpsert(true),
	)
	if err = mapMongoError(err); errors.Is(err, ErrAlreadyExists) {
		return ErrForbidden
	}
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mapMongoError translates driver errors into the package sentinels.
func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, mongo.ErrClientDisconnected):
		return ErrClosed
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
