package model

import (
	"strconv"
	"time"
)

// Badge records a (user, subject) award. Its ID is deterministic so a second
// insert for the same pair collides instead of duplicating.
type Badge struct {
	ID            string    `bson:"_id" json:"id"`
	UserID        string    `bson:"userId" json:"userId"`
	UserName      string    `bson:"userName" json:"userName"`
	Subject       string    `bson:"subject" json:"subject"`
	Name          string    `bson:"name" json:"name"`
	Category      string    `bson:"category" json:"category"`
	Rarity        int       `bson:"rarity" json:"rarity"`
	Coolness      int       `bson:"coolness" json:"coolness"`
	PointsAwarded int       `bson:"pointsAwarded" json:"pointsAwarded"`
	PostID        string    `bson:"postId" json:"postId"`
	ImageURL      string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	AwardedAt     time.Time `bson:"awardedAt" json:"awardedAt"`
}

// BadgeID builds the deterministic badge key for a pair.
func BadgeID(userID, subject string) string { return userID + ":" + subject }

// RewardType enumerates milestone reward payloads.
type RewardType string

const (
	RewardBoostToken    RewardType = "boost_token"
	RewardPrintDiscount RewardType = "print_discount"
	RewardPremiumTrial  RewardType = "premium_trial"
	RewardCustom        RewardType = "custom"
)

// Reward is issued once per user per milestone.
type Reward struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"userId" json:"userId"`
	Milestone   int64      `bson:"milestone" json:"milestone"`
	Type        RewardType `bson:"type" json:"type"`
	Value       float64    `bson:"value,omitempty" json:"value,omitempty"`
	Code        string     `bson:"code,omitempty" json:"code,omitempty"`
	Description string     `bson:"description" json:"description"`
	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	ClaimedAt   *time.Time `bson:"claimedAt" json:"claimedAt"`
}

// Claimed reports whether the reward has been redeemed.
func (r *Reward) Claimed() bool { return r.ClaimedAt != nil }

// RewardID builds the deterministic reward key for a user milestone.
func RewardID(userID string, milestone int64) string {
	return userID + ":" + strconv.FormatInt(milestone, 10)
}

// Counters is the per-user counters document. It is only ever mutated
// through increments.
type Counters struct {
	UserID           string           `bson:"_id" json:"userId"`
	PostCount        int64            `bson:"postCount" json:"postCount"`
	Points           int64            `bson:"points" json:"points"`
	TotalBadges      int64            `bson:"totalBadges" json:"totalBadges"`
	BadgesByCategory map[string]int64 `bson:"badgesByCategory" json:"badgesByCategory"`
	UpdatedAt        time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// CounterDelta is a commutative increment applied to a Counters document.
type CounterDelta struct {
	PostCount   int64
	Points      int64
	TotalBadges int64
	Categories  map[string]int64
}

// IsZero reports whether applying the delta would change nothing.
func (d CounterDelta) IsZero() bool {
	if d.PostCount != 0 || d.Points != 0 || d.TotalBadges != 0 {
		return false
	}
	for _, v := range d.Categories {
		if v != 0 {
			return false
		}
	}
	return true
}

// Apply adds the delta to c in place.
func (c *Counters) Apply(d CounterDelta, at time.Time) {
	c.PostCount += d.PostCount
	c.Points += d.Points
	c.TotalBadges += d.TotalBadges
	if len(d.Categories) > 0 && c.BadgesByCategory == nil {
		c.BadgesByCategory = make(map[string]int64, len(d.Categories))
	}
	for k, v := range d.Categories {
		c.BadgesByCategory[k] += v
	}
	c.UpdatedAt = at
}
