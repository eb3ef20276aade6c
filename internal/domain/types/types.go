// Package types contains the caller-facing shapes shared by the service and
// its HTTP surface.
package types

import (
	"time"

	"github.com/okian/postflow/internal/domain/model"
)

// AwardedBadge is a badge as reported back to the publisher.
type AwardedBadge struct {
	Subject       string `json:"subject"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	PointsAwarded int    `json:"pointsAwarded"`
}

// IssuedReward is a milestone reward unlocked by a publish.
type IssuedReward struct {
	ID          string           `json:"id"`
	Milestone   int64            `json:"milestone"`
	Type        model.RewardType `json:"type"`
	Description string           `json:"description"`
}

// PublishResult is the outcome of a successful publish.
type PublishResult struct {
	PostID          string           `json:"postId"`
	Status          model.PostStatus `json:"status"`
	AwardedBadges   []AwardedBadge   `json:"awardedBadges"`
	BonusPoints     int64            `json:"bonusPoints"`
	Rewards         []IssuedReward   `json:"rewards,omitempty"`
	CommerceItemIDs []string         `json:"commerceItemIds,omitempty"`
	// Degraded names best-effort steps that failed without failing the publish.
	Degraded []string `json:"degraded,omitempty"`
}

// AvailabilityRequest toggles whether a commerce item is on sale.
type AvailabilityRequest struct {
	Available *bool `json:"available"`
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// ClaimResult reports a claimed reward.
type ClaimResult struct {
	ID        string    `json:"id"`
	ClaimedAt time.Time `json:"claimedAt"`
}

// NewAwardedBadges converts stored badges.
func NewAwardedBadges(badges []model.Badge) []AwardedBadge {
	out := make([]AwardedBadge, 0, len(badges))
	for i := range badges {
		out = append(out, AwardedBadge{
			Subject:       badges[i].Subject,
			Name:          badges[i].Name,
			Category:      badges[i].Category,
			PointsAwarded: badges[i].PointsAwarded,
		})
	}
	return out
}

// NewIssuedRewards converts stored rewards.
func NewIssuedRewards(rewards []model.Reward) []IssuedReward {
	if len(rewards) == 0 {
		return nil
	}
	out := make([]IssuedReward, 0, len(rewards))
	for i := range rewards {
		out = append(out, IssuedReward{
			ID:          rewards[i].ID,
			Milestone:   rewards[i].Milestone,
			Type:        rewards[i].Type,
			Description: rewards[i].Description,
		})
	}
	return out
}
