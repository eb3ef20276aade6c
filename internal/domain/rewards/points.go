package rewards

import (
	"sort"
	"time"

	"github.com/okian/postflow/internal/domain/model"
)

const (
	// DefaultCoolness is used until per-photo coolness scoring exists.
	DefaultCoolness = 5
	// BonusPoints is granted when a post repeats an already collected subject.
	BonusPoints = 25

	minPoints = 100
	maxPoints = 1000
)

// Points returns rarity*50 + coolness*50 clamped to [100, 1000].
func Points(rarity, coolness int) int64 {
	p := int64(rarity*50 + coolness*50)
	if p < minPoints {
		return minPoints
	}
	if p > maxPoints {
		return maxPoints
	}
	return p
}

// Milestone is a points threshold that issues a reward when first crossed.
type Milestone struct {
	Points      int64
	Type        model.RewardType
	Value       float64
	Code        string
	Description string
}

var milestones = []Milestone{
	{Points: 1000, Type: model.RewardBoostToken, Value: 1, Description: "Post Boost Token"},
	{Points: 5000, Type: model.RewardPrintDiscount, Value: 0.10, Description: "10% Print Discount"},
	{Points: 10000, Type: model.RewardPremiumTrial, Value: 7, Description: "7 Days Premium Trial"},
	{Points: 25000, Type: model.RewardPrintDiscount, Value: 0.25, Description: "25% Print Discount"},
	{Points: 50000, Type: model.RewardCustom, Code: "legendary_badge", Description: "Legendary Collector Badge"},
}

// Milestones returns the thresholds in ascending order.
func Milestones() []Milestone {
	out := make([]Milestone, len(milestones))
	copy(out, milestones)
	sort.Slice(out, func(i, j int) bool { return out[i].Points < out[j].Points })
	return out
}

// CrossedMilestones returns the milestones m with from < m <= to.
func CrossedMilestones(from, to int64) []Milestone {
	var out []Milestone
	for _, m := range milestones {
		if from < m.Points && m.Points <= to {
			out = append(out, m)
		}
	}
	return out
}

// Reward materializes the milestone for a user.
func (m Milestone) Reward(userID string, at time.Time) model.Reward {
	return model.Reward{
		ID:          model.RewardID(userID, m.Points),
		UserID:      userID,
		Milestone:   m.Points,
		Type:        m.Type,
		Value:       m.Value,
		Code:        m.Code,
		Description: m.Description,
		CreatedAt:   at,
	}
}
