package api

import (
	"net/http"

	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/types"
)

type badgesResponse struct {
	Badges []model.Badge `json:"badges"`
}

type rewardsResponse struct {
	Rewards []model.Reward `json:"rewards"`
}

// handleBadges handles GET /me/badges.
func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.deps.ListBadges(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	writeJSON(w, http.StatusOK, badgesResponse{Badges: badges})
}

// handleRewards handles GET /me/rewards.
func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.deps.ListRewards(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewardsResponse{Rewards: rewards})
}

// handleClaimReward handles POST /me/rewards/{id}/claim.
func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	reward, err := s.deps.ClaimReward(r.Context(), IdentityFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ClaimResult{ID: reward.ID, ClaimedAt: *reward.ClaimedAt})
}

// handleCounters handles GET /me/counters.
func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Counters(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
