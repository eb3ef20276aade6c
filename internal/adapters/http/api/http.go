// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/types"
	"github.com/okian/postflow/pkg/logger"
	"github.com/okian/postflow/pkg/metrics"
)

const defaultMaxBodyBytes = 10*(32<<20) + 1<<20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Publish(ctx context.Context, id *model.Identity, req service.PublishRequest) (types.PublishResult, error)
	GetPost(ctx context.Context, id *model.Identity, postID string) (*service.PostView, error)
	SetCommerceAvailability(ctx context.Context, id *model.Identity, itemID string, available bool) (*model.CommerceItem, error)
	ListBadges(ctx context.Context, id *model.Identity) ([]model.Badge, error)
	ListRewards(ctx context.Context, id *model.Identity) ([]model.Reward, error)
	ClaimReward(ctx context.Context, id *model.Identity, rewardID string) (*model.Reward, error)
	Counters(ctx context.Context, id *model.Identity) (*model.Counters, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps          Dependencies
	auth          *Authenticator
	log           logger.Logger
	maxBodyBytes  int64
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// Option configures a Server.
type Option func(*Server)

// WithAuthenticator sets the bearer token verifier. Without one every
// request is anonymous.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) {
		if a != nil {
			s.auth = a
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxBodyBytes caps the size of a publish request body.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		auth:          NewAuthenticator("", ""),
		log:           logger.NewNop(),
		maxBodyBytes:  defaultMaxBodyBytes,
		statsHandler:  NewStatsHandler(statsProvider),
	}
	checker, _ := statsProvider.(HealthChecker)
	s.healthHandler = NewHealthHandler(checker)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("GET /healthz", s.route("healthz", s.healthHandler.HandleHealth))
	mux.Handle("GET /stats", s.route("stats", s.statsHandler.HandleStats))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	mux.Handle("POST /posts", s.route("create_post", s.handleCreatePost))
	mux.Handle("GET /posts/{id}", s.route("get_post", s.handleGetPost))
	mux.Handle("PATCH /commerce/{id}", s.route("set_availability", s.handleSetAvailability))

	mux.Handle("GET /me/badges", s.route("badges", s.handleBadges))
	mux.Handle("GET /me/rewards", s.route("rewards", s.handleRewards))
	mux.Handle("POST /me/rewards/{id}/claim", s.route("claim_reward", s.handleClaimReward))
	mux.Handle("GET /me/counters", s.route("counters", s.handleCounters))
}

// route applies the shared middleware chain to one endpoint.
func (s *Server) route(endpoint string, h http.HandlerFunc) http.Handler {
	return RequestIDMiddleware(s.auth.Authenticate(MetricsMiddleware(h, endpoint), s.log))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
