package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"questswap/auth"
	"questswap/goal"
	"questswap/swap"
)

// SwapService is the swap protocol surface consumed by the handlers.
type SwapService interface {
	Propose(ctx context.Context, params swap.ProposeParams) (swap.Proposal, error)
	Accept(ctx context.Context, params swap.AcceptParams) (swap.AcceptResult, error)
	Decline(ctx context.Context, params swap.TransitionParams) (swap.Proposal, error)
	Cancel(ctx context.Context, params swap.TransitionParams) (swap.Proposal, error)
	List(ctx context.Context, userID string, scope swap.Scope) ([]swap.Proposal, error)
	GetForUser(ctx context.Context, id, userID string) (swap.Proposal, error)
}

// AuthService issues and verifies account credentials.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

// GoalService is the minimal goal surface needed to drive swaps end to end.
type GoalService interface {
	Create(ctx context.Context, ownerID, title string, visibility goal.Visibility) (goal.Goal, error)
	GetByID(ctx context.Context, id string) (goal.Goal, error)
	ListByOwner(ctx context.Context, ownerID string) ([]goal.Goal, error)
}

// Config wires the HTTP handler.
type Config struct {
	Swaps SwapService
	Auth  AuthService
	Goals GoalService
	Log   *zap.Logger
}

// Handler carries the service dependencies for all routes.
type Handler struct {
	swaps SwapService
	auth  AuthService
	goals GoalService
	log   *zap.Logger
}

// New returns the HTTP handler exposing the questswap API.
func New(cfg Config) http.Handler {
	h := &Handler{
		swaps: cfg.Swaps,
		auth:  cfg.Auth,
		goals: cfg.Goals,
		log:   cfg.Log,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAuth)

		pr.Get("/me", h.handleMe)

		pr.Route("/goals", func(gr chi.Router) {
			gr.Post("/", h.handleCreateGoal)
			gr.Get("/", h.handleListGoals)
			gr.Get("/{id}", h.handleGetGoal)
		})

		pr.Route("/swaps", func(sr chi.Router) {
			sr.Post("/", h.handlePropose)
			sr.Get("/", h.handleListSwaps)
			sr.Get("/{id}", h.handleGetSwap)
			sr.Post("/{id}/accept", h.handleAccept)
			sr.Post("/{id}/decline", h.handleDecline)
			sr.Post("/{id}/cancel", h.handleCancel)
		})
	})

	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
