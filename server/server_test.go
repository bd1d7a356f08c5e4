package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questswap/auth"
	"questswap/goal"
	"questswap/swap"
)

type stubSwaps struct {
	propose   func(swap.ProposeParams) (swap.Proposal, error)
	accept    func(swap.AcceptParams) (swap.AcceptResult, error)
	decline   func(swap.TransitionParams) (swap.Proposal, error)
	cancel    func(swap.TransitionParams) (swap.Proposal, error)
	list      func(string, swap.Scope) ([]swap.Proposal, error)
	get       func(string, string) (swap.Proposal, error)
	lastScope swap.Scope
}

func (s *stubSwaps) Propose(_ context.Context, p swap.ProposeParams) (swap.Proposal, error) {
	return s.propose(p)
}

func (s *stubSwaps) Accept(_ context.Context, p swap.AcceptParams) (swap.AcceptResult, error) {
	return s.accept(p)
}

func (s *stubSwaps) Decline(_ context.Context, p swap.TransitionParams) (swap.Proposal, error) {
	return s.decline(p)
}

func (s *stubSwaps) Cancel(_ context.Context, p swap.TransitionParams) (swap.Proposal, error) {
	return s.cancel(p)
}

func (s *stubSwaps) List(_ context.Context, userID string, scope swap.Scope) ([]swap.Proposal, error) {
	s.lastScope = scope
	if s.list == nil {
		return nil, nil
	}
	return s.list(userID, scope)
}

func (s *stubSwaps) GetForUser(_ context.Context, id, userID string) (swap.Proposal, error) {
	return s.get(id, userID)
}

type stubAuth struct {
	userID string
}

func (s *stubAuth) Register(_ context.Context, req auth.RegisterRequest) (*auth.User, error) {
	if req.Email == "taken@example.com" {
		return nil, auth.ErrDuplicateEmail
	}
	return &auth.User{ID: "user-1", Email: req.Email, DisplayName: req.DisplayName}, nil
}

func (s *stubAuth) Login(_ context.Context, req auth.LoginRequest) (auth.LoginResult, error) {
	if req.Password != "correct" {
		return auth.LoginResult{}, auth.ErrInvalidCredentials
	}
	return auth.LoginResult{Token: "jwt-token", User: auth.User{ID: "user-1", Email: req.Email}}, nil
}

func (s *stubAuth) VerifyToken(token string) (string, error) {
	if token != "good-token" {
		return "", auth.ErrInvalidToken
	}
	return s.userID, nil
}

func (s *stubAuth) GetUserByID(_ context.Context, userID string) (*auth.User, error) {
	return &auth.User{ID: userID, Email: "alice@example.com", DisplayName: "Alice"}, nil
}

type stubGoals struct{}

func (s *stubGoals) Create(_ context.Context, ownerID, title string, visibility goal.Visibility) (goal.Goal, error) {
	return goal.Goal{ID: "goal-1", OwnerID: ownerID, Title: title, Visibility: visibility}, nil
}

func (s *stubGoals) GetByID(_ context.Context, id string) (goal.Goal, error) {
	if id != "goal-1" {
		return goal.Goal{}, goal.ErrNotFound
	}
	return goal.Goal{ID: id, OwnerID: "user-1", Title: "run a marathon"}, nil
}

func (s *stubGoals) ListByOwner(_ context.Context, ownerID string) ([]goal.Goal, error) {
	return []goal.Goal{{ID: "goal-1", OwnerID: ownerID, Title: "run a marathon"}}, nil
}

func newTestHandler(swaps *stubSwaps) http.Handler {
	return New(Config{
		Swaps: swaps,
		Auth:  &stubAuth{userID: "user-1"},
		Goals: &stubGoals{},
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authed {
		req.Header.Set("Authorization", "Bearer good-token")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(&stubSwaps{})
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newTestHandler(&stubSwaps{})

	rec := doJSON(t, h, http.MethodGet, "/swaps", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/swaps", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPropose(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	swaps := &stubSwaps{
		propose: func(p swap.ProposeParams) (swap.Proposal, error) {
			require.Equal(t, "user-1", p.ProposerUserID)
			return swap.Proposal{
				ID:             "swap-1",
				ProposerUserID: p.ProposerUserID,
				ReceiverUserID: p.ReceiverUserID,
				ProposerGoalID: p.ProposerGoalID,
				ReceiverGoalID: p.ReceiverGoalID,
				Message:        p.Message,
				State:          swap.StatePending,
				CreatedAt:      now,
			}, nil
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodPost, "/swaps", map[string]string{
		"receiver_user_id": "user-2",
		"proposer_goal_id": "goal-1",
		"message":          "trade?",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got proposalJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "swap-1", got.ID)
	assert.Equal(t, "pending", got.State)
	assert.Empty(t, got.ReceiverGoalID)
}

func TestPropose_MissingFields(t *testing.T) {
	h := newTestHandler(&stubSwaps{})
	rec := doJSON(t, h, http.MethodPost, "/swaps", map[string]string{"message": "hi"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPropose_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"duplicate pending", swap.ErrDuplicatePending, http.StatusConflict},
		{"goal busy", swap.ErrGoalBusy, http.StatusConflict},
		{"self swap", swap.ErrSelfSwap, http.StatusConflict},
		{"goal not owned", swap.ErrGoalNotOwned, http.StatusConflict},
		{"goal not visible", swap.ErrGoalNotVisible, http.StatusConflict},
		{"message too long", swap.ErrMessageTooLong, http.StatusUnprocessableEntity},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swaps := &stubSwaps{
				propose: func(swap.ProposeParams) (swap.Proposal, error) { return swap.Proposal{}, tt.err },
			}
			h := newTestHandler(swaps)
			rec := doJSON(t, h, http.MethodPost, "/swaps", map[string]string{
				"receiver_user_id": "user-2",
				"proposer_goal_id": "goal-1",
			}, true)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListSwaps_ScopeHandling(t *testing.T) {
	swaps := &stubSwaps{}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodGet, "/swaps", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, swap.ScopeIncoming, swaps.lastScope)

	rec = doJSON(t, h, http.MethodGet, "/swaps?scope=history", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, swap.ScopeHistory, swaps.lastScope)

	rec = doJSON(t, h, http.MethodGet, "/swaps?scope=bogus", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccept_WithWarning(t *testing.T) {
	responded := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	swaps := &stubSwaps{
		accept: func(p swap.AcceptParams) (swap.AcceptResult, error) {
			require.Equal(t, "swap-1", p.ProposalID)
			require.Equal(t, "user-1", p.ActorID)
			return swap.AcceptResult{
				Proposal: swap.Proposal{
					ID:          "swap-1",
					State:       swap.StateAccepted,
					RespondedAt: &responded,
				},
				FollowWarning: errors.New("one leg deferred"),
			}, nil
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodPost, "/swaps/swap-1/accept", map[string]string{"receiver_goal_id": "goal-2"}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var got acceptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "accepted", got.Swap.State)
	assert.NotEmpty(t, got.Warning)
}

func TestAccept_ReceiverGoalRequired(t *testing.T) {
	swaps := &stubSwaps{
		accept: func(swap.AcceptParams) (swap.AcceptResult, error) {
			return swap.AcceptResult{}, swap.ErrReceiverGoalRequired
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodPost, "/swaps/swap-1/accept", nil, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDecline_Forbidden(t *testing.T) {
	swaps := &stubSwaps{
		decline: func(swap.TransitionParams) (swap.Proposal, error) {
			return swap.Proposal{}, swap.ErrForbidden
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodPost, "/swaps/swap-1/decline", nil, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCancel_AlreadyTerminal(t *testing.T) {
	swaps := &stubSwaps{
		cancel: func(swap.TransitionParams) (swap.Proposal, error) {
			return swap.Proposal{}, swap.ErrAlreadyTerminal
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodPost, "/swaps/swap-1/cancel", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSwap_NotFound(t *testing.T) {
	swaps := &stubSwaps{
		get: func(id, userID string) (swap.Proposal, error) {
			return swap.Proposal{}, swap.ErrNotFound
		},
	}
	h := newTestHandler(swaps)

	rec := doJSON(t, h, http.MethodGet, "/swaps/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestHandler(&stubSwaps{})

	rec := doJSON(t, h, http.MethodPost, "/auth/register", map[string]string{
		"email":        "alice@example.com",
		"password":     "strongpassword",
		"display_name": "Alice",
	}, false)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/register", map[string]string{
		"email":        "taken@example.com",
		"password":     "strongpassword",
		"display_name": "Bob",
	}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "correct",
	}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string   `json:"token"`
		User  userJSON `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "jwt-token", login.Token)

	rec = doJSON(t, h, http.MethodPost, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoals(t *testing.T) {
	h := newTestHandler(&stubSwaps{})

	rec := doJSON(t, h, http.MethodPost, "/goals", map[string]string{"title": "run a marathon"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created goalJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "user-1", created.OwnerID)

	rec = doJSON(t, h, http.MethodGet, "/goals", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/goals/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
