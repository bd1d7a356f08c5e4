package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"questswap/swap"
)

type proposeRequest struct {
	ReceiverUserID string `json:"receiver_user_id"`
	ProposerGoalID string `json:"proposer_goal_id"`
	ReceiverGoalID string `json:"receiver_goal_id"`
	Message        string `json:"message"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.ReceiverUserID == "" || req.ProposerGoalID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "receiver_user_id and proposer_goal_id are required")
		return
	}

	created, err := h.swaps.Propose(r.Context(), swap.ProposeParams{
		ProposerUserID: actorID(r),
		ReceiverUserID: req.ReceiverUserID,
		ProposerGoalID: req.ProposerGoalID,
		ReceiverGoalID: req.ReceiverGoalID,
		Message:        req.Message,
	})
	if err != nil {
		h.writeSwapError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProposalJSON(created))
}

func (h *Handler) handleListSwaps(w http.ResponseWriter, r *http.Request) {
	scope := swap.Scope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = swap.ScopeIncoming
	}
	if !swap.ValidScope(scope) {
		writeError(w, http.StatusBadRequest, "bad_request", "scope must be one of incoming, outgoing, active, history")
		return
	}

	proposals, err := h.swaps.List(r.Context(), actorID(r), scope)
	if err != nil {
		h.writeSwapError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"swaps": toProposalListJSON(proposals)})
}

func (h *Handler) handleGetSwap(w http.ResponseWriter, r *http.Request) {
	p, err := h.swaps.GetForUser(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.writeSwapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalJSON(p))
}

type acceptRequest struct {
	ReceiverGoalID string `json:"receiver_goal_id"`
}

type acceptResponse struct {
	Swap    proposalJSON `json:"swap"`
	Warning string       `json:"warning,omitempty"`
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
	}

	result, err := h.swaps.Accept(r.Context(), swap.AcceptParams{
		ProposalID:     chi.URLParam(r, "id"),
		ActorID:        actorID(r),
		ReceiverGoalID: req.ReceiverGoalID,
	})
	if err != nil {
		h.writeSwapError(w, err)
		return
	}

	resp := acceptResponse{Swap: toProposalJSON(result.Proposal)}
	if result.FollowWarning != nil {
		resp.Warning = "swap accepted; follow setup is being retried"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	p, err := h.swaps.Decline(r.Context(), swap.TransitionParams{
		ProposalID: chi.URLParam(r, "id"),
		ActorID:    actorID(r),
	})
	if err != nil {
		h.writeSwapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalJSON(p))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.swaps.Cancel(r.Context(), swap.TransitionParams{
		ProposalID: chi.URLParam(r, "id"),
		ActorID:    actorID(r),
	})
	if err != nil {
		h.writeSwapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProposalJSON(p))
}
