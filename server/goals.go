package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"questswap/goal"
)

type createGoalRequest struct {
	Title      string `json:"title"`
	Visibility string `json:"visibility"`
}

func (h *Handler) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "title is required")
		return
	}

	g, err := h.goals.Create(r.Context(), actorID(r), req.Title, goal.Visibility(req.Visibility))
	if err != nil {
		h.writeGoalError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGoalJSON(g))
}

func (h *Handler) handleListGoals(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner_id")
	if owner == "" {
		owner = actorID(r)
	}

	goals, err := h.goals.ListByOwner(r.Context(), owner)
	if err != nil {
		h.writeGoalError(w, err)
		return
	}

	out := make([]goalJSON, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalJSON(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": out})
}

func (h *Handler) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.goals.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalJSON(g))
}
