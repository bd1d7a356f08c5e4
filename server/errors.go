package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"questswap/auth"
	"questswap/goal"
	"questswap/swap"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeSwapError maps the swap error taxonomy onto HTTP statuses. The split
// matters for client affordances: 403 means "you can't do that", 409 means
// "refresh, this swap isn't available anymore", 422 means "fix the input".
func (h *Handler) writeSwapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, swap.ErrMessageTooLong),
		errors.Is(err, swap.ErrReceiverGoalRequired),
		errors.Is(err, swap.ErrReceiverGoalMismatch):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, swap.ErrSelfSwap):
		writeError(w, http.StatusConflict, "self_swap", err.Error())
	case errors.Is(err, swap.ErrGoalNotOwned):
		writeError(w, http.StatusConflict, "goal_not_owned", err.Error())
	case errors.Is(err, swap.ErrGoalNotVisible):
		writeError(w, http.StatusConflict, "goal_not_visible", err.Error())
	case errors.Is(err, swap.ErrDuplicatePending):
		writeError(w, http.StatusConflict, "duplicate_pending", err.Error())
	case errors.Is(err, swap.ErrGoalBusy):
		writeError(w, http.StatusConflict, "goal_busy", err.Error())
	case errors.Is(err, swap.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, swap.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, swap.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, swap.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.internalError(w, err)
	}
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusUnprocessableEntity, "weak_password", err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "duplicate_email", err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		h.internalError(w, err)
	}
}

func (h *Handler) writeGoalError(w http.ResponseWriter, err error) {
	if errors.Is(err, goal.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	h.internalError(w, err)
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}
