package server

import (
	"context"
	"net/http"
	"strings"
)

type actorKey struct{}

// requireAuth extracts the bearer token, verifies it, and stashes the acting
// user's ID in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		userID, err := h.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorID returns the authenticated user ID injected by requireAuth.
func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey{}).(string)
	return id
}
