package main

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// UserStatusHandler answers GET /api/v1/users/{user_id}/status.
func (s *server) UserStatusHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentClaims(r); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}
	if _, err := s.store.GetUser(r.Context(), userID); err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.presence.GetStatus(r.Context(), userID))
}
