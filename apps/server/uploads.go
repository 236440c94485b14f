package main

import (
	"encoding/json"
	"net/http"

	"github.com/altukhov/dialog/pkg/media"
)

type UploadURLRequest struct {
	// "avatar" or "post".
	Kind string `json:"kind"`
}

type UploadURLResponse struct {
	ObjectKey string `json:"object_key"`
	UploadURL string `json:"upload_url"`
}

// UploadURLHandler hands out a presigned PUT so the client uploads straight
// to MinIO. Avatar uploads also become the caller's current avatar.
func (s *server) UploadURLHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var bucket string
	switch req.Kind {
	case "avatar":
		bucket = media.BucketAvatars
	case "post":
		bucket = media.BucketPosts
	default:
		http.Error(w, "kind must be avatar or post", http.StatusBadRequest)
		return
	}

	key, u, err := s.media.UploadURL(r.Context(), bucket)
	if err != nil {
		http.Error(w, "Failed to sign upload", http.StatusInternalServerError)
		return
	}

	if req.Kind == "avatar" {
		if err := s.store.SetAvatar(r.Context(), claims.UserID, key); err != nil {
			http.Error(w, "Failed to update avatar", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, UploadURLResponse{ObjectKey: key, UploadURL: u.String()})
}
