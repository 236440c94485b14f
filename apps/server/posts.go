package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altukhov/dialog/pkg/model"
)

type CreatePostRequest struct {
	Text      string   `json:"text"`
	ImageKeys []string `json:"image_keys"`
}

func (s *server) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" && len(req.ImageKeys) == 0 {
		http.Error(w, "Post needs text or images", http.StatusBadRequest)
		return
	}

	post, err := s.store.CreatePost(r.Context(), claims.UserID, req.Text, req.ImageKeys)
	if err != nil {
		http.Error(w, "Failed to create post", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

type postEntry struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Images        []string  `json:"images"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
}

func (s *server) ListPostsHandler(w http.ResponseWriter, r *http.Request) {
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

	limit, cursor, ok := pageParams(w, r)
	if !ok {
		return
	}

	posts, next, err := s.store.ListPosts(r.Context(), userID, limit, cursor)
	if err != nil {
		http.Error(w, "Failed to list posts", http.StatusInternalServerError)
		return
	}

	entries := make([]postEntry, 0, len(posts))
	for _, p := range posts {
		entry := postEntry{
			ID:            p.ID,
			Text:          p.Text,
			CreatedAt:     p.CreatedAt,
			UpdatedAt:     p.UpdatedAt,
			Images:        make([]string, 0, len(p.Images)),
			LikesCount:    len(p.Likes),
			CommentsCount: len(p.Comments),
		}
		for _, img := range p.Images {
			entry.Images = append(entry.Images, img.ImageKey)
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"posts":       entries,
		"next_cursor": cursorString(next),
	})
}

func (s *server) PhotoFeedHandler(w http.ResponseWriter, r *http.Request) {
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

	limit, cursor, ok := pageParams(w, r)
	if !ok {
		return
	}

	photos, next, err := s.store.PhotoFeed(r.Context(), userID, limit, cursor)
	if err != nil {
		http.Error(w, "Failed to load photos", http.StatusInternalServerError)
		return
	}
	if photos == nil {
		photos = []model.PostImage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photos":      photos,
		"next_cursor": cursorString(next),
	})
}

func pageParams(w http.ResponseWriter, r *http.Request) (int, *time.Time, bool) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var cursor *time.Time
	if v := r.URL.Query().Get("cursor"); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			http.Error(w, "Invalid cursor", http.StatusBadRequest)
			return 0, nil, false
		}
		cursor = &ts
	}
	return limit, cursor, true
}

func cursorString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339Nano)
	return &v
}
