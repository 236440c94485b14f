package main

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altukhov/dialog/pkg/media"
	"github.com/altukhov/dialog/pkg/model"
	"github.com/altukhov/dialog/pkg/store"
)

// GetOrCreateConversationHandler answers GET /api/v1/conversation?receiver_id=.
func (s *server) GetOrCreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	receiverID, err := uuid.Parse(r.URL.Query().Get("receiver_id"))
	if err != nil {
		http.Error(w, "receiver_id is required", http.StatusBadRequest)
		return
	}
	if receiverID == claims.UserID {
		http.Error(w, "Cannot start a conversation with yourself", http.StatusBadRequest)
		return
	}
	if _, err := s.store.GetUser(r.Context(), receiverID); err != nil {
		http.Error(w, "Receiver not found", http.StatusBadRequest)
		return
	}

	conv, err := s.store.GetOrCreateConversation(r.Context(), claims.UserID, receiverID)
	if err != nil {
		http.Error(w, "Failed to resolve conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": conv.ID.String()})
}

type conversationEntry struct {
	ConversationID uuid.UUID          `json:"conversation_id"`
	Participants   []participantEntry `json:"participants"`
	LastMessage    *model.Message     `json:"last_message"`
}

type participantEntry struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	AvatarURL *string   `json:"avatar_url"`
	Status    string    `json:"status"`
}

// ListConversationsHandler returns the caller's conversations with peer
// presence and signed avatar links.
func (s *server) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	convs, err := s.store.ListConversations(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}

	response := make([]conversationEntry, 0, len(convs))
	for _, conv := range convs {
		entry := conversationEntry{ConversationID: conv.ID, LastMessage: conv.LastMessage}
		for _, p := range conv.Participants {
			if p.UserID == claims.UserID || p.User == nil {
				continue
			}
			pe := participantEntry{
				ID:      p.UserID,
				Name:    p.User.Name,
				Surname: p.User.Surname,
				Status:  s.presence.GetStatus(r.Context(), p.UserID).Status,
			}
			if p.User.AvatarKey != nil {
				if u, err := s.media.DownloadURL(r.Context(), media.BucketAvatars, *p.User.AvatarKey); err == nil {
					link := u.String()
					pe.AvatarURL = &link
				} else {
					log.Printf("Failed to sign avatar for %s: %v", p.UserID, err)
				}
			}
			entry.Participants = append(entry.Participants, pe)
		}
		response = append(response, entry)
	}
	writeJSON(w, http.StatusOK, response)
}

// HistoryHandler pages a conversation's messages, newest first, using a
// created_at keyset cursor.
func (s *server) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	conversationID, err := uuid.Parse(mux.Vars(r)["conversation_id"])
	if err != nil {
		http.Error(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}

	limit := 50
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
			return
		}
		cursor = &ts
	}

	page, err := s.store.History(r.Context(), conversationID, claims.UserID, limit, cursor)
	if err != nil {
		if err == store.ErrNotParticipant {
			http.Error(w, "Access denied to this conversation", http.StatusForbidden)
			return
		}
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	var next *string
	if page.NextCursor != nil {
		v := page.NextCursor.Format(time.RFC3339Nano)
		next = &v
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":    page.Messages,
		"next_cursor": next,
		"has_more":    next != nil,
	})
}

// DeleteMessageSelfHandler is the REST twin of the delete_message{self} event.
func (s *server) DeleteMessageSelfHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, err := uuid.Parse(mux.Vars(r)["message_id"])
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	msg, err := s.store.GetMessage(r.Context(), messageID)
	if err != nil {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if _, err := s.store.DeleteForUser(r.Context(), msg.ConversationID, messageID, claims.UserID); err != nil {
		http.Error(w, "Delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Message deleted for self"})
}

// DeleteMessageAllHandler is the REST twin of delete_message{all}: sender only.
func (s *server) DeleteMessageAllHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	messageID, err := uuid.Parse(mux.Vars(r)["message_id"])
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	msg, err := s.store.GetMessage(r.Context(), messageID)
	if err != nil {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if msg.SenderID != claims.UserID {
		http.Error(w, "Only sender can delete for all", http.StatusForbidden)
		return
	}
	if _, err := s.store.DeleteForAll(r.Context(), msg.ConversationID, messageID, claims.UserID); err != nil {
		http.Error(w, "Delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Message deleted for all"})
}
