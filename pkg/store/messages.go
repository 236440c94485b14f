package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/altukhov/dialog/pkg/model"
)

// CreateMessage inserts the message and moves the conversation's
// last-message pointer in one transaction.
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID uuid.UUID, text string) (*model.Message, error) {
	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Update("last_message_id", msg.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead flags the message read. No-op (false, nil) unless the message
// belongs to the conversation and the reader is not its sender.
func (s *Store) MarkRead(ctx context.Context, conversationID, messageID, readerID uuid.UUID) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if msg.ConversationID != conversationID || msg.SenderID == readerID {
			return nil
		}
		if err := tx.Model(&msg).Update("is_read", true).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// EditMessage replaces the text and stamps the edit. Only the sender may
// edit; nil, nil means the edit did not apply.
func (s *Store) EditMessage(ctx context.Context, conversationID, messageID, senderID uuid.UUID, text string) (*model.Message, error) {
	var updated *model.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if msg.ConversationID != conversationID || msg.SenderID != senderID {
			return nil
		}
		now := time.Now().UTC()
		// edited flag and timestamp always move together.
		if err := tx.Model(&msg).Updates(map[string]interface{}{
			"text":      text,
			"is_edited": true,
			"edited_at": now,
		}).Error; err != nil {
			return err
		}
		msg.Text = text
		msg.IsEdited = true
		msg.EditedAt = &now
		updated = &msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteForUser appends the user to the message's deletion set. Idempotent:
// a second call changes nothing but still reports true so the requester
// gets its confirmation reply.
func (s *Store) DeleteForUser(ctx context.Context, conversationID, messageID, userID uuid.UUID) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if msg.ConversationID != conversationID {
			return nil
		}
		applied = true
		if msg.DeletedForUser(userID) {
			return nil
		}
		msg.DeletedFor = append(msg.DeletedFor, userID)
		return tx.Model(&msg).Update("deleted_for", msg.DeletedFor).Error
	})
	return applied, err
}

// DeleteForAll hard-deletes the message. Sender only. The conversation's
// last-message pointer is cleared in the same transaction when it points at
// the deleted row.
func (s *Store) DeleteForAll(ctx context.Context, conversationID, messageID, senderID uuid.UUID) (bool, error) {
	var applied bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg model.Message
		if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if msg.ConversationID != conversationID || msg.SenderID != senderID {
			return nil
		}
		if err := tx.Model(&model.Conversation{}).
			Where("id = ? AND last_message_id = ?", conversationID, messageID).
			Update("last_message_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&msg).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// HistoryPage is one keyset-paginated slice of a conversation's messages,
// newest first.
type HistoryPage struct {
	Messages   []model.Message
	NextCursor *time.Time
}

// History returns up to limit messages older than cursor (all when cursor
// is nil), excluding rows the caller soft-deleted. The caller must already
// be authorized; ErrNotParticipant is returned otherwise.
func (s *Store) History(ctx context.Context, conversationID, userID uuid.UUID, limit int, cursor *time.Time) (*HistoryPage, error) {
	ok, err := s.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotParticipant
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where("created_at < ?", *cursor)
	}

	var rows []model.Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	page := &HistoryPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1].CreatedAt
		page.NextCursor = &last
	}
	// The deletion set lives in a JSON column, so per-user filtering
	// happens here rather than in SQL.
	page.Messages = make([]model.Message, 0, len(rows))
	for _, m := range rows {
		if !m.DeletedForUser(userID) {
			page.Messages = append(page.Messages, m)
		}
	}
	return page, nil
}

// GetMessage loads one message regardless of conversation. REST delete
// endpoints use it for their permission checks.
func (s *Store) GetMessage(ctx context.Context, messageID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &msg, nil
}
