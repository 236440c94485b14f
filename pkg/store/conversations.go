package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/altukhov/dialog/pkg/model"
)

// GetOrCreateConversation finds the two-party conversation between both
// users, creating it with both participants when absent.
func (s *Store) GetOrCreateConversation(ctx context.Context, userID, otherID uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation

	sub := s.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id IN ?", []uuid.UUID{userID, otherID}).
		Group("conversation_id").
		Having("COUNT(DISTINCT user_id) = 2")

	err := s.db.WithContext(ctx).Where("id IN (?)", sub).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		participants := []model.ConversationParticipant{
			{ConversationID: conv.ID, UserID: userID},
			{ConversationID: conv.ID, UserID: otherID},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations returns every conversation the user belongs to, with
// participants (and their users) and the last message preloaded.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]model.Conversation, error) {
	sub := s.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	var convs []model.Conversation
	err := s.db.WithContext(ctx).
		Preload("Participants.User").
		Preload("LastMessage").
		Where("id IN (?)", sub).
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}
