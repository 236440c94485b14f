package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxMessageLen bounds message text, matching the column size.
const MaxMessageLen = 2000

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:ix_messages_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	Text           string    `gorm:"size:2000;not null" json:"text"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	IsEdited       bool      `gorm:"not null;default:false" json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`

	// DeletedFor lists users who soft-deleted this message for themselves.
	// Stored as JSON so the column ports between postgres and the sqlite
	// driver used in tests. Never contains duplicates.
	DeletedFor datatypes.JSONSlice[uuid.UUID] `json:"-"`

	CreatedAt time.Time `gorm:"index:ix_messages_conversation_created,priority:2" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.DeletedFor == nil {
		m.DeletedFor = datatypes.JSONSlice[uuid.UUID]{}
	}
	return nil
}

// DeletedForUser reports whether uid soft-deleted this message.
func (m *Message) DeletedForUser(uid uuid.UUID) bool {
	for _, id := range m.DeletedFor {
		if id == uid {
			return true
		}
	}
	return false
}
