package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/altukhov/dialog/pkg/model"
)

// EventKind is the closed set of inbound event variants. The envelope is
// decoded once at the boundary; anything unrecognized or malformed maps to
// KindIgnored instead of an error, so a bad event never ends a session.
type EventKind int

const (
	KindIgnored EventKind = iota
	KindNewMessage
	KindReadMessage
	KindEditMessage
	KindDeleteMessage
)

type DeleteMode string

const (
	DeleteSelf DeleteMode = "self"
	DeleteAll  DeleteMode = "all"
)

// Event is one decoded inbound event. Only the fields relevant to Kind are
// populated.
type Event struct {
	Kind      EventKind
	Text      string
	MessageID uuid.UUID
	Mode      DeleteMode
}

type envelope struct {
	Event     string `json:"event"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	Mode      string `json:"mode"`
}

// DecodeEvent turns a raw frame into an Event. It never fails: malformed
// JSON, unknown discriminators and unparsable message ids all come back as
// KindIgnored.
func DecodeEvent(data []byte) Event {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{Kind: KindIgnored}
	}

	parseID := func() (uuid.UUID, bool) {
		id, err := uuid.Parse(env.MessageID)
		return id, err == nil
	}

	switch env.Event {
	case "new_message":
		return Event{Kind: KindNewMessage, Text: env.Text}
	case "read_message":
		if id, ok := parseID(); ok {
			return Event{Kind: KindReadMessage, MessageID: id}
		}
	case "edit_message":
		if id, ok := parseID(); ok {
			return Event{Kind: KindEditMessage, MessageID: id, Text: env.Text}
		}
	case "delete_message":
		id, ok := parseID()
		if !ok {
			break
		}
		mode := DeleteMode(env.Mode)
		if mode == "" {
			mode = DeleteSelf
		}
		if mode == DeleteSelf || mode == DeleteAll {
			return Event{Kind: KindDeleteMessage, MessageID: id, Mode: mode}
		}
	}
	return Event{Kind: KindIgnored}
}

// Outbound events.

type pingEvent struct {
	Event string `json:"event"`
}

func newPingEvent() pingEvent { return pingEvent{Event: "ping"} }

type errorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func newErrorEvent(message string) errorEvent {
	return errorEvent{Event: "error", Message: message}
}

// MessagePayload is the wire shape of a message inside new_message and
// message_edited events.
type MessagePayload struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Text           string     `json:"text"`
	IsRead         bool       `json:"is_read"`
	IsEdited       bool       `json:"is_edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toPayload(m *model.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		IsRead:         m.IsRead,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
}

type newMessageEvent struct {
	Event   string         `json:"event"`
	Message MessagePayload `json:"message"`
}

type messageEditedEvent struct {
	Event   string         `json:"event"`
	Message MessagePayload `json:"message"`
}

type messageReadEvent struct {
	Event     string    `json:"event"`
	MessageID uuid.UUID `json:"message_id"`
	ReaderID  uuid.UUID `json:"reader_id"`
}

type messageDeletedEvent struct {
	Event     string     `json:"event"`
	MessageID uuid.UUID  `json:"message_id"`
	Mode      DeleteMode `json:"mode"`
}
