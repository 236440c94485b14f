package chat

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/altukhov/dialog/pkg/model"
	"github.com/altukhov/dialog/pkg/registry"
)

// MessageStore is the persistence collaborator. Every mutating call runs in
// one transaction and has committed by the time it returns, so the
// dispatcher may broadcast its result immediately. A (zero, nil) return
// means the mutation did not apply (unknown message, wrong conversation,
// caller not permitted) and nothing should be emitted.
type MessageStore interface {
	CreateMessage(ctx context.Context, conversationID, senderID uuid.UUID, text string) (*model.Message, error)
	MarkRead(ctx context.Context, conversationID, messageID, readerID uuid.UUID) (bool, error)
	EditMessage(ctx context.Context, conversationID, messageID, senderID uuid.UUID, text string) (*model.Message, error)
	DeleteForUser(ctx context.Context, conversationID, messageID, userID uuid.UUID) (bool, error)
	DeleteForAll(ctx context.Context, conversationID, messageID, senderID uuid.UUID) (bool, error)
}

// Authorizer answers whether a user may attach to a conversation.
type Authorizer interface {
	IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
}

// Broadcaster fans a payload out to every live connection of a
// conversation, optionally skipping one.
type Broadcaster interface {
	Broadcast(conversationID uuid.UUID, payload interface{})
	BroadcastExcept(conversationID uuid.UUID, payload interface{}, except registry.Conn)
}

// Dispatcher routes decoded events to their mutation handlers. Broadcasts
// are emitted only after the store call has committed; a store error means
// nothing was broadcast and the caller should notify only the offending
// client.
type Dispatcher struct {
	store       MessageStore
	broadcaster Broadcaster
}

func NewDispatcher(store MessageStore, broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{store: store, broadcaster: broadcaster}
}

// Dispatch applies one event for the given user and conversation. reply is
// the sender's own connection, used for events that answer only the
// requester. A nil return covers both success and silent no-ops; an error
// is always a persistence failure.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, userID, conversationID uuid.UUID, reply registry.Conn) error {
	switch ev.Kind {
	case KindNewMessage:
		return d.handleNewMessage(ctx, ev, userID, conversationID)
	case KindReadMessage:
		return d.handleReadMessage(ctx, ev, userID, conversationID, reply)
	case KindEditMessage:
		return d.handleEditMessage(ctx, ev, userID, conversationID)
	case KindDeleteMessage:
		return d.handleDeleteMessage(ctx, ev, userID, conversationID, reply)
	}
	return nil
}

func (d *Dispatcher) handleNewMessage(ctx context.Context, ev Event, userID, conversationID uuid.UUID) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" || len(text) > model.MaxMessageLen {
		return nil
	}

	msg, err := d.store.CreateMessage(ctx, conversationID, userID, text)
	if err != nil {
		return err
	}

	// The sender receives its own new_message too and reconciles the
	// optimistic UI entry by id.
	d.broadcaster.Broadcast(conversationID, newMessageEvent{
		Event:   "new_message",
		Message: toPayload(msg),
	})
	return nil
}

func (d *Dispatcher) handleReadMessage(ctx context.Context, ev Event, userID, conversationID uuid.UUID, reply registry.Conn) error {
	ok, err := d.store.MarkRead(ctx, conversationID, ev.MessageID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	// The reader already knows; unlike new_message, its own socket stays
	// silent.
	d.broadcaster.BroadcastExcept(conversationID, messageReadEvent{
		Event:     "message_read",
		MessageID: ev.MessageID,
		ReaderID:  userID,
	}, reply)
	return nil
}

func (d *Dispatcher) handleEditMessage(ctx context.Context, ev Event, userID, conversationID uuid.UUID) error {
	text := strings.TrimSpace(ev.Text)
	if text == "" || len(text) > model.MaxMessageLen {
		return nil
	}

	msg, err := d.store.EditMessage(ctx, conversationID, ev.MessageID, userID, text)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	d.broadcaster.Broadcast(conversationID, messageEditedEvent{
		Event:   "message_edited",
		Message: toPayload(msg),
	})
	return nil
}

func (d *Dispatcher) handleDeleteMessage(ctx context.Context, ev Event, userID, conversationID uuid.UUID, reply registry.Conn) error {
	switch ev.Mode {
	case DeleteSelf:
		ok, err := d.store.DeleteForUser(ctx, conversationID, ev.MessageID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		// Other participants still see the message; only the requester
		// hears about a self delete.
		return reply.WriteJSON(messageDeletedEvent{
			Event:     "message_deleted",
			MessageID: ev.MessageID,
			Mode:      DeleteSelf,
		})
	case DeleteAll:
		ok, err := d.store.DeleteForAll(ctx, conversationID, ev.MessageID, userID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		d.broadcaster.Broadcast(conversationID, messageDeletedEvent{
			Event:     "message_deleted",
			MessageID: ev.MessageID,
			Mode:      DeleteAll,
		})
	}
	return nil
}
