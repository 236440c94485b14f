package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/altukhov/dialog/pkg/model"
	"github.com/altukhov/dialog/pkg/registry"
)

// memStore is an in-memory MessageStore with the same no-op semantics as
// the GORM implementation.
type memStore struct {
	mu       sync.Mutex
	messages map[uuid.UUID]*model.Message
	failWith error
}

func newMemStore() *memStore {
	return &memStore{messages: make(map[uuid.UUID]*model.Message)}
}

func (s *memStore) CreateMessage(ctx context.Context, conversationID, senderID uuid.UUID, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	msg := &model.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: senderID, Text: text}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (s *memStore) MarkRead(ctx context.Context, conversationID, messageID, readerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	msg, ok := s.messages[messageID]
	if !ok || msg.ConversationID != conversationID || msg.SenderID == readerID {
		return false, nil
	}
	msg.IsRead = true
	return true, nil
}

func (s *memStore) EditMessage(ctx context.Context, conversationID, messageID, senderID uuid.UUID, text string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	msg, ok := s.messages[messageID]
	if !ok || msg.ConversationID != conversationID || msg.SenderID != senderID {
		return nil, nil
	}
	msg.Text = text
	msg.IsEdited = true
	return msg, nil
}

func (s *memStore) DeleteForUser(ctx context.Context, conversationID, messageID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	msg, ok := s.messages[messageID]
	if !ok || msg.ConversationID != conversationID {
		return false, nil
	}
	if !msg.DeletedForUser(userID) {
		msg.DeletedFor = append(msg.DeletedFor, userID)
	}
	return true, nil
}

func (s *memStore) DeleteForAll(ctx context.Context, conversationID, messageID, senderID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return false, s.failWith
	}
	msg, ok := s.messages[messageID]
	if !ok || msg.ConversationID != conversationID || msg.SenderID != senderID {
		return false, nil
	}
	delete(s.messages, messageID)
	return true, nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads []interface{}
	excluded []registry.Conn
}

func (b *recordingBroadcaster) Broadcast(conversationID uuid.UUID, payload interface{}) {
	b.BroadcastExcept(conversationID, payload, nil)
}

func (b *recordingBroadcaster) BroadcastExcept(conversationID uuid.UUID, payload interface{}, except registry.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	b.excluded = append(b.excluded, except)
}

func (b *recordingBroadcaster) all() []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interface{}(nil), b.payloads...)
}

func (b *recordingBroadcaster) excludedAt(i int) registry.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.excluded[i]
}

type replyConn struct {
	mu      sync.Mutex
	replies []interface{}
}

func (c *replyConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, v)
	return nil
}

func (c *replyConn) Close() error { return nil }

func TestNewMessageBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)
	sender, conv := uuid.New(), uuid.New()

	err := d.Dispatch(ctx, Event{Kind: KindNewMessage, Text: "hi"}, sender, conv, &replyConn{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := bc.all()
	if len(got) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(got))
	}
	ev, ok := got[0].(newMessageEvent)
	if !ok {
		t.Fatalf("broadcast payload is %T", got[0])
	}
	if ev.Event != "new_message" || ev.Message.Text != "hi" || ev.Message.SenderID != sender || ev.Message.IsRead {
		t.Errorf("unexpected payload %+v", ev)
	}
}

func TestNewMessageRejectsBlankText(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)

	for _, text := range []string{"", "   ", "\n\t"} {
		if err := d.Dispatch(ctx, Event{Kind: KindNewMessage, Text: text}, uuid.New(), uuid.New(), &replyConn{}); err != nil {
			t.Fatalf("Dispatch(%q): %v", text, err)
		}
	}
	if len(bc.all()) != 0 {
		t.Errorf("blank text produced %d broadcasts, want 0", len(bc.all()))
	}
	if len(store.messages) != 0 {
		t.Errorf("blank text persisted %d messages, want 0", len(store.messages))
	}
}

func TestReadMessage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)
	sender, reader, conv := uuid.New(), uuid.New(), uuid.New()

	msg, _ := store.CreateMessage(ctx, conv, sender, "hi")

	// Reading your own message is a silent no-op.
	if err := d.Dispatch(ctx, Event{Kind: KindReadMessage, MessageID: msg.ID}, sender, conv, &replyConn{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(bc.all()) != 0 {
		t.Fatal("sender-is-reader broadcast something")
	}

	readerConn := &replyConn{}
	if err := d.Dispatch(ctx, Event{Kind: KindReadMessage, MessageID: msg.ID}, reader, conv, readerConn); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := bc.all()
	if len(got) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(got))
	}
	ev := got[0].(messageReadEvent)
	if ev.Event != "message_read" || ev.MessageID != msg.ID || ev.ReaderID != reader {
		t.Errorf("unexpected payload %+v", ev)
	}
	// The fan-out must skip the reader's own connection.
	var want registry.Conn = readerConn
	if bc.excludedAt(0) != want {
		t.Error("message_read fan-out did not exclude the reader")
	}
	if len(readerConn.replies) != 0 {
		t.Errorf("reader's own connection got %d events, want 0", len(readerConn.replies))
	}
}

func TestEditThenDeleteAllOrdering(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)
	sender, conv := uuid.New(), uuid.New()

	msg, _ := store.CreateMessage(ctx, conv, sender, "hii")

	// Processed in receipt order on one connection: a listener must see
	// message_edited before message_deleted, never the reverse.
	if err := d.Dispatch(ctx, Event{Kind: KindEditMessage, MessageID: msg.ID, Text: "hi"}, sender, conv, &replyConn{}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := d.Dispatch(ctx, Event{Kind: KindDeleteMessage, MessageID: msg.ID, Mode: DeleteAll}, sender, conv, &replyConn{}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got := bc.all()
	if len(got) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(got))
	}
	if _, ok := got[0].(messageEditedEvent); !ok {
		t.Errorf("first broadcast is %T, want messageEditedEvent", got[0])
	}
	del, ok := got[1].(messageDeletedEvent)
	if !ok {
		t.Fatalf("second broadcast is %T, want messageDeletedEvent", got[1])
	}
	if del.Mode != DeleteAll || del.MessageID != msg.ID {
		t.Errorf("unexpected delete payload %+v", del)
	}
	if _, stillThere := store.messages[msg.ID]; stillThere {
		t.Error("final state is not deleted")
	}
}

func TestDeleteSelfRepliesOnlyToRequester(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)
	sender, other, conv := uuid.New(), uuid.New(), uuid.New()

	msg, _ := store.CreateMessage(ctx, conv, sender, "hi")

	reply := &replyConn{}
	if err := d.Dispatch(ctx, Event{Kind: KindDeleteMessage, MessageID: msg.ID, Mode: DeleteSelf}, other, conv, reply); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(bc.all()) != 0 {
		t.Error("self delete was broadcast to the conversation")
	}
	if len(reply.replies) != 1 {
		t.Fatalf("requester got %d replies, want 1", len(reply.replies))
	}
	ev := reply.replies[0].(messageDeletedEvent)
	if ev.Mode != DeleteSelf || ev.MessageID != msg.ID {
		t.Errorf("unexpected reply %+v", ev)
	}
	if !store.messages[msg.ID].DeletedForUser(other) {
		t.Error("deletion set does not contain the requester")
	}
}

func TestDeleteAllRequiresSender(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)
	sender, other, conv := uuid.New(), uuid.New(), uuid.New()

	msg, _ := store.CreateMessage(ctx, conv, sender, "hi")

	if err := d.Dispatch(ctx, Event{Kind: KindDeleteMessage, MessageID: msg.ID, Mode: DeleteAll}, other, conv, &replyConn{}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(bc.all()) != 0 {
		t.Error("non-sender delete(all) was broadcast")
	}
	if _, ok := store.messages[msg.ID]; !ok {
		t.Error("non-sender managed to hard-delete the message")
	}
}

func TestPersistenceErrorIsReturnedNotBroadcast(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failWith = errors.New("commit failed")
	bc := &recordingBroadcaster{}
	d := NewDispatcher(store, bc)

	err := d.Dispatch(ctx, Event{Kind: KindNewMessage, Text: "hi"}, uuid.New(), uuid.New(), &replyConn{})
	if err == nil {
		t.Fatal("Dispatch returned nil for a failing store")
	}
	if len(bc.all()) != 0 {
		t.Error("uncommitted mutation was broadcast")
	}
}
