package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/altukhov/dialog/pkg/auth"
	"github.com/altukhov/dialog/pkg/model"
	"github.com/altukhov/dialog/pkg/presence"
	"github.com/altukhov/dialog/pkg/registry"
	"github.com/altukhov/dialog/pkg/store"
)

type gatewayFixture struct {
	server *httptest.Server
	tokens *auth.Tokens
	store  *store.Store
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Conversation{}, &model.ConversationParticipant{}, &model.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	st := store.New(db)
	tokens := auth.NewTokens([]byte("test_secret"))
	reg := registry.New()
	pres := presence.NewStore(&countingRedis{}, time.Minute)
	gateway := NewGateway(reg, pres, NewDispatcher(st, reg), st, tokens)

	r := mux.NewRouter()
	r.Handle("/api/v1/ws/chat/{conversation_id}", gateway)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, tokens: tokens, store: st}
}

func (f *gatewayFixture) dial(t *testing.T, userID, conversationID uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.Generate(userID, auth.PurposeAccess, auth.AccessTokenTTL)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/ws/chat/" + conversationID.String()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev map[string]interface{}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var ev map[string]interface{}
	if err := conn.ReadJSON(&ev); err == nil {
		t.Fatalf("expected no event, got %v", ev)
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestNonParticipantIsRefused(t *testing.T) {
	f := newGatewayFixture(t)
	alice, bob, outsider := uuid.New(), uuid.New(), uuid.New()
	conv, err := f.store.GetOrCreateConversation(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	conn := f.dial(t, outsider, conv.ID)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, CloseAccessDenied) {
		t.Fatalf("read err = %v, want close code %d", err, CloseAccessDenied)
	}
}

func TestRejectsBadToken(t *testing.T) {
	f := newGatewayFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/v1/ws/chat/" + uuid.NewString()
	header := http.Header{}
	header.Set("Authorization", "Bearer garbage")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("dial succeeded with a garbage token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

// The two-user walkthrough: new_message fans out to both including the
// sender, message_read excludes the reader, delete(self) answers only the
// requester.
func TestTwoUserConversationFlow(t *testing.T) {
	f := newGatewayFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv, err := f.store.GetOrCreateConversation(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	aliceConn := f.dial(t, alice, conv.ID)
	bobConn := f.dial(t, bob, conv.ID)
	// Both registrations must be visible before the first broadcast;
	// give the server a beat to finish the slower accept.
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, aliceConn, map[string]string{"event": "new_message", "text": "hi"})

	aliceEv := readEvent(t, aliceConn)
	bobEv := readEvent(t, bobConn)
	for who, ev := range map[string]map[string]interface{}{"alice": aliceEv, "bob": bobEv} {
		if ev["event"] != "new_message" {
			t.Fatalf("%s got %v, want new_message", who, ev["event"])
		}
	}
	aliceMsg := aliceEv["message"].(map[string]interface{})
	bobMsg := bobEv["message"].(map[string]interface{})
	if aliceMsg["id"] != bobMsg["id"] {
		t.Errorf("message ids differ: %v vs %v", aliceMsg["id"], bobMsg["id"])
	}
	if aliceMsg["is_read"] != false {
		t.Errorf("is_read = %v, want false", aliceMsg["is_read"])
	}
	messageID := aliceMsg["id"].(string)

	// B reads: A hears about it, B's own socket stays quiet.
	sendEvent(t, bobConn, map[string]string{"event": "read_message", "message_id": messageID})
	readEv := readEvent(t, aliceConn)
	if readEv["event"] != "message_read" || readEv["message_id"] != messageID || readEv["reader_id"] != bob.String() {
		t.Errorf("unexpected message_read payload %v", readEv)
	}
	expectSilence(t, bobConn)

	// A deletes for self: only A gets the confirmation.
	sendEvent(t, aliceConn, map[string]string{"event": "delete_message", "message_id": messageID, "mode": "self"})
	delEv := readEvent(t, aliceConn)
	if delEv["event"] != "message_deleted" || delEv["mode"] != "self" {
		t.Errorf("unexpected message_deleted payload %v", delEv)
	}
	expectSilence(t, bobConn)
}

func TestListenerSeesEditBeforeDelete(t *testing.T) {
	f := newGatewayFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv, err := f.store.GetOrCreateConversation(context.Background(), alice, bob)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	aliceConn := f.dial(t, alice, conv.ID)
	bobConn := f.dial(t, bob, conv.ID)
	time.Sleep(50 * time.Millisecond)

	sendEvent(t, aliceConn, map[string]string{"event": "new_message", "text": "hii"})
	created := readEvent(t, bobConn)
	messageID := created["message"].(map[string]interface{})["id"].(string)

	sendEvent(t, aliceConn, map[string]string{"event": "edit_message", "message_id": messageID, "text": "hi"})
	sendEvent(t, aliceConn, map[string]string{"event": "delete_message", "message_id": messageID, "mode": "all"})

	first := readEvent(t, bobConn)
	second := readEvent(t, bobConn)
	if first["event"] != "message_edited" || second["event"] != "message_deleted" {
		t.Fatalf("listener saw %v then %v, want message_edited then message_deleted", first["event"], second["event"])
	}
	if second["mode"] != "all" {
		t.Errorf("delete mode = %v, want all", second["mode"])
	}

	if _, err := f.store.GetMessage(context.Background(), uuid.MustParse(messageID)); err != store.ErrNotFound {
		t.Errorf("final state: message still present (%v), want deleted", err)
	}
}
