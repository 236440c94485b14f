// Package registry maps conversations to their live connections and fans
// payloads out to them. Delivery is best-effort multicast with self-healing
// membership: there is no acknowledgment or replay, a reconnecting client
// reconciles by re-fetching history.
package registry

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Conn is the write side of one live connection. The concrete type wraps a
// websocket connection and must serialize its own writes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Registry is the source of truth for "can receive a broadcast now".
// Register, Unregister and Broadcast are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[Conn]struct{}
}

func New() *Registry {
	return &Registry{conns: make(map[uuid.UUID]map[Conn]struct{})}
}

// Register adds conn to the conversation's set. Idempotent.
func (r *Registry) Register(conversationID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[conversationID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[conversationID] = set
	}
	set[conn] = struct{}{}
}

// Unregister removes conn; an emptied conversation entry is dropped so the
// map never accumulates dead conversations.
func (r *Registry) Unregister(conversationID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[conversationID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(r.conns, conversationID)
	}
}

// Broadcast sends payload to every connection registered for the
// conversation. Membership is snapshotted first so no lock is held across
// blocking writes; connections whose write fails are evicted afterward.
func (r *Registry) Broadcast(conversationID uuid.UUID, payload interface{}) {
	r.BroadcastExcept(conversationID, payload, nil)
}

// BroadcastExcept is Broadcast minus one connection. Read receipts use it:
// everyone but the reader hears message_read.
func (r *Registry) BroadcastExcept(conversationID uuid.UUID, payload interface{}, except Conn) {
	r.mu.RLock()
	set, ok := r.conns[conversationID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	snapshot := make([]Conn, 0, len(set))
	for conn := range set {
		if conn == except {
			continue
		}
		snapshot = append(snapshot, conn)
	}
	r.mu.RUnlock()

	var failed []Conn
	for _, conn := range snapshot {
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("registry: dropping connection in conversation %s: %v", conversationID, err)
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		r.Unregister(conversationID, conn)
		conn.Close()
	}
}

// Count reports how many connections are registered for a conversation.
func (r *Registry) Count(conversationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[conversationID])
}
