package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds every write to the peer so one stalled consumer delays
// only its own delivery, never the broadcasting goroutine's other work.
const writeWait = 10 * time.Second

// wsConn wraps a websocket connection with a write mutex: the session's own
// replies, heartbeat pings and registry broadcasts all write concurrently.
// Implements registry.Conn.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// ReadMessage is only ever called from the session's receive loop, so it
// needs no locking.
func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// CloseWithCode sends a close frame with an application close code before
// tearing the connection down, so clients can tell terminal failures from
// retryable ones.
func (c *wsConn) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, msg)
	c.mu.Unlock()
	return c.conn.Close()
}
