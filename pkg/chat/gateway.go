package chat

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/altukhov/dialog/pkg/auth"
	"github.com/altukhov/dialog/pkg/presence"
	"github.com/altukhov/dialog/pkg/registry"
)

// Application close codes. 4xxx is the range reserved for applications;
// clients treat CloseAccessDenied as terminal and CloseInternalError as
// retryable.
const (
	CloseInternalError = 4000
	CloseAccessDenied  = 4003
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the web client's domain is fixed
	},
}

// Gateway owns the connection lifecycle: authenticate, authorize, register,
// run the session, and on every exit path deregister and flip presence
// offline exactly once.
type Gateway struct {
	registry   *registry.Registry
	presence   *presence.Store
	dispatcher *Dispatcher
	authz      Authorizer
	tokens     *auth.Tokens
}

func NewGateway(reg *registry.Registry, pres *presence.Store, dispatcher *Dispatcher, authz Authorizer, tokens *auth.Tokens) *Gateway {
	return &Gateway{
		registry:   reg,
		presence:   pres,
		dispatcher: dispatcher,
		authz:      authz,
		tokens:     tokens,
	}
}

// ServeHTTP upgrades GET /api/v1/ws/chat/{conversation_id}. The bearer
// token is validated before the upgrade completes; membership is checked
// before the connection can touch any state.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	// The refresh_token cookie is accepted here because browser clients
	// reconnect with it after the short-lived access token expires.
	claims, err := g.tokens.Validate(tokenString, auth.PurposeAccess)
	if err != nil {
		claims, err = g.tokens.Validate(tokenString, auth.PurposeRefresh)
	}
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conversationID, err := uuid.Parse(mux.Vars(r)["conversation_id"])
	if err != nil {
		http.Error(w, "Invalid conversation id", http.StatusBadRequest)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat: upgrade failed: %v", err)
		return
	}
	raw.SetReadLimit(maxEventSize)
	conn := newWSConn(raw)

	ctx := r.Context()
	ok, err := g.authz.IsParticipant(ctx, userID, conversationID)
	if err != nil {
		log.Printf("chat: participant lookup for user %s: %v", userID, err)
		conn.CloseWithCode(CloseInternalError, "Internal server error")
		return
	}
	if !ok {
		conn.CloseWithCode(CloseAccessDenied, "Access denied to conversation")
		return
	}

	g.registry.Register(conversationID, conn)
	g.presence.MarkOnline(ctx, userID)
	log.Printf("chat: user %s joined conversation %s (%d live)", userID, conversationID, g.registry.Count(conversationID))

	// The single cleanup for every exit: receive error, failed ping,
	// dispatcher-triggered close. Last-seen lands before the online key
	// disappears, inside MarkOffline.
	defer func() {
		g.registry.Unregister(conversationID, conn)
		g.presence.MarkOffline(ctx, userID)
		conn.Close()
	}()

	session := NewSession(conn, userID, conversationID, g.dispatcher, g.presence)
	session.Run(ctx)
}

// bearerToken pulls the token from the Authorization header, the
// refresh_token cookie, or the token query parameter, in that order.
// Browser WebSocket clients cannot set headers, hence the fallbacks.
func bearerToken(r *http.Request) string {
	tokenString := r.Header.Get("Authorization")
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		return tokenString[7:]
	}
	if tokenString != "" {
		return tokenString
	}
	if c, err := r.Cookie("refresh_token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
