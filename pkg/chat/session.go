package chat

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/altukhov/dialog/pkg/presence"
)

const (
	// idleTimeout is how long a session tolerates silence before it
	// refreshes presence and pings the client. An idle client is fine;
	// only a failed ping write means the client is gone.
	idleTimeout = 45 * time.Second

	// maxEventSize bounds one inbound frame.
	maxEventSize = 8192

	// Inbound events per second one connection may sustain. Over-limit
	// events are dropped with an error reply; the session stays up.
	eventsPerSecond = 10
	eventBurst      = 20
)

// conn is the session's view of its transport. *wsConn implements it; tests
// substitute a fake.
type conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (data []byte, err error)
	Close() error
}

// Session owns one live connection's receive loop and heartbeat. Events are
// processed strictly in receipt order; the heartbeat runs beside the loop
// and forces a close by tearing the transport down, so the owner's cleanup
// path stays the only exit path.
type Session struct {
	conn           conn
	userID         uuid.UUID
	conversationID uuid.UUID
	dispatcher     *Dispatcher
	presence       *presence.Store
	limiter        *rate.Limiter
	idle           time.Duration
}

func NewSession(c conn, userID, conversationID uuid.UUID, dispatcher *Dispatcher, pres *presence.Store) *Session {
	return &Session{
		conn:           c,
		userID:         userID,
		conversationID: conversationID,
		dispatcher:     dispatcher,
		presence:       pres,
		limiter:        rate.NewLimiter(rate.Limit(eventsPerSecond), eventBurst),
		idle:           idleTimeout,
	}
}

// Run processes inbound events until the transport dies. It returns once
// the receive loop has exited; the caller deregisters and flips presence.
func (s *Session) Run(ctx context.Context) {
	activity := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)

	go s.heartbeat(ctx, activity, done)

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			// Closed stream is the only cancellation signal; any
			// receive error is the end of this session.
			return
		}
		if len(data) > maxEventSize {
			continue
		}

		select {
		case activity <- struct{}{}:
		default:
		}
		s.presence.MarkOnline(ctx, s.userID)

		if !s.limiter.Allow() {
			if err := s.conn.WriteJSON(newErrorEvent("Rate limit exceeded")); err != nil {
				return
			}
			continue
		}

		ev := DecodeEvent(data)
		if ev.Kind == KindIgnored {
			continue
		}

		if err := s.dispatcher.Dispatch(ctx, ev, s.userID, s.conversationID, s.conn); err != nil {
			log.Printf("chat: event failed for user %s in conversation %s: %v", s.userID, s.conversationID, err)
			if err := s.conn.WriteJSON(newErrorEvent("Failed to process message")); err != nil {
				return
			}
		}
	}
}

// heartbeat fires after idleTimeout of no client traffic: it refreshes the
// presence TTL and pushes an unsolicited ping. A failed ping write means
// the peer is gone, and closing the transport unblocks the receive loop.
func (s *Session) heartbeat(ctx context.Context, activity <-chan struct{}, done <-chan struct{}) {
	timer := time.NewTimer(s.idle)
	defer timer.Stop()

	for {
		select {
		case <-done:
			return
		case <-activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.idle)
		case <-timer.C:
			s.presence.RefreshOnline(ctx, s.userID)
			if err := s.conn.WriteJSON(newPingEvent()); err != nil {
				s.conn.Close()
				return
			}
			timer.Reset(s.idle)
		}
	}
}
