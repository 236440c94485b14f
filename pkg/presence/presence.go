// Package presence tracks online/offline status in Redis.
//
// Presence is advisory: the connection registry decides who can receive a
// broadcast right now, Redis only answers "has this user been seen
// recently". The online key expires on its own; absence of the key, not an
// explicit value, means offline.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the sliding expiration of the online key. A session
// refreshes it on every heartbeat tick, so it only lapses on true silence.
const DefaultTTL = 60 * time.Second

// Commands is the slice of the redis client the store needs.
// *redis.Client satisfies it.
type Commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Status struct {
	UserID   uuid.UUID  `json:"user_id"`
	Status   string     `json:"status"`
	LastSeen *time.Time `json:"last_seen"`
}

type Store struct {
	client Commands
	ttl    time.Duration
}

func NewStore(client Commands, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func statusKey(userID uuid.UUID) string   { return "user:" + userID.String() + ":status" }
func lastSeenKey(userID uuid.UUID) string { return "user:" + userID.String() + ":last_seen" }

// MarkOnline sets the online key with the heartbeat TTL. Called at accept
// and whenever client traffic arrives. Failures are logged, never fatal.
func (s *Store) MarkOnline(ctx context.Context, userID uuid.UUID) {
	if err := s.client.Set(ctx, statusKey(userID), "online", s.ttl).Err(); err != nil {
		log.Printf("presence: mark online %s: %v", userID, err)
	}
}

// RefreshOnline extends the TTL without rewriting the value. Used on idle
// heartbeat ticks so presence decays only from true silence.
func (s *Store) RefreshOnline(ctx context.Context, userID uuid.UUID) {
	if err := s.client.Expire(ctx, statusKey(userID), s.ttl).Err(); err != nil {
		log.Printf("presence: refresh %s: %v", userID, err)
	}
}

// MarkOffline records last-seen, then drops the online key. Last-seen lands
// first so a racing status read never sees neither key.
func (s *Store) MarkOffline(ctx context.Context, userID uuid.UUID) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, lastSeenKey(userID), now, 0).Err(); err != nil {
		log.Printf("presence: write last seen %s: %v", userID, err)
	}
	if err := s.client.Del(ctx, statusKey(userID)).Err(); err != nil {
		log.Printf("presence: mark offline %s: %v", userID, err)
	}
}

// GetStatus reports online if the status key exists, otherwise offline with
// the last recorded last-seen (nil if the user never connected). Store
// errors degrade to offline.
func (s *Store) GetStatus(ctx context.Context, userID uuid.UUID) Status {
	st := Status{UserID: userID, Status: "offline"}

	_, err := s.client.Get(ctx, statusKey(userID)).Result()
	if err == nil {
		st.Status = "online"
		return st
	}
	if !errors.Is(err, redis.Nil) {
		log.Printf("presence: get status %s: %v", userID, err)
		return st
	}

	raw, err := s.client.Get(ctx, lastSeenKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("presence: get last seen %s: %v", userID, err)
		}
		return st
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		log.Printf("presence: parse last seen %s: %v", userID, fmt.Errorf("%q: %w", raw, err))
		return st
	}
	st.LastSeen = &ts
	return st
}
