package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// fakeRedis implements Commands over a map with real expirations driven by
// a controllable clock.
type fakeRedis struct {
	now    time.Time
	values map[string]string
	expiry map[string]time.Time
	err    error // when set, every command fails with it
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:    time.Unix(1700000000, 0),
		values: make(map[string]string),
		expiry: make(map[string]time.Time),
	}
}

func (f *fakeRedis) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fakeRedis) expired(key string) bool {
	exp, ok := f.expiry[key]
	return ok && !f.now.Before(exp)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	if expiration > 0 {
		f.expiry[key] = f.now.Add(expiration)
	} else {
		delete(f.expiry, key)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; !ok || f.expired(key) {
		return redis.NewBoolResult(false, nil)
	}
	f.expiry[key] = f.now.Add(expiration)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok || f.expired(key) {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			delete(f.expiry, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestMarkOnlineThenStatus(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	store := NewStore(r, 60*time.Second)
	user := uuid.New()

	store.MarkOnline(ctx, user)

	st := store.GetStatus(ctx, user)
	if st.Status != "online" {
		t.Fatalf("status = %q, want online", st.Status)
	}
	if st.LastSeen != nil {
		t.Errorf("last_seen = %v, want nil while online", st.LastSeen)
	}
}

func TestStatusExpiresWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	store := NewStore(r, 60*time.Second)
	user := uuid.New()

	store.MarkOnline(ctx, user)
	r.advance(61 * time.Second)

	st := store.GetStatus(ctx, user)
	if st.Status != "offline" {
		t.Fatalf("status = %q, want offline after TTL", st.Status)
	}
	if st.LastSeen != nil {
		t.Errorf("last_seen = %v, want nil: user never went through MarkOffline", st.LastSeen)
	}
}

func TestRefreshExtendsTTL(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	store := NewStore(r, 60*time.Second)
	user := uuid.New()

	store.MarkOnline(ctx, user)
	r.advance(45 * time.Second)
	store.RefreshOnline(ctx, user)
	r.advance(45 * time.Second)

	if st := store.GetStatus(ctx, user); st.Status != "online" {
		t.Fatalf("status = %q, want online after refresh", st.Status)
	}
}

func TestMarkOfflineRecordsLastSeen(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	store := NewStore(r, 60*time.Second)
	user := uuid.New()

	store.MarkOnline(ctx, user)
	store.MarkOffline(ctx, user)

	st := store.GetStatus(ctx, user)
	if st.Status != "offline" {
		t.Fatalf("status = %q, want offline", st.Status)
	}
	if st.LastSeen == nil {
		t.Fatal("last_seen is nil after MarkOffline")
	}
}

func TestUnknownUserIsOffline(t *testing.T) {
	store := NewStore(newFakeRedis(), 60*time.Second)

	st := store.GetStatus(context.Background(), uuid.New())
	if st.Status != "offline" || st.LastSeen != nil {
		t.Fatalf("got %+v, want offline with nil last_seen", st)
	}
}

func TestStoreErrorsDegradeToOffline(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	store := NewStore(r, 60*time.Second)
	user := uuid.New()

	store.MarkOnline(ctx, user)
	r.err = errors.New("connection refused")

	// Writes must not panic and reads must fall back to offline.
	store.MarkOnline(ctx, user)
	store.RefreshOnline(ctx, user)
	store.MarkOffline(ctx, user)

	if st := store.GetStatus(ctx, user); st.Status != "offline" {
		t.Fatalf("status = %q, want offline when the store is down", st.Status)
	}
}
