package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Session is the server-side record behind a browser cookie.
type Session struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore is the abstraction over session backends.
type SessionStore interface {
	Create(ctx context.Context, id Identity) (Session, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
	Healthy(ctx context.Context) bool
}

func newSession(id Identity, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		Identity:  id,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// MemorySessions keeps sessions in process memory; for dev/testing and
// single-instance deployments.
type MemorySessions struct {
	ttl   time.Duration
	cache *gocache.Cache
}

// NewMemorySessions creates an in-memory store with expiry.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &MemorySessions{ttl: ttl, cache: gocache.New(ttl, 10*time.Minute)}
}

// Create starts a new session for the identity.
func (m *MemorySessions) Create(ctx context.Context, id Identity) (Session, error) {
	if !id.Authenticated() {
		return Session{}, errors.New("cannot create session for anonymous identity")
	}
	s := newSession(id, m.ttl)
	m.cache.Set(s.ID, s, m.ttl)
	return s, nil
}

// Get returns the session or nil when missing or expired.
func (m *MemorySessions) Get(ctx context.Context, sessionID string) (*Session, error) {
	v, ok := m.cache.Get(sessionID)
	if !ok {
		return nil, nil
	}
	s, ok := v.(Session)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete ends a session.
func (m *MemorySessions) Delete(ctx context.Context, sessionID string) error {
	m.cache.Delete(sessionID)
	return nil
}

// Healthy is always true for the in-memory store.
func (m *MemorySessions) Healthy(ctx context.Context) bool { return true }

// RedisSessions stores sessions as JSON values with a TTL.
type RedisSessions struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessions builds a redis-backed store.
func NewRedisSessions(client *redis.Client, prefix string, ttl time.Duration) *RedisSessions {
	if prefix == "" {
		prefix = "campusevents:session:"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisSessions{client: client, prefix: prefix, ttl: ttl}
}

// Create starts a new session for the identity.
func (r *RedisSessions) Create(ctx context.Context, id Identity) (Session, error) {
	if !id.Authenticated() {
		return Session{}, errors.New("cannot create session for anonymous identity")
	}
	s := newSession(id, r.ttl)
	payload, err := json.Marshal(s)
	if err != nil {
		return Session{}, err
	}
	if err := r.client.Set(ctx, r.prefix+s.ID, payload, r.ttl).Err(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Get returns the session or nil when missing or expired.
func (r *RedisSessions) Get(ctx context.Context, sessionID string) (*Session, error) {
	raw, err := r.client.Get(ctx, r.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete ends a session.
func (r *RedisSessions) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.prefix+sessionID).Err()
}

// Healthy verifies redis connectivity.
func (r *RedisSessions) Healthy(ctx context.Context) bool {
	return r.client.Ping(ctx).Err() == nil
}
