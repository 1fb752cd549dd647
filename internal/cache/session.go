package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/metrics"
)

// SessionEntry is what the session cache holds per token.
type SessionEntry struct {
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionCache struct {
	store Store
	ttl   time.Duration
}

func NewSessionCache(store Store, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = TTLSession
	}
	return &SessionCache{store: store, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }

func (c *SessionCache) Get(ctx context.Context, id string) (SessionEntry, error) {
	e, err := Get[SessionEntry](ctx, c.store, sessionKey(id))
	switch {
	case err == nil:
		metrics.CacheRequestsTotal.WithLabelValues("session", "hit").Inc()
	case errors.Is(err, ErrMiss):
		metrics.CacheRequestsTotal.WithLabelValues("session", "miss").Inc()
	default:
		metrics.CacheRequestsTotal.WithLabelValues("session", "error").Inc()
	}
	return e, err
}

// Put caches e until the session expires or the session TTL elapses, whichever is first.
func (c *SessionCache) Put(ctx context.Context, id string, e SessionEntry) error {
	ttl := c.ttl
	if left := time.Until(e.ExpiresAt); left < ttl {
		ttl = left
	}
	if ttl <= 0 {
		return nil
	}
	return Set(ctx, c.store, sessionKey(id), e, ttl)
}

func (c *SessionCache) Delete(ctx context.Context, ids ...string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	return c.store.Delete(ctx, keys...)
}
