package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/metrics"
)

// UserCache caches public profiles under both user:id:<id> and user:email:<email>.
//
// Each user also has a version counter at user:ver:<id>. Readers take it with
// Version before going to Postgres and hand it to Put; Invalidate bumps it,
// so a profile read before an update can never land in the cache after it.
type UserCache struct {
	store VersionedStore
	ttl   time.Duration
}

func NewUserCache(store VersionedStore) *UserCache {
	return &UserCache{store: store, ttl: TTLMedium}
}

func userIDKey(id string) string { return "user:id:" + id }

func userEmailKey(email string) string { return "user:email:" + strings.ToLower(email) }

func userVersionKey(id string) string { return "user:ver:" + id }

func (c *UserCache) ByID(ctx context.Context, id string) (domain.Profile, error) {
	return c.get(ctx, userIDKey(id))
}

func (c *UserCache) ByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return c.get(ctx, userEmailKey(email))
}

func (c *UserCache) get(ctx context.Context, key string) (domain.Profile, error) {
	p, err := Get[domain.Profile](ctx, c.store, key)
	switch {
	case err == nil:
		metrics.CacheRequestsTotal.WithLabelValues("user", "hit").Inc()
	case errors.Is(err, ErrMiss):
		metrics.CacheRequestsTotal.WithLabelValues("user", "miss").Inc()
	default:
		metrics.CacheRequestsTotal.WithLabelValues("user", "error").Inc()
	}
	return p, err
}

// Version returns the current invalidation counter of a user, zero if none.
func (c *UserCache) Version(ctx context.Context, id string) (int64, error) {
	b, err := c.store.Get(ctx, userVersionKey(id))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", userVersionKey(id), err)
	}
	return v, nil
}

// Put writes p under every key it can be looked up by, unless the user was
// invalidated after version was read. Reports whether p was stored.
func (c *UserCache) Put(ctx context.Context, p domain.Profile, version int64) (bool, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode user %s: %w", p.ID, err)
	}
	keys := []string{userIDKey(p.ID)}
	values := [][]byte{b}
	if p.Email != "" {
		keys = append(keys, userEmailKey(p.Email))
		values = append(values, b)
	}
	stored, err := c.store.SetIfVersion(ctx, userVersionKey(p.ID), version, keys, values, c.ttl)
	if err == nil && !stored {
		metrics.CacheRequestsTotal.WithLabelValues("user", "stale_write").Inc()
	}
	return stored, err
}

// Invalidate drops both keys for a user and bumps its version. Pass every
// identifier known to the caller; an empty email is skipped.
func (c *UserCache) Invalidate(ctx context.Context, id, email string) error {
	keys := make([]string, 0, 2)
	if email != "" {
		keys = append(keys, userEmailKey(email))
	}
	if id == "" {
		return c.store.Delete(ctx, keys...)
	}
	keys = append(keys, userIDKey(id))
	// outlive any entry written under the old version
	return c.store.DeleteAndBump(ctx, userVersionKey(id), 2*c.ttl, keys...)
}
