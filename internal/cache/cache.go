// Package cache is a read-through performance layer in front of Postgres.
// Postgres stays the source of truth: a miss or a cache error always falls
// through to a durable read, and durable writes invalidate every key an
// entity may be stored under.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TTL tiers bound how stale an entry can get without explicit invalidation.
const (
	TTLShort   = 5 * time.Minute
	TTLMedium  = 30 * time.Minute
	TTLLong    = 24 * time.Hour
	TTLSession = 30 * 24 * time.Hour
)

var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented key-value store with TTL. Satisfied by *redisstore.Store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// VersionedStore guards writes with a per-entity counter. Invalidation bumps
// the counter; a read-through writer passes the value it saw before its
// durable read, and the write is dropped if an invalidation happened since.
type VersionedStore interface {
	Store
	SetIfVersion(ctx context.Context, versionKey string, version int64, keys []string, values [][]byte, ttl time.Duration) (bool, error)
	DeleteAndBump(ctx context.Context, versionKey string, versionTTL time.Duration, keys ...string) error
}

// Get decodes the JSON value at key into a T. Returns ErrMiss when absent.
func Get[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	b, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func Set[T any](ctx context.Context, s Store, key string, value T, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, b, ttl)
}
