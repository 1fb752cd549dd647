package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/cache"
	"github.com/redis/go-redis/v9"
)

// incrWindow increments KEYS[1] and starts its expiry on the first hit of a
// window. A key that somehow lost its TTL is given one again so a counter can
// never become permanent.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// setIfVersion writes ARGV[3..] to KEYS[2..] only while the counter at
// KEYS[1] still reads ARGV[1]. An absent counter reads as 0.
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
for i = 2, #KEYS do
	redis.call('SET', KEYS[i], ARGV[i + 1], 'PX', ARGV[2])
end
return 1
`)

// deleteAndBump deletes KEYS[2..] and increments the counter at KEYS[1] in
// one step, so a writer holding the old counter value can no longer write.
var deleteAndBump = redis.NewScript(`
for i = 2, #KEYS do
	redis.call('DEL', KEYS[i])
end
local v = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return v
`)

// Store implements cache.VersionedStore and ratelimit.Counter on a single Redis client.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Connect accepts a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 2 * time.Second
	opt.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// SetIfVersion writes values to keys with ttl unless the counter at
// versionKey has moved past version. Reports whether the write happened.
func (s *Store) SetIfVersion(ctx context.Context, versionKey string, version int64, keys []string, values [][]byte, ttl time.Duration) (bool, error) {
	if len(keys) != len(values) {
		return false, fmt.Errorf("redis set %d keys with %d values", len(keys), len(values))
	}
	args := make([]any, 0, len(values)+2)
	args = append(args, version, ttl.Milliseconds())
	for _, v := range values {
		args = append(args, v)
	}
	n, err := setIfVersion.Run(ctx, s.client, append([]string{versionKey}, keys...), args...).Int64()
	if err != nil {
		return false, fmt.Errorf("redis versioned set %s: %w", versionKey, err)
	}
	return n == 1, nil
}

// DeleteAndBump deletes keys and increments the counter at versionKey,
// which then lives for versionTTL.
func (s *Store) DeleteAndBump(ctx context.Context, versionKey string, versionTTL time.Duration, keys ...string) error {
	err := deleteAndBump.Run(ctx, s.client, append([]string{versionKey}, keys...), versionTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis invalidate %s: %w", versionKey, err)
	}
	return nil
}

func (s *Store) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := incrWindow.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

// TTL returns the time left on key, or zero when the key is absent or has no expiry.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis pttl %s: %w", key, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
