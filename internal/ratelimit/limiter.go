// Package ratelimit caps attempts per key inside a fixed window that opens on
// the first attempt. Counting happens in a shared store with an atomic
// increment, so limits hold across server replicas.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/metrics"
)

const keyPrefix = "ratelimit:"

// MinWindow is the shortest window a counter can be given. The store expires
// keys with millisecond precision, so anything shorter would drop the counter
// on every hit.
const MinWindow = time.Millisecond

// Counter is satisfied by *redisstore.Store.
type Counter interface {
	// IncrWindow atomically increments key, starting a window-long expiry on
	// the first increment, and returns the post-increment count.
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}

// Rule is an attempt ceiling for one action.
type Rule struct {
	Action string
	Max    int
	Window time.Duration
}

type Limiter struct {
	counter Counter
}

func New(counter Counter) *Limiter {
	return &Limiter{counter: counter}
}

// Key joins an action with the dimensions it is limited on, e.g.
// Key("login", email, ip) = "login:<email>:<ip>".
func Key(action string, parts ...string) string {
	return action + ":" + strings.Join(parts, ":")
}

// Check records an attempt on key and reports whether it is within maxAttempts for
// the current window. A never-seen key starts at zero. A window shorter than
// MinWindow is an error, never an allowance.
func (l *Limiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) (bool, error) {
	if window < MinWindow {
		return false, fmt.Errorf("rate limit check %s: window %v is shorter than %v", key, window, MinWindow)
	}
	n, err := l.counter.IncrWindow(ctx, keyPrefix+key, window)
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	return n <= int64(maxAttempts), nil
}

// Clear resets key. Clearing an absent key is a no-op.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.counter.Delete(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("rate limit clear: %w", err)
	}
	return nil
}

// RetryAfter is the time left until key's window closes. Zero for a clear key.
func (l *Limiter) RetryAfter(ctx context.Context, key string) (time.Duration, error) {
	d, err := l.counter.TTL(ctx, keyPrefix+key)
	if err != nil {
		return 0, fmt.Errorf("rate limit ttl: %w", err)
	}
	return d, nil
}

// Enforce runs Check for rule and turns a rejection into a
// *domain.RateLimitedError. Store failures are returned as-is so the caller
// decides between failing open and failing closed.
func (l *Limiter) Enforce(ctx context.Context, rule Rule, parts ...string) error {
	key := Key(rule.Action, parts...)
	allowed, err := l.Check(ctx, key, rule.Max, rule.Window)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	metrics.RateLimitedTotal.WithLabelValues(rule.Action).Inc()

	retry, err := l.RetryAfter(ctx, key)
	if err != nil || retry <= 0 {
		retry = rule.Window
	}
	return &domain.RateLimitedError{RetryAfter: retry}
}

// Reset clears the counter for rule and parts.
func (l *Limiter) Reset(ctx context.Context, rule Rule, parts ...string) error {
	return l.Clear(ctx, Key(rule.Action, parts...))
}
