// Package janitor deletes expired reset tokens, OTP codes and sessions on a
// cron schedule. Lookups already ignore expired rows, so the janitor only
// bounds table growth; a missed run changes no behaviour.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Purger is satisfied by the postgres token and session repositories.
type Purger interface {
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}

type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Janitor struct {
	tokens   Purger
	sessions SessionPurger
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// New parses spec as a standard cron expression or descriptor ("@every 15m").
// Expressions that never fire, such as "0 0 30 2 *", are rejected.
func New(tokens Purger, sessions SessionPurger, spec string, logger *slog.Logger) (*Janitor, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cleanup schedule %q: %w", spec, err)
	}
	if sched.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("cleanup schedule %q never fires", spec)
	}
	return &Janitor{
		tokens:   tokens,
		sessions: sessions,
		schedule: sched,
		logger:   logger.With("component", "janitor"),
		now:      time.Now,
	}, nil
}

// Start runs one cycle immediately, then one per schedule tick until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started")
	j.RunOnce(ctx)

	for {
		next := j.schedule.Next(j.now())
		if next.IsZero() {
			j.logger.Error("cleanup schedule has no next run, stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("janitor shut down")
			return
		case <-timer.C:
			j.RunOnce(ctx)
		}
	}
}

// Result holds the rows deleted by one cycle.
type Result struct {
	ResetTokens int64
	OTPs        int64
	Sessions    int64
}

// RunOnce deletes every expired row. A failing kind is logged and the
// others still run.
func (j *Janitor) RunOnce(ctx context.Context) Result {
	start := time.Now()
	defer func() {
		metrics.JanitorCycleDuration.Observe(time.Since(start).Seconds())
	}()

	now := j.now()
	var res Result
	res.ResetTokens = j.purge(ctx, "reset_token", now, j.tokens.DeleteExpiredResetTokens)
	res.OTPs = j.purge(ctx, "otp", now, j.tokens.DeleteExpiredOTPs)
	res.Sessions = j.purge(ctx, "session", now, j.sessions.DeleteExpired)

	if res.ResetTokens+res.OTPs+res.Sessions > 0 {
		j.logger.InfoContext(ctx, "purged expired rows",
			"reset_tokens", res.ResetTokens, "otps", res.OTPs, "sessions", res.Sessions)
	}
	return res
}

func (j *Janitor) purge(ctx context.Context, kind string, now time.Time, fn func(context.Context, time.Time) (int64, error)) int64 {
	n, err := fn(ctx, now)
	if err != nil {
		j.logger.ErrorContext(ctx, "purge expired", "kind", kind, "error", err)
		return 0
	}
	metrics.JanitorPurgedTotal.WithLabelValues(kind).Add(float64(n))
	return n
}
