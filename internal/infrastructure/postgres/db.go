package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

const (
	defaultMaxConns = 25
	defaultMinConns = 2
	connectTimeout  = 5 * time.Second
)

// PoolOptions tunes the pool behind every repository. Zero values take the
// package defaults.
type PoolOptions struct {
	// AppName is reported as application_name in pg_stat_activity unless the
	// URL already sets one.
	AppName  string
	MaxConns int32
	MinConns int32
	// QueryLogger, when set, receives every statement at debug level.
	QueryLogger *slog.Logger
}

func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.ConnConfig.Host, err)
	}
	return pool, nil
}

func poolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = defaultMaxConns
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = min(defaultMinConns, cfg.MaxConns)
	if opts.MinConns > 0 {
		cfg.MinConns = min(opts.MinConns, cfg.MaxConns)
	}

	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnLifetimeJitter = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = connectTimeout

	if opts.AppName != "" {
		if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
			cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
		}
	}

	if opts.QueryLogger != nil {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   slogTracer(opts.QueryLogger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	return cfg, nil
}

// slogTracer forwards pgx trace output to logger. Query arguments are dropped
// since they carry password and token digests.
func slogTracer(logger *slog.Logger) tracelog.LoggerFunc {
	logger = logger.With("component", "pgx")
	return func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]any, 0, 2*len(data))
		for k, v := range data {
			if k == "args" {
				continue
			}
			attrs = append(attrs, k, v)
		}
		logger.Log(ctx, pgxLevel(level), msg, attrs...)
	}
}

func pgxLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelError:
		return slog.LevelError
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
