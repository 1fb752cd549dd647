package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL   string `env:"DATABASE_URL,required" validate:"required"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0" validate:"required"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS"   envDefault:"25" validate:"min=1"`
	DBMinConns    int32  `env:"DB_MIN_CONNS"   envDefault:"2"  validate:"min=0,ltefield=DBMaxConns"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret    string        `env:"JWT_SECRET,required"   validate:"required,min=32"`
	SessionTTL   time.Duration `env:"SESSION_TTL"           envDefault:"720h" validate:"min=1m"`
	ResendAPIKey string        `env:"RESEND_API_KEY"        validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string        `env:"RESEND_FROM"           validate:"required_if=Env production,required_if=Env staging"`
	AppBaseURL   string        `env:"APP_BASE_URL"          envDefault:"http://localhost:3000" validate:"url"`

	BcryptCost    int           `env:"BCRYPT_COST"    envDefault:"12" validate:"min=10,max=14"`
	BreachAPIURL  string        `env:"BREACH_API_URL" envDefault:"https://api.pwnedpasswords.com" validate:"url"`
	BreachTimeout time.Duration `env:"BREACH_TIMEOUT" envDefault:"3s"`

	LoginMaxAttempts  int           `env:"LOGIN_MAX_ATTEMPTS"  envDefault:"5"   validate:"min=1"`
	LoginWindow       time.Duration `env:"LOGIN_WINDOW"        envDefault:"15m" validate:"min=1s"`
	OTPMaxAttempts    int           `env:"OTP_MAX_ATTEMPTS"    envDefault:"5"   validate:"min=1"`
	OTPWindow         time.Duration `env:"OTP_WINDOW"          envDefault:"5m"  validate:"min=1s"`
	ForgotMaxAttempts int           `env:"FORGOT_MAX_ATTEMPTS" envDefault:"5"   validate:"min=1"`
	ForgotWindow      time.Duration `env:"FORGOT_WINDOW"       envDefault:"1h"  validate:"min=1s"`

	CleanupCron string `env:"CLEANUP_CRON" envDefault:"@every 15m" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel maps LOG_LEVEL onto slog levels. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
