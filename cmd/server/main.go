package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/interview-genie/config"
	"github.com/ErlanBelekov/interview-genie/internal/breach"
	"github.com/ErlanBelekov/interview-genie/internal/cache"
	"github.com/ErlanBelekov/interview-genie/internal/email"
	"github.com/ErlanBelekov/interview-genie/internal/hashing"
	"github.com/ErlanBelekov/interview-genie/internal/health"
	"github.com/ErlanBelekov/interview-genie/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/interview-genie/internal/infrastructure/redisstore"
	ctxlog "github.com/ErlanBelekov/interview-genie/internal/log"
	"github.com/ErlanBelekov/interview-genie/internal/metrics"
	"github.com/ErlanBelekov/interview-genie/internal/ratelimit"
	httptransport "github.com/ErlanBelekov/interview-genie/internal/transport/http"
	"github.com/ErlanBelekov/interview-genie/internal/transport/http/handler"
	"github.com/ErlanBelekov/interview-genie/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	poolOpts := postgres.PoolOptions{
		AppName:  "interview-genie",
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}
	if cfg.SlogLevel() == slog.LevelDebug {
		poolOpts.QueryLogger = logger
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, poolOpts)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := postgres.Migrate(ctx, pool); err != nil {
			stop()
			pool.Close()
			log.Fatalf("migrate: %v", err)
		}
		logger.Info("migrations applied")
	}

	redisClient, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		stop()
		pool.Close()
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	store := redisstore.New(redisClient)

	// Storage
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	userCache := cache.NewUserCache(store)
	sessionCache := cache.NewSessionCache(store, cfg.SessionTTL)

	// Auth
	authUsecase := usecase.NewAuthUsecase(usecase.AuthDeps{
		Users:        userRepo,
		Tokens:       tokenRepo,
		Sessions:     sessionRepo,
		UserCache:    userCache,
		SessionCache: sessionCache,
		Limiter:      ratelimit.New(store),
		Passwords:    hashing.NewBcrypt(cfg.BcryptCost),
		Breach:       breach.NewChecker(cfg.BreachAPIURL, cfg.BreachTimeout),
		Email:        email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger),
		Logger:       logger,
	}, usecase.AuthConfig{
		JWTKey:     []byte(cfg.JWTSecret),
		SessionTTL: cfg.SessionTTL,
		AppBaseURL: cfg.AppBaseURL,
		LoginRule:  ratelimit.Rule{Action: "login", Max: cfg.LoginMaxAttempts, Window: cfg.LoginWindow},
		OTPRule:    ratelimit.Rule{Action: "otp", Max: cfg.OTPMaxAttempts, Window: cfg.OTPWindow},
		ResendRule: ratelimit.Rule{Action: "otp-resend", Max: cfg.OTPMaxAttempts, Window: cfg.OTPWindow},
		ForgotRule: ratelimit.Rule{Action: "forgot", Max: cfg.ForgotMaxAttempts, Window: cfg.ForgotWindow},
	})
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	// Users
	userUsecase := usecase.NewUserUsecase(userRepo, userCache, logger)
	userHandler := handler.NewUserHandler(userUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(map[string]health.Pinger{
		"postgres": pool,
		"redis":    store,
	}, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httptransport.NewRouter(logger, authHandler, userHandler, authUsecase),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
