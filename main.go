package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/cache"
	"github.com/storefront/backend/internal/client"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/db"
	"github.com/storefront/backend/internal/handler"
	"github.com/storefront/backend/internal/logger"
	"github.com/storefront/backend/internal/service"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
)

// @title Storefront API
// @version 1.0
// @description Account, session and password recovery endpoints of the storefront backend.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.New(cfg.App.LogLevel, cfg.App.Env)
	defer func() { _ = log.Sync() }()

	if cfg.App.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := db.NewPostgres(pool)

	tokens, err := service.NewTokenIssuer(cfg.Auth)
	if err != nil {
		return err
	}
	hasher := service.NewPasswordHasher(0)

	var (
		codes    service.CodeStore
		denylist service.TokenDenylist
	)
	if cfg.Redis.Enabled() {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeRedis(rdb, log)
		redisStore := cache.NewRedisStore(rdb, "storefront")
		codes, denylist = redisStore, redisStore
		log.Info("Using Redis for OTPs and token revocation", zap.String("addr", cfg.Redis.Addr))
	} else {
		memory := cache.NewMemoryStore()
		go memory.Run(ctx, sweepInterval)
		codes, denylist = memory, memory
		log.Warn("REDIS_ADDR not set, OTPs and revocations are kept in process memory")
	}

	var events service.EventPublisher
	if cfg.Kafka.Enabled() {
		publisher := client.NewKafkaPublisher(cfg.Kafka, log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("Failed to close Kafka writer", zap.Error(err))
			}
		}()
		events = publisher
	} else {
		events = client.NewLogPublisher(log)
		log.Warn("KAFKA_BROKERS not set, account events will only be logged")
	}

	var audit service.AuditNotifier
	if cfg.Slack.Enabled() {
		audit = client.NewSlackClient(cfg.Slack)
	}

	authSvc := service.NewAuthService(store, hasher, tokens,
		service.WithDenylist(denylist),
		service.WithEvents(events),
		service.WithLogger(log),
	)
	recovery, err := service.NewRecoveryService(store, hasher, codes, cfg.Auth, events, log)
	if err != nil {
		return err
	}
	admin := service.NewUserAdminService(store, audit, log)

	if err := authSvc.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := authSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}

	limiter := handler.NewIPRateLimiter(cfg.App.AuthRatePerMinute, log)
	go limiter.Run(ctx)

	router := handler.NewRouter(handler.RouterDeps{
		App:      cfg.App,
		Auth:     authSvc,
		Recovery: recovery,
		Admin:    admin,
		DB:       store,
		Limiter:  limiter,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func closeRedis(rdb *redis.Client, log *zap.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("Failed to close Redis client", zap.Error(err))
	}
}
