package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"catalog-mirror/internal/clock"
	"catalog-mirror/internal/config"
	"catalog-mirror/internal/database"
	"catalog-mirror/internal/logger"
	"catalog-mirror/internal/reconcile"
	"catalog-mirror/internal/remote"
	"catalog-mirror/internal/repository"
	"catalog-mirror/internal/server"
	"catalog-mirror/migrations"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, scheduler *reconcile.Scheduler, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	done <- true
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting catalog mirror API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	dbService, err := database.New(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	db := dbService.DB()

	health := dbService.Health(context.Background())
	log.Info("Database health check", zap.Any("health", health))

	if err := database.RunMigrations(db, migrations.FS, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := server.PingRedis(context.Background(), redisClient); err != nil {
			// The limiter fails open, so keep serving.
			log.Warn("Redis unreachable, sync rate limiting degraded", zap.Error(err))
		}
	}

	if err := cfg.Remote.Validate(); err != nil {
		log.Warn("Remote catalog not configured, syncs will fail until it is", zap.Error(err))
	}

	repos := repository.NewRepositories(db)
	uow := repository.NewUnitOfWork(db)
	client := remote.New(cfg.Remote, log.Named("remote"))

	engine := reconcile.NewEngine(client, repos, uow, clock.Real{}, log.Named("reconcile"), reconcile.Options{
		PageSize:        cfg.Remote.PageSize,
		PushConcurrency: cfg.Sync.PushConcurrency,
		MaxRetries:      cfg.Remote.MaxRetries,
	})

	scheduler := reconcile.NewScheduler(engine, cfg.Sync.PullInterval, cfg.Sync.PushInterval, log.Named("scheduler"))
	scheduler.Start(context.Background())

	srv := server.NewServer(cfg, log, server.Dependencies{
		DB:     dbService,
		Repos:  repos,
		UoW:    uow,
		Engine: engine,
		Redis:  redisClient,
	})

	done := make(chan bool, 1)

	go gracefulShutdown(srv, scheduler, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	log.Info("Graceful shutdown complete")
}
