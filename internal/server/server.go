package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"catalog-mirror/internal/config"
	"catalog-mirror/internal/database"
	custommiddleware "catalog-mirror/internal/middleware"
	"catalog-mirror/internal/repository"
	"catalog-mirror/internal/service"
	"catalog-mirror/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP surface is built on.
// Redis is optional; without it sync triggers are not rate limited.
type Dependencies struct {
	DB     database.Service
	Repos  repository.Repositories
	UoW    repository.UnitOfWork
	Engine transport.SyncEngine
	Redis  *redis.Client
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      NewRouter(cfg, logger, deps),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// NewRouter builds the operator API.
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB == nil {
			custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		health := deps.DB.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})

	catalog := service.NewCatalogService(deps.Repos)
	edits := service.NewEditService(deps.UoW, nil, logger.Named("edit"))

	var mutating []func(http.Handler) http.Handler
	var authenticate []func(http.Handler) http.Handler
	if cfg.JWT.Secret != "" {
		tokens := service.NewTokenService(cfg.JWT.Secret)
		authenticate = append(authenticate, custommiddleware.AuthMiddleware(tokens, logger))
		mutating = append(mutating, custommiddleware.RequireOperator(logger))
	} else {
		logger.Warn("JWT_SECRET not set, operator API is unauthenticated")
	}

	trigger := append([]func(http.Handler) http.Handler{}, mutating...)
	if deps.Redis != nil && cfg.RateLimit.Requests > 0 {
		trigger = append(trigger, custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "catalog_mirror:sync",
		}, logger))
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(custommiddleware.ValidationMiddleware(logger))
		r.Use(authenticate...)

		transport.NewCatalogHandler(catalog, edits, logger.Named("catalog")).RegisterRoutes(r, mutating...)
		transport.NewLedgerHandler(catalog, logger.Named("ledger")).RegisterRoutes(r)
		transport.NewSyncHandler(deps.Engine, logger.Named("sync")).RegisterRoutes(r, trigger...)
	})

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}

	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}

// PingRedis reports whether the rate limiter backend is reachable.
func PingRedis(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
