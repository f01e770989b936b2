// Command server runs the violation photo review backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/trafficlens/photo-review/backend/internal/auth"
	"github.com/trafficlens/photo-review/backend/internal/config"
	"github.com/trafficlens/photo-review/backend/internal/health"
	"github.com/trafficlens/photo-review/backend/internal/logger"
	"github.com/trafficlens/photo-review/backend/internal/markup"
	"github.com/trafficlens/photo-review/backend/internal/material"
	"github.com/trafficlens/photo-review/backend/internal/metrics"
	"github.com/trafficlens/photo-review/backend/internal/middleware"
	"github.com/trafficlens/photo-review/backend/internal/repository"
	"github.com/trafficlens/photo-review/backend/internal/storage"
	"github.com/trafficlens/photo-review/backend/internal/training"
	"github.com/trafficlens/photo-review/backend/internal/users"
)

const version = "1.0.0"

func main() {
	log := logger.New(logger.DefaultConfig())
	slog.SetDefault(log)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	authPool, err := setupAuthPool(cfg)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer authPool.Close()

	contentDB, err := sqlx.Connect("pgx", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer contentDB.Close()
	contentDB.SetMaxOpenConns(25)
	contentDB.SetMaxIdleConns(5)
	contentDB.SetConnMaxLifetime(5 * time.Minute)

	// Auth-side repositories run on pgxpool, content-side on sqlx.
	userRepo := repository.NewUserRepository(authPool)
	sessionRepo := repository.NewSessionRepository(authPool)
	loginLogRepo := repository.NewLoginLogRepository(authPool)
	materialRepo := repository.NewMaterialRepo(contentDB)
	markupRepo := repository.NewMarkupRepo(contentDB)
	trainingRepo := repository.NewTrainingRepo(contentDB)

	var photoStore material.PhotoStore
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewPhotoStore(&cfg.Storage)
		if err != nil {
			log.Error("failed to initialize photo store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		photoStore = store
		log.Info("photo store enabled", slog.String("bucket", cfg.Storage.Bucket))
	} else {
		log.Info("photo store disabled, previews stored inline")
	}

	authService := auth.NewService(userRepo, sessionRepo, loginLogRepo, cfg.Session.TTL, log)
	usersService := users.NewService(userRepo, loginLogRepo, log)
	materialService := material.NewService(materialRepo, photoStore, log)
	markupService := markup.NewService(markupRepo, materialRepo, log)

	var scorer training.ViolationScorer
	if os.Getenv("SCORER_STRATEGY") == "mock" {
		scorer = training.NewMockScorer(time.Now().UnixNano())
	} else {
		scorer = training.NewHeuristicScorer(trainingRepo)
	}
	trainingService := training.NewService(trainingRepo, materialRepo, scorer, log)

	authHandler := auth.NewHandler(authService, log)
	usersHandler := users.NewHandler(usersService, log)
	materialHandler := material.NewHandler(materialService, log)
	markupHandler := markup.NewHandler(markupService, log)
	trainingHandler := training.NewHandler(trainingService, log)

	authMiddleware := middleware.NewAuthMiddleware(authService, log)

	healthHandler := health.NewHandler(health.Config{
		AuthPool:  authPool,
		ContentDB: contentDB.DB,
		Version:   version,
	})

	statsCollector := metrics.NewDBStatsCollector(authPool, contentDB.DB)
	statsCollector.Start(15 * time.Second)
	defer statsCollector.Stop()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.StructuredLogger(log))
	r.Use(metrics.Middleware)

	// The review frontend is served from arbitrary origins, so CORS
	// stays wide open and preflights always succeed.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Readiness)
	r.Get("/live", healthHandler.Liveness)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAdmin)
			users.RegisterRoutes(r, usersHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			material.RegisterRoutes(r, materialHandler)
			markup.RegisterRoutes(r, markupHandler)
			training.RegisterRoutes(r, trainingHandler)
		})
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server exited")
}

// setupAuthPool creates the pgx connection pool used by the auth
// repositories.
func setupAuthPool(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
