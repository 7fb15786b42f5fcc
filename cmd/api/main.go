package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/api"
	"github.com/Marga-Ghale/ora-template-studio/internal/api/handlers"
	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/config"
	"github.com/Marga-Ghale/ora-template-studio/internal/cron"
	"github.com/Marga-Ghale/ora-template-studio/internal/db"
	"github.com/Marga-Ghale/ora-template-studio/internal/draft"
	"github.com/Marga-Ghale/ora-template-studio/internal/logger"
	"github.com/Marga-Ghale/ora-template-studio/internal/notification"
	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/Marga-Ghale/ora-template-studio/internal/socket"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]api.HealthCheck{}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	if cfg.RunMigrations && cfg.DatabaseURL != "" {
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, zl); err != nil {
			zl.Fatal("Migration failed", zap.Error(err))
		}
	}

	// ============================================
	// Initialize PostgreSQL (pgxpool + sqlx)
	// ============================================
	var (
		pg    *db.PostgresDB
		repos *repository.Repositories
	)
	if cfg.DatabaseURL != "" {
		pg, err = db.NewPostgresDB(ctx, cfg.DatabaseURL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		repos = repository.NewRepositories(pg.SQL)
		healthChecks["postgres"] = pg.Ping
	}

	// ============================================
	// Initialize draft storage
	// ============================================
	var storage draft.Storage
	switch cfg.DraftStorage {
	case config.DraftStorageRedis:
		redisDB, err := db.NewRedisDB(ctx, cfg.RedisURL, zl)
		if err != nil {
			zl.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisDB.Close()
		storage = draft.NewRedisStorage(redisDB.Client, cfg.DraftTTL)
		healthChecks["redis"] = redisDB.Ping
	case config.DraftStoragePostgres:
		if pg == nil {
			zl.Fatal("Postgres draft storage needs DATABASE_URL")
		}
		storage = draft.NewPostgresStorage(pg.Pool)
	default:
		zl.Warn("Drafts are kept in memory and will not survive a restart")
		storage = draft.NewMemoryStorage()
	}

	realClock := clock.Real()
	drafts := draft.NewManager(storage, realClock, draft.Options{
		TTL:         cfg.DraftTTL,
		SavingDelay: cfg.DraftSavingDelay,
	}, zl)
	zl.Info("Draft storage ready", zap.String("storage", cfg.DraftStorage), zap.Duration("ttl", cfg.DraftTTL))

	// ============================================
	// Template backend client
	// ============================================
	backendClient := backend.NewClient(backend.Config{
		BaseURL:          cfg.BackendURL,
		Timeout:          cfg.BackendTimeout,
		TokenSecret:      cfg.BackendSecret,
		TokenIssuer:      cfg.BackendIssuer,
		TokenTTL:         cfg.BackendTokenTTL,
		RatePerSecond:    cfg.BackendRate,
		Burst:            cfg.BackendBurst,
		FetchConcurrency: cfg.FetchConcurrency,
	}, zl)

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub(zl)
	broadcaster := socket.NewBroadcaster(hub)
	notifier := notification.NewService(broadcaster, zl)

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Backend:  backendClient,
		Drafts:   drafts,
		Repos:    repos,
		Notifier: notifier,
		Clock:    realClock,
		Composition: service.CompositionOptions{
			FormAutosaveDelay:      cfg.FormAutosaveDelay,
			SelectionAutosaveDelay: cfg.SelectionAutosaveDelay,
		},
		Logger: zl,
	})

	hub.SetAuthorizer(func(userID, room string) bool {
		if room == socket.UserRoom(userID) {
			return true
		}
		sessionID, ok := socket.SessionIDFromRoom(room)
		if !ok {
			return false
		}
		owner, ok := services.Composition.SessionOwner(sessionID)
		return ok && owner == userID
	})
	go hub.Run(ctx)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	var purger cron.ActivityPurger
	if repos != nil {
		purger = services.Activity
	}
	scheduler := cron.NewScheduler(drafts, services.Composition, purger, cron.Config{
		IdleTimeout:       cfg.IdleTimeout,
		ActivityRetention: cfg.ActivityRetention,
	}, zl)
	if err := scheduler.Start(); err != nil {
		zl.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := api.NewRouter(api.RouterDeps{
		Handlers:     handlers.NewHandlers(services),
		Hub:          hub,
		WSHandler:    socket.NewHandler(hub, cfg.CORSOrigins),
		AllowOrigins: cfg.CORSOrigins,
		HealthChecks: healthChecks,
		Logger:       zl,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}

	zl.Info("Server exited", zap.Int("open_sessions", services.Composition.OpenSessions()))
}
