package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/softdays/softdays/internal/config"
	"github.com/softdays/softdays/internal/database"
	"github.com/softdays/softdays/internal/handlers"
	"github.com/softdays/softdays/internal/logging"
	"github.com/softdays/softdays/internal/middleware"
	"github.com/softdays/softdays/internal/services"
	"github.com/softdays/softdays/internal/services/ai"
	"github.com/softdays/softdays/internal/services/video"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	// Initialize logger
	logger := logging.New()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting Soft Days server...")

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Run migrations
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	authService := services.NewAuthService(dbAdapter, redisAdapter)

	aiClient := ai.NewClient(cfg.AI)
	var videoSearcher services.VideoSearcher
	if cfg.YouTube.APIKey != "" {
		videoSearcher = video.NewYouTubeClient(cfg.YouTube.APIKey, cfg.YouTube.RegionCode)
	} else {
		logger.Warn("YouTube API key not set; quests will be created without videos")
	}
	questService := services.NewQuestService(dbAdapter, redisAdapter, aiClient, aiClient, videoSearcher)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(userService, authService, cfg.Server.Secure)
	questHandler := handlers.NewQuestHandler(questService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)

	authLimiter := middleware.NewAuthRateLimiter(redisDB.Client)
	questLimiter := middleware.NewQuestRateLimiter(redisDB.Client)
	apiLimiter := middleware.NewAPIRateLimiter(redisDB.Client)

	requireAuth := authMiddleware.RequireAuth

	// Set up router
	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", authLimiter.Limit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/auth/login", authLimiter.Limit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", apiLimiter.Limit(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("GET /api/auth/me", apiLimiter.Limit(requireAuth(http.HandlerFunc(authHandler.Me))))

	// Quest endpoints. Today and Prepare can trigger generation, so they
	// share the stricter quest limiter.
	mux.Handle("GET /api/quests/today", questLimiter.Limit(requireAuth(http.HandlerFunc(questHandler.Today))))
	mux.Handle("POST /api/quests/prepare", questLimiter.Limit(requireAuth(http.HandlerFunc(questHandler.Prepare))))
	mux.Handle("POST /api/quests/{id}/complete", apiLimiter.Limit(requireAuth(http.HandlerFunc(questHandler.Complete))))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Quest generation may retry the model several times; keep a higher
		// write timeout so clients get a JSON response instead of a dropped
		// connection.
		WriteTimeout: 95 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
