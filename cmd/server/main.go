package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"
	"github.com/Ashutosh-1945/GateKeeper/internal/handlers"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
	"github.com/Ashutosh-1945/GateKeeper/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func Run(ctx context.Context) error {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Setup Logger
	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Initialize Database
	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 4. Schema
	if err := repository.PrepareSchema(db, cfg, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// 5. Record store, with the Redis cache in front when Redis is reachable
	var store repository.LinkStore = repository.NewLinkRepository(db)
	rdb, err := repository.InitRedis(cfg.RedisURL, cfg.RedisPassword, 0)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", "error", err)
	} else {
		defer rdb.Close()
		store = repository.NewCachedLinkStore(store, rdb, cfg.CacheTTL, logger)
	}

	// 6. Initialize Services
	auditService := services.NewAuditService(db, logger)
	geoIPService := services.NewGeoIPService(cfg, logger)
	statsService := services.NewStatsService(store, logger, geoIPService, cfg.ClickHashSalt)
	verifier := services.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every caller is treated as a guest")
	}
	adminPolicy := services.NewEmailAllowList(cfg.AdminEmails)

	allocator := services.NewSlugAllocator(store, cfg.SlugLength)
	linkService := services.NewLinkService(store, allocator, auditService, logger, cfg.PublicBaseURL, cfg.StoreTimeout)
	accessGate := services.NewAccessGate(store, statsService, services.NewPrefetchDetector(), verifier, auditService, logger, cfg.StoreTimeout)
	reaper := services.NewReaper(store, rdb, auditService, logger, cfg.ReaperInterval, cfg.StoreTimeout)
	qrService := services.NewQRService()
	rateLimiter := services.NewIPRateLimiter(rate.Limit(5), 10, logger)

	// 7. Initialize Handler
	h := handlers.NewHandler(cfg, logger, linkService, accessGate, auditService, qrService, verifier, adminPolicy)

	// 8. Setup Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := h.SetupRouter(rateLimiter)

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go auditService.Start(workerCtx)
	go statsService.Start(workerCtx)
	go reaper.Start(workerCtx)
	go func() {
		geoIPService.Init()
		geoIPService.StartUpdater(workerCtx)
	}()
	go rateLimiter.StartCleanup(workerCtx, 10*time.Minute)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	workerCancel()
	// Give the writers a moment to finish the entry in hand.
	time.Sleep(100 * time.Millisecond)
	geoIPService.Close()

	logger.Info("Server exiting")
	return nil
}
