package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"neverlost/internal/config"
	"neverlost/internal/handlers"
	"neverlost/internal/repository"
	"neverlost/internal/safego"
	"neverlost/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
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
	if cfg.AppEnv == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Access log store (optional)
	db, err := repository.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	var accessLogs *repository.AccessLogRepository
	if db != nil {
		if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
			logger.Info("Running database migrations...")
			if err := repository.RunMigrations(cfg.DatabaseURL, ""); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		accessLogs = repository.NewAccessLogRepository(db, cfg.SchemaMode)
	} else {
		logger.Warn("DATABASE_URL not set, access logging and the log API are disabled")
	}

	// 4. Upstream response cache: in-process, then redis when reachable
	memCache, err := services.NewMemoryResponseCache(cfg.UpstreamCacheEntries)
	if err != nil {
		return fmt.Errorf("failed to create response cache: %w", err)
	}
	cache := services.NewTieredResponseCache(cfg.CacheLifetime()).With("memory", memCache)

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = repository.InitRedis(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using in-process cache only", "error", err)
		} else {
			cache.With("redis", services.NewRedisResponseCache(rdb, logger))
		}
	}

	// 5. Initialize Services
	geoIPService := services.NewGeoIPService(cfg, logger)
	auditService := services.NewAuditService(cfg, accessLogs, geoIPService, logger)
	logQueryService := services.NewLogQueryService(accessLogs, cfg.CodeMaxLength())
	prober := services.NewUpstreamProber(cfg, cache, logger)
	resolver := services.NewUpstreamResolver(cfg)
	qrService := services.NewQRService(cfg.PublicBaseURL)
	rateLimiter := services.NewIPRateLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst, logger)

	// 6. Initialize Handler
	h := handlers.NewHandler(cfg, logger, db, rdb, resolver, prober, auditService, logQueryService, qrService)

	// 7. Setup Router
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := h.SetupRouter(rateLimiter)

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Background Context for workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	// Start Background Workers
	auditService.Start(workerCtx)
	safego.Go(func() {
		geoIPService.Init()
		geoIPService.StartUpdater()
	})
	safego.Go(func() { rateLimiter.StartCleanup(workerCtx, 10*time.Minute, 10000) })

	// Initializing server in a goroutine
	serverErr := make(chan error, 2)
	go func() {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var opsSrv *http.Server
	if cfg.MetricsAddr != "" {
		opsSrv = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: h.SetupOpsRouter(),
		}
		go func() {
			logger.Info("Starting ops server", "addr", cfg.MetricsAddr)
			if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("ops listener: %w", err)
			}
		}()
	}

	// Wait for context cancellation or server error
	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	}

	// Graceful shutdown timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if opsSrv != nil {
		if err := opsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Ops server forced to shutdown", "error", err)
		}
	}

	// In-flight requests are done; write whatever they queued.
	auditService.Stop()
	workerCancel()
	geoIPService.Stop()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("Server exiting")
	return runErr
}
