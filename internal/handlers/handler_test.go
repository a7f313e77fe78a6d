package handlers

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"neverlost/internal/config"
	"neverlost/internal/models"
	"neverlost/internal/repository"
	"neverlost/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestHandler builds a handler around cfg. When withStore is set the
// access log store is a fresh sqlite file; otherwise logging is disabled.
func setupTestHandler(t *testing.T, cfg config.Config, withStore bool) (*Handler, *gorm.DB) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var db *gorm.DB
	var repo *repository.AccessLogRepository
	if withStore {
		cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "access_logs.db")
		var err error
		db, err = repository.InitDB(cfg)
		require.NoError(t, err)
		repo = repository.NewAccessLogRepository(db, cfg.SchemaMode)
	}

	cache, err := services.NewMemoryResponseCache(16)
	require.NoError(t, err)

	geoIP := services.NewGeoIPService(cfg, logger)
	audit := services.NewAuditService(cfg, repo, geoIP, logger)
	prober := services.NewUpstreamProber(cfg, services.NewTieredResponseCache(cfg.CacheLifetime()).With("memory", cache), logger)

	// Use a dummy redis client (not connected) with no retries
	rdb := redis.NewClient(&redis.Options{
		Addr:       "localhost:1",
		MaxRetries: -1,
	})

	h := NewHandler(
		cfg,
		logger,
		db,
		rdb,
		services.NewUpstreamResolver(cfg),
		prober,
		audit,
		services.NewLogQueryService(repo, cfg.CodeMaxLength()),
		services.NewQRService(cfg.PublicBaseURL),
	)
	return h, db
}

func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return h.SetupRouter(nil)
}

// storedLogs flushes the audit queue and returns every row, oldest first.
func storedLogs(t *testing.T, h *Handler, db *gorm.DB) []models.AccessLog {
	t.Helper()
	h.auditService.Stop()

	var rows []models.AccessLog
	require.NoError(t, db.Order("id ASC").Find(&rows).Error)
	return rows
}
