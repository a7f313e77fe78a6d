package handlers

import (
	"log/slog"

	"neverlost/internal/config"
	"neverlost/internal/services"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handler struct {
	cfg          config.Config
	logger       *slog.Logger
	db           *gorm.DB
	rdb          *redis.Client
	resolver     *services.UpstreamResolver
	prober       *services.UpstreamProber
	auditService *services.AuditService
	logQuery     *services.LogQueryService
	qrService    *services.QRService
}

// NewHandler wires the HTTP layer. db and rdb may be nil when no store or
// shared cache is configured.
func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	resolver *services.UpstreamResolver,
	prober *services.UpstreamProber,
	auditService *services.AuditService,
	logQuery *services.LogQueryService,
	qrService *services.QRService,
) *Handler {
	return &Handler{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		rdb:          rdb,
		resolver:     resolver,
		prober:       prober,
		auditService: auditService,
		logQuery:     logQuery,
		qrService:    qrService,
	}
}
