package services

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"neverlost/internal/config"
	"neverlost/internal/models"
	"neverlost/internal/repository"
	"neverlost/internal/safego"
	"neverlost/internal/telemetry"
	"neverlost/pkg/utils"

	"github.com/mssola/user_agent"
)

// AccessEvent captures everything about a marker request that the audit
// worker needs once the request itself is gone.
type AccessEvent struct {
	At             time.Time
	Method         string
	URL            string
	Pathname       string
	Code           string
	Ext            string
	ClientIP       string
	Edge           EdgeMeta
	UserAgent      string
	AcceptLanguage string
	Referer        string

	UpstreamURL    string
	UpstreamOK     bool
	UpstreamStatus *int
	UpstreamError  *string
}

// NewAccessEvent snapshots the request. The caller fills in the upstream
// outcome and stamps At once the response is decided.
func NewAccessEvent(r *http.Request, code, ext string) AccessEvent {
	return AccessEvent{
		At:             time.Now(),
		Method:         r.Method,
		URL:            RequestURL(r),
		Pathname:       r.URL.EscapedPath(),
		Code:           code,
		Ext:            ext,
		ClientIP:       ClientIP(r),
		Edge:           ExtractEdgeMeta(r),
		UserAgent:      r.Header.Get("User-Agent"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		Referer:        r.Header.Get("Referer"),
	}
}

// AuditService persists access events in the background. Record never
// blocks; events that do not fit in the queue are dropped. Stop drains
// whatever is still queued.
type AuditService struct {
	repo      *repository.AccessLogRepository
	geoIP     *GeoIPService
	logger    *slog.Logger
	queue     chan AccessEvent
	batchSize int
	interval  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditService returns a disabled service when repo is nil.
func NewAuditService(cfg config.Config, repo *repository.AccessLogRepository, geoIP *GeoIPService, logger *slog.Logger) *AuditService {
	queueSize := cfg.AuditQueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	batchSize := cfg.AuditBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	interval := cfg.AuditFlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &AuditService{
		repo:      repo,
		geoIP:     geoIP,
		logger:    logger,
		queue:     make(chan AccessEvent, queueSize),
		batchSize: batchSize,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

func (s *AuditService) Enabled() bool {
	return s.repo != nil
}

func (s *AuditService) Record(ev AccessEvent) {
	if !s.Enabled() {
		return
	}
	select {
	case s.queue <- ev:
		telemetry.AuditQueueDepth.Set(float64(len(s.queue)))
	default:
		telemetry.AuditRecordsDroppedTotal.Inc()
		s.logger.Warn("Audit queue full, dropping access log")
	}
}

// Start launches the flush loop. It returns immediately.
func (s *AuditService) Start(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.wg.Add(1)
	go s.flushLoop(ctx)
}

// Stop ends the flush loop and writes every event still queued.
func (s *AuditService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	if s.Enabled() {
		s.drainAndFlush(nil)
	}
}

func (s *AuditService) flushLoop(ctx context.Context) {
	defer s.wg.Done()
	s.logger.Info("Audit worker starting")

	batch := make([]AccessEvent, 0, s.batchSize)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ctx.Done():
			s.drainAndFlush(batch)
			s.logger.Info("Audit worker stopping")
			return
		case <-s.stopCh:
			s.drainAndFlush(batch)
			s.logger.Info("Audit worker stopping")
			return
		}
	}
}

func (s *AuditService) drainAndFlush(batch []AccessEvent) {
	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		default:
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

// flush absorbs every failure. Log writes are never retried.
func (s *AuditService) flush(events []AccessEvent) {
	defer safego.Recover("audit flush")
	defer func() { telemetry.AuditQueueDepth.Set(float64(len(s.queue))) }()

	ctx := context.Background()
	if err := s.repo.Ready(ctx); err != nil {
		telemetry.AuditFlushErrorsTotal.Inc()
		s.logger.Error("Failed to prepare access log schema", "error", err, "count", len(events))
		return
	}

	rows := make([]models.AccessLog, 0, len(events))
	for _, ev := range events {
		rows = append(rows, s.buildRecord(ev))
	}

	n, err := s.repo.InsertBatch(ctx, rows)
	if err != nil {
		telemetry.AuditFlushErrorsTotal.Inc()
		s.logger.Error("Failed to write access logs", "error", err, "count", len(rows))
		return
	}
	telemetry.AuditRecordsWrittenTotal.Add(float64(n))
	s.logger.Debug("Flushed access logs", "count", n)
}

func (s *AuditService) buildRecord(ev AccessEvent) models.AccessLog {
	at := ev.At.UTC()
	rec := models.AccessLog{
		TsISO:          at.Format("2006-01-02T15:04:05.000Z"),
		TsMs:           at.UnixMilli(),
		Method:         ev.Method,
		URL:            ev.URL,
		Pathname:       nullable(ev.Pathname),
		Code:           nullable(ev.Code),
		Ext:            nullable(ev.Ext),
		ClientIP:       nullable(ev.ClientIP),
		UserAgent:      nullable(ev.UserAgent),
		AcceptLanguage: nullable(ev.AcceptLanguage),
		Referer:        nullable(ev.Referer),
		CFJSON:         ev.Edge.JSON(),
		UpstreamURL:    nullable(ev.UpstreamURL),
		UpstreamStatus: ev.UpstreamStatus,
		UpstreamError:  ev.UpstreamError,
	}
	if ev.UpstreamOK {
		rec.UpstreamOK = 1
	}
	if ev.ClientIP != "" {
		hash := utils.HashClientIP(ev.ClientIP)
		rec.ClientIPHash = &hash
	}

	s.enrichLocation(&rec, ev)
	enrichUserAgent(&rec, ev.UserAgent)
	return rec
}

// enrichLocation copies edge metadata verbatim into the edge columns and
// records the local GeoIP answer separately in the geo_* columns.
func (s *AuditService) enrichLocation(rec *models.AccessLog, ev AccessEvent) {
	edge := ev.Edge
	rec.Country = nullable(edge.Country)
	rec.Colo = nullable(edge.Colo)
	rec.City = nullable(edge.City)
	rec.Region = nullable(edge.Region)
	rec.Timezone = nullable(edge.Timezone)
	rec.HTTPProtocol = nullable(edge.HTTPProtocol)
	rec.TLSVersion = nullable(edge.TLSVersion)
	if edge.ASN != 0 {
		asn := edge.ASN
		rec.ASN = &asn
	}

	if s.geoIP == nil || ev.ClientIP == "" {
		return
	}
	geo := s.geoIP.Lookup(ev.ClientIP)
	rec.GeoCountry = nullable(geo.Country)
	rec.GeoRegion = nullable(geo.Region)
	rec.GeoCity = nullable(geo.City)
	rec.GeoTimezone = nullable(geo.Timezone)
	if geo.ASN != 0 {
		rec.GeoASN = &geo.ASN
	}
}

func enrichUserAgent(rec *models.AccessLog, raw string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	ua := user_agent.New(raw)

	browserName, browserVer := ua.Browser()
	rec.UABrowser = nullable(strings.TrimSpace(browserName + " " + browserVer))
	rec.UAOS = nullable(ua.OS())

	device := "Desktop"
	if ua.Bot() {
		device = "Bot"
	} else if ua.Mobile() {
		device = "Mobile"
	}
	rec.UADevice = &device
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
