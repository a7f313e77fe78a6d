package services

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"neverlost/internal/config"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
	"github.com/robfig/cron/v3"
)

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

type asnReader interface {
	Lookup(ip net.IP, result any) error
	Close() error
}

type asnRecord struct {
	Number       uint   `maxminddb:"autonomous_system_number"`
	Organization string `maxminddb:"autonomous_system_organization"`
}

// GeoLocation is what the local MaxMind databases know about an address.
// Country is the ISO code so it lines up with edge-supplied values.
type GeoLocation struct {
	Country  string
	Region   string
	City     string
	Timezone string
	ASN      int64
}

// GeoIPService resolves addresses against GeoLite2 City and ASN databases
// and refreshes them on a cron schedule.
type GeoIPService struct {
	cfg    config.Config
	logger *slog.Logger

	mu   sync.RWMutex
	city cityReader
	asn  asnReader

	cron     *cron.Cron
	updateMu sync.Mutex
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(),
	}
}

func (s *GeoIPService) hasCredentials() bool {
	return s.cfg.MaxMindAccountID != "" && s.cfg.MaxMindLicenseKey != ""
}

// Init opens whatever databases are present. With MaxMind credentials set,
// a missing city database is downloaded first.
func (s *GeoIPService) Init() {
	if s.cfg.MaxMindDBPath == "" {
		return
	}

	if _, err := os.Stat(s.cfg.MaxMindDBPath); os.IsNotExist(err) {
		if !s.hasCredentials() {
			s.logger.Warn("GeoIP: database missing and MaxMind credentials not set. Lookups will be disabled.")
			return
		}

		dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			s.logger.Error("GeoIP: Failed to create directory", "dir", dbDir, "error", err)
			return
		}

		s.logger.Info("GeoIP: Database missing, downloading...")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: Initial download failed", "error", err)
		}
	}

	s.reloadReaders()
}

// StartUpdater schedules database refreshes. It does nothing without
// MaxMind credentials or with an invalid schedule.
func (s *GeoIPService) StartUpdater() {
	if !s.hasCredentials() {
		return
	}

	_, err := s.cron.AddFunc(s.cfg.GeoIPUpdateSchedule, func() {
		s.logger.Info("GeoIP: Running scheduled update...")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: Update failed", "error", err)
			return
		}
		s.reloadReaders()
	})
	if err != nil {
		s.logger.Error("GeoIP: Invalid update schedule", "schedule", s.cfg.GeoIPUpdateSchedule, "error", err)
		return
	}
	s.cron.Start()
}

// Stop halts scheduled updates and closes the readers.
func (s *GeoIPService) Stop() {
	<-s.cron.Stop().Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.city != nil {
		s.city.Close()
		s.city = nil
	}
	if s.asn != nil {
		s.asn.Close()
		s.asn = nil
	}
	s.logger.Info("GeoIP: Updater stopping")
}

func (s *GeoIPService) updateGeoDB() error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)

	if err := os.WriteFile(confPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	cmd := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate failed: %w, output: %s", err, string(output))
	}

	s.logger.Info("GeoIP: Database updated successfully")
	return nil
}

func (s *GeoIPService) reloadReaders() {
	var city cityReader
	if s.cfg.MaxMindDBPath != "" {
		reader, err := geoip2.Open(s.cfg.MaxMindDBPath)
		if err != nil {
			s.logger.Error("GeoIP: Failed to open database", "path", s.cfg.MaxMindDBPath, "error", err)
		} else {
			s.logger.Info("GeoIP: Loaded database", "path", s.cfg.MaxMindDBPath, "epoch", reader.Metadata().BuildEpoch)
			city = reader
		}
	}

	var asn asnReader
	if s.cfg.MaxMindASNDBPath != "" {
		reader, err := maxminddb.Open(s.cfg.MaxMindASNDBPath)
		if err != nil {
			s.logger.Warn("GeoIP: ASN database unavailable", "path", s.cfg.MaxMindASNDBPath, "error", err)
		} else {
			s.logger.Info("GeoIP: Loaded ASN database", "path", s.cfg.MaxMindASNDBPath, "epoch", reader.Metadata.BuildEpoch)
			asn = reader
		}
	}

	s.swapReaders(city, asn)
}

func (s *GeoIPService) swapReaders(city cityReader, asn asnReader) {
	s.mu.Lock()
	oldCity, oldASN := s.city, s.asn
	s.city, s.asn = city, asn
	s.mu.Unlock()

	if oldCity != nil {
		oldCity.Close()
	}
	if oldASN != nil {
		oldASN.Close()
	}
}

// Lookup returns an empty GeoLocation for invalid, loopback or private
// addresses and when no database is loaded.
func (s *GeoIPService) Lookup(ipStr string) GeoLocation {
	var loc GeoLocation

	ip := net.ParseIP(ipStr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return loc
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.city != nil {
		record, err := s.city.City(ip)
		if err != nil {
			s.logger.Debug("GeoIP: Lookup error", "error", err)
		} else {
			loc.Country = record.Country.IsoCode
			if len(record.Subdivisions) > 0 {
				loc.Region = record.Subdivisions[0].Names["en"]
			}
			loc.City = record.City.Names["en"]
			loc.Timezone = record.Location.TimeZone
		}
	}

	if s.asn != nil {
		var record asnRecord
		if err := s.asn.Lookup(ip, &record); err != nil {
			s.logger.Debug("GeoIP: ASN lookup error", "error", err)
		} else {
			loc.ASN = int64(record.Number)
		}
	}

	return loc
}
