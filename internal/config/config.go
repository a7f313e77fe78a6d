package config

import (
	"log"
	"strings"
	"time"

	"neverlost/pkg/utils"

	"github.com/spf13/viper"
)

const (
	SchemaModeHeal     = "heal"
	SchemaModeRecreate = "recreate"
)

type Config struct {
	AppEnv        string `mapstructure:"APP_ENV"`
	Port          string `mapstructure:"PORT"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	// Internal listener for /health and /metrics. Empty disables it.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`

	// Upstream origins per proxied category. Empty disables the category.
	ImageURL    string `mapstructure:"IMAGE_URL"`
	FontURL     string `mapstructure:"FONT_URL"`
	ArchiveURL  string `mapstructure:"ARCHIVE_URL"`
	DocumentURL string `mapstructure:"DOCUMENT_URL"`

	// Kept as raw strings: out-of-range or garbage values fall back to
	// defaults through the accessor methods instead of failing startup.
	UpstreamTimeoutMS string `mapstructure:"UPSTREAM_TIMEOUT_MS"`
	CodeMaxLen        string `mapstructure:"CODE_MAX_LEN"`
	CacheTTL          string `mapstructure:"CACHE_TTL"`

	UpstreamMaxBodyBytes int64 `mapstructure:"UPSTREAM_MAX_BODY_BYTES"`
	UpstreamCacheEntries int   `mapstructure:"UPSTREAM_CACHE_ENTRIES"`

	LogAPIKey    string  `mapstructure:"LOG_API_KEY"`
	APIRateLimit float64 `mapstructure:"API_RATE_LIMIT"`
	APIRateBurst int     `mapstructure:"API_RATE_BURST"`

	SchemaMode         string        `mapstructure:"SCHEMA_MODE"`
	AuditQueueSize     int           `mapstructure:"AUDIT_QUEUE_SIZE"`
	AuditBatchSize     int           `mapstructure:"AUDIT_BATCH_SIZE"`
	AuditFlushInterval time.Duration `mapstructure:"AUDIT_FLUSH_INTERVAL"`

	MaxMindAccountID    string `mapstructure:"MAXMIND_ACCOUNT_ID"`
	MaxMindLicenseKey   string `mapstructure:"MAXMIND_LICENSE_KEY"`
	MaxMindEditionIDs   string `mapstructure:"MAXMIND_EDITION_IDS"`
	MaxMindDBPath       string `mapstructure:"GEOIP_DB_PATH"`
	MaxMindASNDBPath    string `mapstructure:"GEOIP_ASN_DB_PATH"`
	GeoIPUpdateSchedule string `mapstructure:"GEOIP_UPDATE_SCHEDULE"`
}

func LoadConfig() (config Config, err error) {
	viper.SetDefault("APP_ENV", "local")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("PUBLIC_BASE_URL", "")
	viper.SetDefault("METRICS_ADDR", "")

	viper.SetDefault("IMAGE_URL", "")
	viper.SetDefault("FONT_URL", "")
	viper.SetDefault("ARCHIVE_URL", "")
	viper.SetDefault("DOCUMENT_URL", "")

	viper.SetDefault("UPSTREAM_TIMEOUT_MS", "5000")
	viper.SetDefault("CODE_MAX_LEN", "128")
	viper.SetDefault("CACHE_TTL", "3600")
	viper.SetDefault("UPSTREAM_MAX_BODY_BYTES", 16<<20)
	viper.SetDefault("UPSTREAM_CACHE_ENTRIES", 256)

	viper.SetDefault("LOG_API_KEY", "")
	viper.SetDefault("API_RATE_LIMIT", 5)
	viper.SetDefault("API_RATE_BURST", 10)

	viper.SetDefault("SCHEMA_MODE", SchemaModeHeal)
	viper.SetDefault("AUDIT_QUEUE_SIZE", 1000)
	viper.SetDefault("AUDIT_BATCH_SIZE", 100)
	viper.SetDefault("AUDIT_FLUSH_INTERVAL", "1s")

	viper.SetDefault("MAXMIND_ACCOUNT_ID", "")
	viper.SetDefault("MAXMIND_LICENSE_KEY", "")
	viper.SetDefault("MAXMIND_EDITION_IDS", "GeoLite2-City GeoLite2-ASN")
	viper.SetDefault("GEOIP_DB_PATH", "./geoip/GeoLite2-City.mmdb")
	viper.SetDefault("GEOIP_ASN_DB_PATH", "./geoip/GeoLite2-ASN.mmdb")
	viper.SetDefault("GEOIP_UPDATE_SCHEDULE", "0 7 * * *")

	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	if err != nil {
		log.Printf("unable to decode into struct, %v", err)
		return
	}

	return
}

// UpstreamTimeout bounds a single upstream probe. Default 5s, clamped to [1s, 60s].
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(utils.ClampInt(c.UpstreamTimeoutMS, 1000, 60000, 5000)) * time.Millisecond
}

// CodeMaxLength caps tracking codes. Default 128, clamped to [16, 2048].
func (c Config) CodeMaxLength() int {
	return utils.ClampInt(c.CodeMaxLen, 16, 2048, 128)
}

// CacheLifetime is how long a fetched origin response stays cached.
// Default 1h, clamped to [60s, 24h].
func (c Config) CacheLifetime() time.Duration {
	return time.Duration(utils.ClampInt(c.CacheTTL, 60, 86400, 3600)) * time.Second
}

// StoreConfigured reports whether an access log store is bound. Without one
// both logging and the query API are disabled.
func (c Config) StoreConfigured() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// APIKey is the bearer credential for the log API; empty disables auth.
func (c Config) APIKey() string {
	return strings.TrimSpace(c.LogAPIKey)
}
