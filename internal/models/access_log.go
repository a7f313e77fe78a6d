package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// AccessLog is one marker request and its outcome. Rows are written once by
// the audit worker and never updated.
type AccessLog struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	TsISO string `gorm:"column:ts_iso;not null" json:"ts_iso"`
	TsMs  int64  `gorm:"column:ts_ms;not null;index:idx_access_logs_ts_ms" json:"ts_ms"`

	Method   string  `gorm:"not null" json:"method"`
	URL      string  `gorm:"column:url;not null" json:"url"`
	Pathname *string `gorm:"column:pathname" json:"pathname"`
	Code     *string `gorm:"index:idx_access_logs_code" json:"code"`
	Ext      *string `gorm:"index:idx_access_logs_ext" json:"ext"`

	ClientIP     *string `gorm:"column:client_ip" json:"client_ip"`
	ClientIPHash *string `gorm:"column:client_ip_hash" json:"client_ip_hash"`

	Country  *string `json:"country"`
	Colo     *string `json:"colo"`
	ASN      *int64  `gorm:"column:asn" json:"asn"`
	City     *string `json:"city"`
	Region   *string `json:"region"`
	Timezone *string `json:"timezone"`

	// Resolved from the local GeoIP databases. Kept apart from the edge
	// columns above, which only ever hold what the edge reported.
	GeoCountry  *string `gorm:"column:geo_country" json:"geo_country"`
	GeoRegion   *string `gorm:"column:geo_region" json:"geo_region"`
	GeoCity     *string `gorm:"column:geo_city" json:"geo_city"`
	GeoTimezone *string `gorm:"column:geo_timezone" json:"geo_timezone"`
	GeoASN      *int64  `gorm:"column:geo_asn" json:"geo_asn"`

	HTTPProtocol *string `gorm:"column:http_protocol" json:"http_protocol"`
	TLSVersion   *string `gorm:"column:tls_version" json:"tls_version"`

	UserAgent      *string `json:"user_agent"`
	AcceptLanguage *string `json:"accept_language"`
	Referer        *string `json:"referer"`

	// Derived from UserAgent when the row is written.
	UABrowser *string `gorm:"column:ua_browser" json:"ua_browser"`
	UAOS      *string `gorm:"column:ua_os" json:"ua_os"`
	UADevice  *string `gorm:"column:ua_device" json:"ua_device"`

	CFJSON datatypes.JSON `gorm:"column:cf_json;type:text" json:"cf_json"`

	UpstreamURL    *string `gorm:"column:upstream_url" json:"upstream_url"`
	UpstreamOK     int     `gorm:"column:upstream_ok" json:"upstream_ok"`
	UpstreamStatus *int    `gorm:"column:upstream_status" json:"upstream_status"`
	UpstreamError  *string `gorm:"column:upstream_error" json:"upstream_error"`
}

func (AccessLog) TableName() string {
	return "access_logs"
}

// AccessLogColumns lists every column a healthy access_logs table carries.
var AccessLogColumns = []string{
	"id", "ts_iso", "ts_ms",
	"method", "url", "pathname", "code", "ext",
	"client_ip", "client_ip_hash",
	"country", "colo", "asn", "city", "region", "timezone",
	"geo_country", "geo_region", "geo_city", "geo_timezone", "geo_asn",
	"http_protocol", "tls_version",
	"user_agent", "accept_language", "referer",
	"ua_browser", "ua_os", "ua_device",
	"cf_json",
	"upstream_url", "upstream_ok", "upstream_status", "upstream_error",
}

// MarshalJSON renders cf_json as the stored text rather than a nested
// object, so API clients decode it themselves.
func (a AccessLog) MarshalJSON() ([]byte, error) {
	type accessLog AccessLog
	var cf *string
	if raw := string(a.CFJSON); raw != "" && raw != "null" {
		cf = &raw
	}
	return json.Marshal(struct {
		accessLog
		CFJSON *string `json:"cf_json"`
	}{accessLog(a), cf})
}
