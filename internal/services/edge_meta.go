package services

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// EdgeMeta is the network metadata a CDN edge attaches to a request. Field
// names follow the edge's own JSON so the stored blob reads the same.
type EdgeMeta struct {
	Country      string `json:"country,omitempty"`
	Colo         string `json:"colo,omitempty"`
	ASN          int64  `json:"asn,omitempty"`
	City         string `json:"city,omitempty"`
	Region       string `json:"region,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	HTTPProtocol string `json:"httpProtocol,omitempty"`
	TLSVersion   string `json:"tlsVersion,omitempty"`
	Ray          string `json:"ray,omitempty"`
}

// ExtractEdgeMeta reads Cloudflare visitor headers plus the connection's own
// protocol details.
func ExtractEdgeMeta(r *http.Request) EdgeMeta {
	h := r.Header
	meta := EdgeMeta{
		Country:      strings.TrimSpace(h.Get("CF-IPCountry")),
		City:         strings.TrimSpace(h.Get("CF-IPCity")),
		Region:       strings.TrimSpace(h.Get("CF-Region")),
		Timezone:     strings.TrimSpace(h.Get("CF-Timezone")),
		Ray:          strings.TrimSpace(h.Get("CF-Ray")),
		HTTPProtocol: r.Proto,
	}

	// CF-Ray is "<id>-<colo>".
	if i := strings.LastIndexByte(meta.Ray, '-'); i >= 0 && i < len(meta.Ray)-1 {
		meta.Colo = meta.Ray[i+1:]
	}

	if r.TLS != nil {
		meta.TLSVersion = tls.VersionName(r.TLS.Version)
	}

	return meta
}

// JSON serializes the metadata as captured. Empty metadata yields "{}".
func (m EdgeMeta) JSON() []byte {
	raw, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// ClientIP prefers CF-Connecting-IP, then the first X-Forwarded-For entry,
// then the connection's remote address.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequestURL rebuilds the absolute URL the client asked for.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
