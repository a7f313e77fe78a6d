package handlers

import (
	"net/http"
	"time"

	"neverlost/internal/marker"
	"neverlost/internal/services"
	"neverlost/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const upstreamNotConfigured = "upstream_url_not_configured"

// ServeMarker answers GET and HEAD /marker/<code>.<ext>. The client only
// ever sees the resource, an empty body or a generic 429; the reason for a
// rejection goes to the access log.
func (h *Handler) ServeMarker(c *gin.Context) {
	code, ext, ok := marker.Parse(c.Request.URL.EscapedPath())
	if !ok {
		h.Empty(c)
		return
	}
	code, ok = marker.NormalizeCode(code, h.cfg.CodeMaxLength())
	if !ok {
		h.Empty(c)
		return
	}

	category := marker.Classify(ext)
	ev := services.NewAccessEvent(c.Request, code, ext)

	if category.AlwaysEmpty() {
		status := http.StatusOK
		ev.UpstreamOK = true
		ev.UpstreamStatus = &status
		h.record(ev)

		telemetry.MarkerRequestsTotal.WithLabelValues(string(category), "empty").Inc()
		setMarkerHeaders(c, marker.ContentType(ext))
		c.Status(http.StatusOK)
		return
	}

	origin, ok := h.resolver.Resolve(category)
	if !ok {
		reason := upstreamNotConfigured
		ev.UpstreamError = &reason
		h.record(ev)

		telemetry.MarkerRequestsTotal.WithLabelValues(string(category), "rejected").Inc()
		tooManyRequests(c, "Upstream resource not available")
		return
	}

	probe := h.prober.Probe(c.Request.Context(), origin)

	ev.UpstreamURL = origin
	ev.UpstreamOK = probe.OK
	ev.UpstreamStatus = probe.Status
	ev.UpstreamError = probe.Err
	h.record(ev)

	if !probe.OK {
		telemetry.MarkerRequestsTotal.WithLabelValues(string(category), "rejected").Inc()
		tooManyRequests(c, "Upstream temporarily unavailable")
		return
	}

	telemetry.MarkerRequestsTotal.WithLabelValues(string(category), "relayed").Inc()
	contentType := marker.ContentType(ext)
	setMarkerHeaders(c, contentType)
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, contentType, probe.Body)
}

// record stamps the event with the response time and queues it.
func (h *Handler) record(ev services.AccessEvent) {
	ev.At = time.Now()
	h.auditService.Record(ev)
}

// Empty is the catch-all response: 200 with no body.
func (h *Handler) Empty(c *gin.Context) {
	c.Status(http.StatusOK)
}

func setNoStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
}

func setMarkerHeaders(c *gin.Context, contentType string) {
	setNoStore(c)
	c.Header("Content-Type", contentType)
}

func tooManyRequests(c *gin.Context, message string) {
	setMarkerHeaders(c, "application/json; charset=utf-8")
	c.JSON(http.StatusTooManyRequests, gin.H{
		"ok":      false,
		"error":   "too many requests",
		"message": message,
	})
}
