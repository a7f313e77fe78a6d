package handlers

import (
	"errors"
	"net/http"

	"neverlost/internal/services"
	"neverlost/pkg/utils"

	"github.com/gin-gonic/gin"
)

// MarkerQR renders a QR code for the public URL of a marker.
func (h *Handler) MarkerQR(c *gin.Context) {
	code, ok := h.logQuery.NormalizeCode(c.Query("code"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "code is required"})
		return
	}

	target, err := h.qrService.MarkerURL(code, c.Query("ext"))
	if errors.Is(err, services.ErrUnknownExtension) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "unknown extension"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "message": "PUBLIC_BASE_URL not configured"})
		return
	}

	opts := services.QROptions{
		Content: target,
		Size:    utils.ClampInt(c.Query("size"), services.MinQRSize, services.MaxQRSize, services.DefaultQRSize),
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	}

	if c.Query("format") == "svg" {
		svg, err := h.qrService.GenerateQRCodeSVG(opts)
		if err != nil {
			h.logger.Error("QR generation failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "qr generation failed"})
			return
		}
		c.Header("X-Marker-URL", target)
		c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
		return
	}

	data, err := h.qrService.GenerateQRCode(opts)
	if err != nil {
		h.logger.Error("QR generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "qr generation failed"})
		return
	}
	c.Header("X-Marker-URL", target)
	c.Data(http.StatusOK, "image/png", data)
}
