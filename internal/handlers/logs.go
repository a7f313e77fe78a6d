package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) RecentLogs(c *gin.Context) {
	q := h.logQuery.ParseRecentQuery(c.Query("code"), c.Query("limit"), c.Query("offset"))

	rows, err := h.logQuery.Recent(c.Request.Context(), q)
	if err != nil {
		h.queryFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"code":   q.Code,
		"limit":  q.Limit,
		"offset": q.Offset,
		"count":  len(rows),
		"items":  rows,
	})
}

func (h *Handler) CountLogs(c *gin.Context) {
	code, ok := h.logQuery.NormalizeCode(c.Query("code"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "code is required"})
		return
	}

	count, err := h.logQuery.Count(c.Request.Context(), code)
	if err != nil {
		h.queryFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "code": code, "count": count})
}

func (h *Handler) queryFailed(c *gin.Context, err error) {
	h.logger.Error("Access log query failed", "error", err, "path", c.FullPath())
	c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "message": "query failed"})
}
