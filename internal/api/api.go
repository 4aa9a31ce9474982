package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/raj2399/Task-Evallo/internal/engine"
	"github.com/raj2399/Task-Evallo/internal/logs"
	"github.com/raj2399/Task-Evallo/internal/metrics"
	"github.com/raj2399/Task-Evallo/internal/query"
	"github.com/raj2399/Task-Evallo/internal/validate"
)

const transport = "http"

type Handler struct {
	Logs *logs.Service
}

// CreateLog validates the body and appends it. The stored record is echoed back.
func (h *Handler) CreateLog(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	rec, err := h.Logs.Ingest(raw)
	metrics.IngestTotal.WithLabelValues(transport, logs.Outcome(err)).Inc()
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid log schema", "details": verr.Details})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist log"})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// ListLogs returns one page of records matching the query string filters.
func (h *Handler) ListLogs(c *gin.Context) {
	params := query.ParseParams(c.Request.URL.Query())

	res, err := h.Logs.Search(params)
	metrics.QueryTotal.WithLabelValues(transport, logs.Outcome(err)).Inc()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve logs"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Export streams the whole collection as a zstd-compressed JSON array.
func (h *Handler) Export(c *gin.Context) {
	recs, err := h.Logs.Dump()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve logs"})
		return
	}

	c.Header("Content-Type", "application/zstd")
	c.Header("Content-Disposition", `attachment; filename="logs.json.zst"`)
	c.Status(http.StatusOK)
	if err := engine.WriteSnapshot(c.Writer, recs); err != nil {
		// Headers are gone already; all we can do is cut the stream short.
		_ = c.Error(err)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
