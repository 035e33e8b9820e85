package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"conversation-analytics/backend/internal/service"
	"conversation-analytics/backend/internal/ws"
	apperrors "conversation-analytics/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// MetricsReader computes tenant activity aggregates
type MetricsReader interface {
	Overview(ctx context.Context, companyID int64, r service.DateRange) (service.Overview, error)
	Historical(ctx context.Context, companyID int64, months int) (service.Historical, error)
	Realtime(ctx context.Context, companyID int64) (service.Realtime, error)
}

// MetricsHandler handles the dashboard metrics endpoints
type MetricsHandler struct {
	metrics      MetricsReader
	hub          *ws.Hub
	pushInterval time.Duration
}

// NewMetricsHandler creates a metrics handler. A nil hub disables the stream.
func NewMetricsHandler(metrics MetricsReader, hub *ws.Hub, pushInterval time.Duration) *MetricsHandler {
	if pushInterval <= 0 {
		pushInterval = 10 * time.Second
	}
	return &MetricsHandler{metrics: metrics, hub: hub, pushInterval: pushInterval}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *MetricsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/metrics")
	g.GET("", h.Overview)
	g.GET("/historical", h.Historical)
	g.GET("/realtime", h.Realtime)
	if h.hub != nil {
		g.GET("/realtime/stream", h.Stream)
	}
}

// Overview returns totals, growth and a daily series for a date range
func (h *MetricsHandler) Overview(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	dates, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}
	overview, err := h.metrics.Overview(c.Request.Context(), companyID, dates)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, overview)
}

// Historical returns zero-filled monthly series
func (h *MetricsHandler) Historical(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	months := service.DefaultHistoryMonths
	if raw := strings.TrimSpace(c.Query("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput,
				"months must be an integer", map[string]any{"months": raw}))
			return
		}
		months = service.ClampMonths(n)
	}
	hist, err := h.metrics.Historical(c.Request.Context(), companyID, months)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, hist)
}

// Realtime returns live counters
func (h *MetricsHandler) Realtime(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	rt, err := h.metrics.Realtime(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, rt)
}

// Stream upgrades to a websocket and pushes realtime counters periodically
func (h *MetricsHandler) Stream(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	h.hub.Serve(c, companyID, h.pushInterval, func(ctx context.Context) (any, error) {
		return h.metrics.Realtime(ctx, companyID)
	})
}
