package api

import (
	"context"
	"strings"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/rollup"
	"conversation-analytics/backend/internal/service"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

// LeadReader serves leads and their transfer/discard extensions
type LeadReader interface {
	List(ctx context.Context, companyID int64, f service.LeadFilter) (query.Result[service.LeadView], error)
	Get(ctx context.Context, companyID, leadID int64) (service.LeadView, error)
}

// KnowledgeReader serves knowledge grouped by session
type KnowledgeReader interface {
	Grouped(ctx context.Context, companyID int64, f service.KnowledgeFilter) ([]rollup.KnowledgeGroup, error)
}

// LeadHandler handles lead and knowledge endpoints
type LeadHandler struct {
	leads     LeadReader
	knowledge KnowledgeReader
	limits    Limits
}

// NewLeadHandler creates a lead handler
func NewLeadHandler(leads LeadReader, knowledge KnowledgeReader, limits Limits) *LeadHandler {
	return &LeadHandler{leads: leads, knowledge: knowledge, limits: limits}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *LeadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/leads")
	g.GET("", h.List)
	g.GET("/transferred", h.listWithStatus(models.LeadTransferred))
	g.GET("/discarded", h.listWithStatus(models.LeadDiscarded))
	g.GET("/:id", h.Get)

	rg.GET("/knowledge", h.Knowledge)
}

// List returns leads, optionally filtered by the status query parameter
func (h *LeadHandler) List(c *gin.Context) {
	var status models.LeadStatus
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		parsed, valid := models.ParseLeadStatus(strings.ToLower(raw))
		if !valid {
			fail(c, apperrors.BadRequestWithDetails(apperrors.CodeInvalidStatus,
				"status must be one of transferred, discarded, pending", map[string]any{"status": raw}))
			return
		}
		status = parsed
	}
	h.list(c, status)
}

func (h *LeadHandler) listWithStatus(status models.LeadStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.list(c, status)
	}
}

func (h *LeadHandler) list(c *gin.Context, status models.LeadStatus) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	page, err := h.limits.page(c)
	if err != nil {
		fail(c, err)
		return
	}
	search, err := query.OptionalSearch(c.Query("search"))
	if err != nil {
		fail(c, err)
		return
	}
	dates, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.leads.List(c.Request.Context(), companyID, service.LeadFilter{
		Status: status,
		Search: search,
		Range:  dates,
		Page:   page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Get returns one lead
func (h *LeadHandler) Get(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	lead, err := h.leads.Get(c.Request.Context(), companyID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, lead)
}

// Knowledge returns knowledge entries grouped by session
func (h *LeadHandler) Knowledge(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	contactID, err := optionalID(c, "contact_id")
	if err != nil {
		fail(c, err)
		return
	}
	sessionID, err := optionalID(c, "session_id")
	if err != nil {
		fail(c, err)
		return
	}

	groups, err := h.knowledge.Grouped(c.Request.Context(), companyID, service.KnowledgeFilter{
		ContactID: contactID,
		SessionID: sessionID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, groups)
}
