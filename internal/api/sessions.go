package api

import (
	"context"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/service"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

// SessionManager lists sessions and applies status transitions
type SessionManager interface {
	List(ctx context.Context, companyID int64, f service.SessionFilter) (query.Result[service.SessionSummary], error)
	UpdateStatus(ctx context.Context, companyID, sessionID int64, status models.SessionStatus) (models.Session, error)
}

// SessionHandler handles the session endpoints
type SessionHandler struct {
	sessions      SessionManager
	conversations ConversationReader
	limits        Limits
}

// NewSessionHandler creates a session handler
func NewSessionHandler(sessions SessionManager, conversations ConversationReader, limits Limits) *SessionHandler {
	return &SessionHandler{sessions: sessions, conversations: conversations, limits: limits}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/sessions")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id/status", h.UpdateStatus)
}

// List returns the tenant's sessions filtered by status and creation date
func (h *SessionHandler) List(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	page, err := h.limits.page(c)
	if err != nil {
		fail(c, err)
		return
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	dates, err := parseDateRange(c)
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.sessions.List(c.Request.Context(), companyID, service.SessionFilter{
		Status: status,
		Range:  dates,
		Page:   page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Get returns one session with its contact, latest message and lead flags
func (h *SessionHandler) Get(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), companyID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, conv)
}

type statusRequest struct {
	Status *int `json:"status"`
}

// UpdateStatus sets a session's status to an integer in 0..4
func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == nil {
		fail(c, apperrors.BadRequestWithDetails(apperrors.CodeInvalidStatus,
			"status must be an integer between 0 and 4", map[string]any{"status": nil}))
		return
	}

	session, err := h.sessions.UpdateStatus(c.Request.Context(), companyID, id, models.SessionStatus(*req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{
		"session":      session,
		"status_label": session.Status.String(),
	})
}
