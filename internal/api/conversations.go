package api

import (
	"context"

	"conversation-analytics/backend/internal/service"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

// ConversationReader serves session rollups and message history
type ConversationReader interface {
	List(ctx context.Context, companyID int64, f service.ConversationFilter) (query.Result[service.Conversation], error)
	Get(ctx context.Context, companyID, sessionID int64) (service.Conversation, error)
	Messages(ctx context.Context, companyID, sessionID int64, limit, offset int) (service.MessagePage, error)
}

// ContactLister serves per-contact rollups
type ContactLister interface {
	List(ctx context.Context, companyID int64, f service.ContactFilter) (query.Result[service.ContactSummary], error)
}

// ConversationHandler handles the conversation and contact list endpoints
type ConversationHandler struct {
	conversations ConversationReader
	contacts      ContactLister
	limits        Limits
}

// NewConversationHandler creates a conversation handler
func NewConversationHandler(conversations ConversationReader, contacts ContactLister, limits Limits) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, contacts: contacts, limits: limits}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *ConversationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/conversations")
	g.GET("", h.List)
	g.GET("/contacts", h.Contacts)
	g.GET("/:sessionId", h.Get)
	g.GET("/:sessionId/messages", h.Messages)
}

// List returns paginated session rollups
func (h *ConversationHandler) List(c *gin.Context) {
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
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.conversations.List(c.Request.Context(), companyID, service.ConversationFilter{
		Search: search,
		Status: status,
		Page:   page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Contacts returns paginated contact rollups; status matches the latest session
func (h *ConversationHandler) Contacts(c *gin.Context) {
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
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}

	res, err := h.contacts.List(c.Request.Context(), companyID, service.ContactFilter{
		Search: search,
		Status: status,
		Page:   page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Get returns one session rollup
func (h *ConversationHandler) Get(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		fail(c, err)
		return
	}
	conv, err := h.conversations.Get(c.Request.Context(), companyID, sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, conv)
}

// Messages returns a chronological window of a session's messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		fail(c, err)
		return
	}
	limit, err := query.ParseLimit(c.Query("limit"), defaultMessageLimit, maxMessageLimit)
	if err != nil {
		fail(c, err)
		return
	}
	offset, err := query.ParseOffset(c.Query("offset"))
	if err != nil {
		fail(c, err)
		return
	}

	page, err := h.conversations.Messages(c.Request.Context(), companyID, sessionID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, page)
}
