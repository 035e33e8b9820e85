package api

import (
	"context"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Searcher runs tenant-scoped free-text searches
type Searcher interface {
	Contacts(ctx context.Context, companyID int64, q string, limit int) ([]models.Contact, error)
	Conversations(ctx context.Context, companyID int64, q string, limit int) ([]service.ConversationHit, error)
	Leads(ctx context.Context, companyID int64, q string, limit int) ([]service.LeadView, error)
	Stock(ctx context.Context, companyID int64, q string, limit int) ([]models.StockItem, error)
	Global(ctx context.Context, companyID int64, q string, limit int) (service.GlobalResults, error)
}

// SearchHandler handles the search endpoints
type SearchHandler struct {
	search Searcher
	limits Limits
}

// NewSearchHandler creates a search handler
func NewSearchHandler(search Searcher, limits Limits) *SearchHandler {
	return &SearchHandler{search: search, limits: limits}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *SearchHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/search")
	g.GET("/contacts", searchEndpoint(h, h.search.Contacts))
	g.GET("/conversations", searchEndpoint(h, h.search.Conversations))
	g.GET("/leads", searchEndpoint(h, h.search.Leads))
	g.GET("/stock", searchEndpoint(h, h.search.Stock))
	g.GET("/global", searchEndpoint(h, h.search.Global))
}

func searchEndpoint[T any](h *SearchHandler, run func(context.Context, int64, string, int) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, found := tenant(c)
		if !found {
			return
		}
		limit, err := h.limits.search(c)
		if err != nil {
			fail(c, err)
			return
		}
		q := c.Query("q")
		results, err := run(c.Request.Context(), companyID, q, limit)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"query": q, "results": results})
	}
}
