package api

import (
	"context"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/service"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

// StockReader serves the tenant's inventory
type StockReader interface {
	List(ctx context.Context, companyID int64, f service.StockFilter) (query.Result[models.StockItem], error)
	Get(ctx context.Context, companyID, stockID int64) (models.StockItem, error)
	Filters(ctx context.Context, companyID int64) (service.StockFilters, error)
}

// StockHandler handles the inventory endpoints
type StockHandler struct {
	stock  StockReader
	limits Limits
}

// NewStockHandler creates a stock handler
func NewStockHandler(stock StockReader, limits Limits) *StockHandler {
	return &StockHandler{stock: stock, limits: limits}
}

// RegisterRoutes mounts the handler on a tenant-guarded group
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/stock")
	g.GET("", h.List)
	g.GET("/filters", h.Filters)
	g.GET("/:id", h.Get)
}

// List returns filtered inventory
func (h *StockHandler) List(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	page, err := h.limits.page(c)
	if err != nil {
		fail(c, err)
		return
	}

	f := service.StockFilter{
		Brand:        c.Query("brand"),
		Model:        c.Query("model"),
		Location:     c.Query("location"),
		Category:     c.Query("category"),
		FuelType:     c.Query("fuel_type"),
		Transmission: c.Query("transmission"),
		Page:         page,
	}
	if f.MinPrice, err = optionalFloat(c, "min_price"); err != nil {
		fail(c, err)
		return
	}
	if f.MaxPrice, err = optionalFloat(c, "max_price"); err != nil {
		fail(c, err)
		return
	}
	if f.MinYear, err = optionalInt(c, "min_year"); err != nil {
		fail(c, err)
		return
	}
	if f.MaxYear, err = optionalInt(c, "max_year"); err != nil {
		fail(c, err)
		return
	}

	res, err := h.stock.List(c.Request.Context(), companyID, f)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Get returns one inventory item
func (h *StockHandler) Get(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	item, err := h.stock.Get(c.Request.Context(), companyID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, item)
}

// Filters returns the distinct values for the inventory filter controls
func (h *StockHandler) Filters(c *gin.Context) {
	companyID, found := tenant(c)
	if !found {
		return
	}
	filters, err := h.stock.Filters(c.Request.Context(), companyID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, filters)
}
