package api

import (
	"context"
	"net/http"

	"conversation-analytics/backend/internal/models"
	"conversation-analytics/backend/internal/service"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/middleware"
	"conversation-analytics/backend/pkg/query"

	"github.com/gin-gonic/gin"
)

// CompanyManager manages tenants
type CompanyManager interface {
	Create(ctx context.Context, in service.CompanyInput) (models.Company, error)
	List(ctx context.Context, f service.CompanyFilter) (query.Result[models.Company], error)
	Get(ctx context.Context, id int64) (models.Company, error)
	Update(ctx context.Context, id int64, in service.CompanyInput) (models.Company, error)
	Delete(ctx context.Context, id int64) error
}

// CompanyHandler handles tenant management. Reads are limited to the
// companies the entitlement makes visible to the caller.
type CompanyHandler struct {
	companies   CompanyManager
	limits      Limits
	entitlement middleware.Entitlement
}

// NewCompanyHandler creates a company handler. A nil entitlement shows every company.
func NewCompanyHandler(companies CompanyManager, limits Limits, entitlement middleware.Entitlement) *CompanyHandler {
	if entitlement == nil {
		entitlement = middleware.AllowAll{}
	}
	return &CompanyHandler{companies: companies, limits: limits, entitlement: entitlement}
}

func callerIdentity(c *gin.Context) jwt.Identity {
	identity, _ := jwt.IdentityFrom(c.Request.Context())
	return identity
}

// RegisterRoutes mounts read routes on rg and write routes behind the write middleware
func (h *CompanyHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	g := rg.Group("/companies")
	g.GET("", h.List)
	g.GET("/:id", h.Get)

	w := g.Group("", write...)
	w.POST("", h.Create)
	w.PUT("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
}

func bindCompany(c *gin.Context) (service.CompanyInput, error) {
	var in service.CompanyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		return in, apperrors.NewBadRequestError(apperrors.CodeInvalidInput, "request body must be a JSON object").WithCause(err)
	}
	return in, nil
}

// Create adds a tenant
func (h *CompanyHandler) Create(c *gin.Context) {
	in, err := bindCompany(c)
	if err != nil {
		fail(c, err)
		return
	}
	company, err := h.companies.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, company)
}

// List returns tenants ordered by name
func (h *CompanyHandler) List(c *gin.Context) {
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
	ids, all := h.entitlement.Visible(callerIdentity(c))
	res, err := h.companies.List(c.Request.Context(), service.CompanyFilter{
		Search:     search,
		IDs:        ids,
		Restricted: !all,
		Page:       page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, res)
}

// Get returns one tenant
func (h *CompanyHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.entitlement.Authorize(c.Request.Context(), callerIdentity(c), id); err != nil {
		fail(c, err)
		return
	}
	company, err := h.companies.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, company)
}

// Update changes a tenant's writable fields
func (h *CompanyHandler) Update(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	in, err := bindCompany(c)
	if err != nil {
		fail(c, err)
		return
	}
	company, err := h.companies.Update(c.Request.Context(), id, in)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, company)
}

// Delete removes a tenant with no dependent rows
func (h *CompanyHandler) Delete(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.companies.Delete(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: gin.H{"id": id, "deleted": true}})
}
