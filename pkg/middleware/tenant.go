package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"slices"
	"strconv"
	"strings"

	"conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TenantParam is the conventional name of the tenant identifier
const TenantParam = "company_id"

const maxTenantBody = 1 << 20

// TenantSource reads a candidate tenant identifier from one part of the request
type TenantSource func(c *gin.Context) string

// FromPath reads a route parameter
func FromPath(name string) TenantSource {
	return func(c *gin.Context) string { return c.Param(name) }
}

// FromQuery reads a query string parameter
func FromQuery(name string) TenantSource {
	return func(c *gin.Context) string { return c.Query(name) }
}

// FromBody reads a top-level JSON body field, restoring the body for the handler
func FromBody(field string) TenantSource {
	return func(c *gin.Context) string {
		if c.Request.Body == nil || c.Request.Method == "GET" {
			return ""
		}
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTenantBody))
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil || len(raw) == 0 {
			return ""
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var body map[string]any
		if dec.Decode(&body) != nil {
			return ""
		}
		switch v := body[field].(type) {
		case json.Number:
			return v.String()
		case string:
			return v
		}
		return ""
	}
}

// DefaultTenantSources checks path, then query, then body
var DefaultTenantSources = []TenantSource{
	FromPath(TenantParam),
	FromQuery(TenantParam),
	FromBody(TenantParam),
}

// Entitlement decides whether an identity may act on a tenant
type Entitlement interface {
	Authorize(ctx context.Context, identity jwt.Identity, tenantID int64) error
	// Visible lists the tenants identity may see; all reports unrestricted access.
	Visible(identity jwt.Identity) (ids []int64, all bool)
}

// AllowAll grants every authenticated identity access to every tenant
type AllowAll struct{}

// Authorize implements Entitlement
func (AllowAll) Authorize(context.Context, jwt.Identity, int64) error { return nil }

// Visible implements Entitlement
func (AllowAll) Visible(jwt.Identity) ([]int64, bool) { return nil, true }

// ClaimsEntitlement grants access to tenants listed in the credential's
// company_ids claim. AdminRole, when set, grants access to every tenant.
type ClaimsEntitlement struct {
	AdminRole string
}

// Authorize implements Entitlement
func (e ClaimsEntitlement) Authorize(_ context.Context, identity jwt.Identity, tenantID int64) error {
	if e.AdminRole != "" && identity.Role() == e.AdminRole {
		return nil
	}
	if slices.Contains(identity.CompanyIDs(), tenantID) {
		return nil
	}
	return errors.NewForbiddenError(errors.CodeTenantForbidden, "Access denied to this company").
		WithDetails(map[string]any{"company_id": tenantID})
}

// Visible implements Entitlement
func (e ClaimsEntitlement) Visible(identity jwt.Identity) ([]int64, bool) {
	if e.AdminRole != "" && identity.Role() == e.AdminRole {
		return nil, true
	}
	return identity.CompanyIDs(), false
}

// NewEntitlement selects an entitlement policy by name ("none" or "claims")
func NewEntitlement(mode string) Entitlement {
	if strings.EqualFold(mode, "claims") {
		return ClaimsEntitlement{AdminRole: "admin"}
	}
	return AllowAll{}
}

// TenantGuard resolves the tenant from the first source that yields a value,
// validates it, checks entitlement and stores it in the request context.
func TenantGuard(entitlement Entitlement, sources ...TenantSource) gin.HandlerFunc {
	if entitlement == nil {
		entitlement = AllowAll{}
	}
	if len(sources) == 0 {
		sources = DefaultTenantSources
	}

	return func(c *gin.Context) {
		var candidate string
		for _, source := range sources {
			if v := strings.TrimSpace(source(c)); v != "" {
				candidate = v
				break
			}
		}

		tenantID, appErr := ParseTenantID(candidate)
		if appErr != nil {
			c.Error(appErr)
			c.Abort()
			return
		}

		identity, _ := jwt.IdentityFrom(c.Request.Context())
		if err := entitlement.Authorize(c.Request.Context(), identity, tenantID); err != nil {
			c.Error(errors.FromError(err))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithTenantID(c.Request.Context(), tenantID))
		c.Set("tenantID", tenantID)
		c.Set(logger.ContextKey, logger.FromGin(c).WithTenant(tenantID))

		c.Next()
	}
}

// ParseTenantID validates the shape of a raw tenant identifier
func ParseTenantID(raw string) (int64, *errors.AppError) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" || raw == "undefined" {
		return 0, errors.NewBadRequestError(errors.CodeMissingTenant, "company_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.BadRequestWithDetails(errors.CodeInvalidTenant,
			"company_id must be a positive integer", map[string]any{"company_id": raw})
	}
	return id, nil
}

// TenantID returns the tenant resolved for this request
func TenantID(c *gin.Context) (int64, error) {
	if id, ok := TenantIDFrom(c.Request.Context()); ok {
		return id, nil
	}
	return 0, errors.NewBadRequestError(errors.CodeMissingTenant, "company_id is required")
}
