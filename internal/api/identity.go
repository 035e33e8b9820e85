package api

import (
	"conversation-analytics/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// Whoami describes the caller as resolved from an optional bearer credential
type Whoami struct {
	Authenticated bool    `json:"authenticated"`
	Subject       string  `json:"subject,omitempty"`
	Email         string  `json:"email,omitempty"`
	Role          string  `json:"role,omitempty"`
	CompanyIDs    []int64 `json:"company_ids,omitempty"`
}

// IdentityHandler reports who the caller is
type IdentityHandler struct{}

// NewIdentityHandler creates an identity handler
func NewIdentityHandler() *IdentityHandler { return &IdentityHandler{} }

// RegisterRoutes mounts /me on rg. rg is expected to run optional auth so
// anonymous callers get a response instead of 401.
func (h *IdentityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
}

// Me returns the verified identity, or authenticated=false when none was presented
func (h *IdentityHandler) Me(c *gin.Context) {
	identity, found := jwt.IdentityFrom(c.Request.Context())
	if !found {
		ok(c, Whoami{})
		return
	}
	ok(c, Whoami{
		Authenticated: true,
		Subject:       identity.Subject,
		Email:         identity.Email,
		Role:          identity.Role(),
		CompanyIDs:    identity.CompanyIDs(),
	})
}
