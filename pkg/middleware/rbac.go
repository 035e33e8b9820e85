package middleware

import (
	"slices"

	"conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole returns middleware that requires the caller's role claim to
// be one of roles. It must run after RequireAuth.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := jwt.IdentityFrom(c.Request.Context())
		if !ok {
			c.Error(errors.NewUnauthorizedError(errors.CodeNoToken, "Authentication required"))
			c.Abort()
			return
		}

		if !slices.Contains(roles, identity.Role()) {
			c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation").
				WithDetails(map[string]any{"required_roles": roles}))
			c.Abort()
			return
		}

		c.Next()
	}
}
