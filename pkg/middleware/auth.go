package middleware

import (
	stderrors "errors"
	"strings"

	"conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// TokenValidator verifies a bearer credential
type TokenValidator interface {
	Validate(token string) (jwt.Identity, error)
}

// RequireAuth rejects requests without a valid bearer credential and attaches
// the caller identity to the request context.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := validator.Validate(bearerToken(c))
		if err != nil {
			c.Error(authError(err))
			c.Abort()
			return
		}
		attachIdentity(c, identity)
		c.Next()
	}
}

// OptionalAuth attaches an identity when a valid credential is present and
// otherwise lets the request through anonymously.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if identity, err := validator.Validate(bearerToken(c)); err == nil {
			attachIdentity(c, identity)
		}
		c.Next()
	}
}

func attachIdentity(c *gin.Context, identity jwt.Identity) {
	c.Request = c.Request.WithContext(jwt.WithIdentity(c.Request.Context(), identity))
	c.Set(logger.ContextKey, logger.FromGin(c).WithSubject(identity.Subject))
}

func authError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, jwt.ErrNoToken):
		return errors.NewUnauthorizedError(errors.CodeNoToken, "Authorization token required")
	case stderrors.Is(err, jwt.ErrExpiredToken):
		return errors.NewUnauthorizedError(errors.CodeTokenExpired, "Token has expired")
	case stderrors.Is(err, jwt.ErrInvalidToken):
		return errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid token")
	default:
		return errors.NewInternalServerError(errors.CodeAuthFailed, "Authentication failed").WithCause(err)
	}
}

// bearerToken extracts the credential from the Authorization header
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || strings.EqualFold(header, "Bearer") {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
