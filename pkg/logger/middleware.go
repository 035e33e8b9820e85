package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin key the request-scoped logger is stored under
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Set(ContextKey, logger.WithRequestID(requestID))

		start := time.Now()
		c.Next()

		// auth and tenant middleware enrich the stored logger, so re-read it
		reqLogger := FromGin(c)
		reqLogger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// FromGin returns the request-scoped logger, or the global one outside a request
func FromGin(c *gin.Context) *Logger {
	if l, exists := c.Get(ContextKey); exists {
		if log, ok := l.(*Logger); ok {
			return log
		}
	}
	return GetGlobal()
}
