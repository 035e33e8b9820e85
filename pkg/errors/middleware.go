package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"conversation-analytics/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that catches and formats application errors.
// When exposeTrace is set (development mode) the captured stack is attached to the body.
func ErrorHandler(exposeTrace bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// Get the first error
		err := c.Errors[0].Err

		// Convert to AppError if it's not already
		appErr := FromError(err)

		log := requestLogger(c)
		args := []any{
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		}
		if appErr.Cause != nil {
			args = append(args, "cause", appErr.Cause.Error())
		}
		if appErr.StatusCode >= http.StatusInternalServerError {
			log.Error("Request error", args...)
		} else {
			log.Warn("Request rejected", args...)
		}

		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if appErr.Details != nil {
			body["details"] = appErr.Details
		}
		if exposeTrace {
			body["trace"] = appErr.Stack
			if appErr.Cause != nil {
				body["cause"] = appErr.Cause.Error()
			}
		}

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"success": false,
			"error":   body,
		})
	}
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs the error with the request ID and user ID if available
func RecoveryWithLogger(exposeTrace bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				requestLogger(c).Error("Panic recovered",
					"error", r,
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				body := gin.H{
					"code":    "SERVER_ERROR",
					"message": "The server encountered an unexpected error",
				}
				if exposeTrace {
					body["trace"] = fmt.Sprintf("Panic: %v\n%s", r, stack)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   body,
				})
			}
		}()

		c.Next()
	}
}

func requestLogger(c *gin.Context) *logger.Logger {
	return logger.FromGin(c)
}
