package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"hotelbooking/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request and recovers from panics.
func RequestLogger(log logger.ILogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				details := requestDetails(c, start)
				details["error"] = err
				details["stack"] = string(debug.Stack())
				log.Error("http", "panic", details)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "Internal Server Error",
					},
				})
				return
			}

			details := requestDetails(c, start)
			switch {
			case len(c.Errors) > 0:
				details["errors"] = c.Errors.Errors()
				log.Error("http", "request failed", details)
			case c.Writer.Status() >= http.StatusInternalServerError:
				log.Error("http", "request failed", details)
			case c.Writer.Status() >= http.StatusBadRequest:
				log.Warn("http", "request rejected", details)
			default:
				log.Info("http", "request", details)
			}
		}()

		c.Next()
	}
}

func requestDetails(c *gin.Context, start time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"client_ip":  c.ClientIP(),
		"user_id":    c.GetInt64("user_id"),
		"role":       c.GetString("role"),
		"request_id": requestID(c),
		"latency":    time.Since(start).String(),
	}
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
