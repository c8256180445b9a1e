package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/uuid"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
)

// RequestLogging returns a Gin middleware that logs each request with a
// request ID, method, path, status code, latency, and client IP using Zap,
// and records its duration on m. m may be nil. An incoming X-Request-ID is
// kept so a caller can correlate its own logs.
func RequestLogging(m *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), latency)

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if orgID := c.GetString(orgIDKey); orgID != "" {
			fields = append(fields, "organization_id", orgID)
		}
		logger.Get().Infow("request", fields...)
	}
}
