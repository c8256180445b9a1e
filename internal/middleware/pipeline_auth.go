package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/tenant"
)

// PipelineActor is the audit actor recorded for API-key requests.
const PipelineActor = "pipeline"

// PipelineAuthMiddleware guards the shared reference-data endpoints with the
// X-API-Key header. These requests carry no organization; the actor is set
// to PipelineActor. Without a configured key every request is refused.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		got := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Request = c.Request.WithContext(tenant.WithActor(c.Request.Context(), PipelineActor))
		c.Next()
	}
}
