package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "backoffice/internal/errors"
	"backoffice/internal/logger"
)

// ErrorHandler renders the last error a handler attached with c.Error as
// {"error": {"code", "message"}}. Errors that are not AppErrors become
// INTERNAL_ERROR and their text only reaches the log.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			logger.Get().Errorw("unexpected error",
				"request_id", c.GetString(requestIDKey),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err.Error(),
			)
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil {
			logger.Get().Errorw("request failed",
				"request_id", c.GetString(requestIDKey),
				"code", appErr.Code,
				"path", c.Request.URL.Path,
				"internal", appErr.Internal.Error(),
			)
		}
		writeError(c, appErr)
	}
}

// NotFound answers unmatched routes with ErrNotFound through ErrorHandler.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperrors.ErrNotFound)
	}
}

// abortWithError stops the chain and writes err.
func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.Abort()
	writeError(c, err)
}

func writeError(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.StatusCode, gin.H{
		"error": gin.H{
			"code":    err.Code,
			"message": err.Message,
		},
	})
}
