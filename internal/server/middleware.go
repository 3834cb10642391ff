package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lod-checker/internal/pkg/logger"
)

const headerRequestID = "X-Request-ID"

// RequestLogger присваивает запросу ID и пишет строку лога по завершении
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)

		ctx := logger.WithFrontEnd(c.Request.Context(), "http")
		ctx = logger.WithRequestID(ctx, requestID)
		if id := c.Param("id"); id != "" {
			ctx = logger.WithSessionID(ctx, id)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start).Round(time.Millisecond)
		switch {
		case status >= 500:
			log.Errorf(ctx, "%s %s %d %s", c.Request.Method, c.FullPath(), status, latency)
		case status >= 400:
			log.Warnf(ctx, "%s %s %d %s", c.Request.Method, c.FullPath(), status, latency)
		default:
			log.Infof(ctx, "%s %s %d %s", c.Request.Method, c.FullPath(), status, latency)
		}
	}
}
