package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siteanalyzer/backend/logging"
)

// RequestLogger writes one structured line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			logging.String("client_ip", c.ClientIP()),
			logging.Int("bytes", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error(c.Request.Context(), "request", fields...)
		case status >= 400:
			logger.Warn(c.Request.Context(), "request", fields...)
		default:
			logger.Info(c.Request.Context(), "request", fields...)
		}
	}
}
