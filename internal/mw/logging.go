package mw

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs every request once it completes.
func RequestLogger(l *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		keyvals := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client", ClientKey(c),
		}
		switch {
		case status >= 500:
			l.Error("request failed", keyvals...)
		case status >= 400:
			l.Warn("request rejected", keyvals...)
		default:
			l.Debug("request completed", keyvals...)
		}
	}
}
