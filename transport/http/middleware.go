package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/x402labs/devicegate/logger"
)

// RequestLogger logs one line per request with method, path, status and
// latency.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Noop{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if c.Writer.Status() >= 500 {
			log.Error("request failed", fields)
			return
		}
		log.Info("request", fields)
	}
}
