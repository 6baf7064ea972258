package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/x402labs/devicegate"
	"github.com/x402labs/devicegate/logger"
)

// NewRouter assembles the gin engine with all devicegate routes.
func NewRouter(gate *devicegate.Gate, log logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	h := NewHandlers(gate)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": devicegate.Version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/supported", h.Supported)

	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/:deviceId", h.GetDevice)
		devices.GET("/:deviceId/status", h.Status)
		devices.POST("/:deviceId/challenge", h.Challenge)
		devices.POST("/:deviceId/verify", h.Verify)
		devices.POST("/:deviceId/commands/:action", h.Command)
	}

	router.POST("/payments/broadcast", h.Broadcast)

	return router
}
