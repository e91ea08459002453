package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, h *Handlers) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		api.POST("/dockets", h.MergeDocket)
		api.GET("/dockets/:id", h.GetDocket)
		api.POST("/attachment-pages", h.MergeAttachmentPage)
		api.POST("/case-query", h.ProcessCaseQuery)
	}
}
