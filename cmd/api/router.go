package main

import (
	"net/http"

	"mapvault-backend/internal/shared/middleware"
	"mapvault-backend/pkg/container"

	"github.com/gin-gonic/gin"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupMapRoutes(v1, c)
	}

	return router
}

func setupMapRoutes(v1 *gin.RouterGroup, c *container.Container) {
	maps := v1.Group("/maps")
	maps.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		maps.GET("", c.MapHandler.ListMaps)
		// Submitting maps needs the mapper capability; everything else is
		// open to any authenticated user.
		maps.POST("", middleware.MapperMiddleware(), c.MapHandler.CreateMap)
		maps.GET("/:mapID", c.MapHandler.GetMap)
		maps.POST("/:mapID/upload", c.MapHandler.UploadMap)
		maps.GET("/:mapID/download", c.MapHandler.DownloadMap)
	}
}

func healthCheckHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if err := c.DB.HealthCheck(ctx.Request.Context()); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    c.Config.App.Name,
			"version": c.Config.App.Version,
		})
	}
}
