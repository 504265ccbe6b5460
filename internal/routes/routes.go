package routes

import (
	"lotero/internal/app"
	"lotero/internal/controllers"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes controllers and API routes. queue may be nil, in
// which case syncs and backups run inside the request.
func SetupRouter(a *app.App, queue controllers.Enqueuer) *gin.Engine {
	prizeController := controllers.PrizeController{App: a, Queue: queue}

	// Set up Gin router
	router := gin.Default()

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	// Group API routes under /api/v1
	api := router.Group("/api/v1")
	{
		prizes := api.Group("/prizes")
		{
			prizes.GET("", prizeController.ListPrizes)
			prizes.GET("/:code", prizeController.GetPrize)
			prizes.DELETE("", prizeController.ClearPrizes)
		}

		api.GET("/stats", prizeController.GetStats)

		api.POST("/sync", prizeController.Sync)
		api.GET("/syncs", prizeController.ListSyncs)

		api.GET("/snapshot", prizeController.ExportSnapshot)
		api.POST("/snapshot", prizeController.ImportSnapshot)
		api.POST("/backup", prizeController.Backup)
		api.POST("/restore", prizeController.Restore)
	}

	return router
}
