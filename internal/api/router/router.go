package router

import (
	"net/http"

	"github.com/cuongbtq/visit-metrics/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(RecoveryMiddleware(deps.Logger))
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "visit-metrics-api",
			"jobs":      deps.Storage.Stats(),
			"in_flight": deps.Worker.InFlight(),
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	api := r.Group("/api")
	{
		// POST /api/submit - Submit a batch of visits
		api.POST("/submit", jobHandler.SubmitJob)
		api.POST("/submit/", jobHandler.SubmitJob)

		// GET /api/status?jobid= - Poll a job
		api.GET("/status", jobHandler.GetJobStatus)
	}

	return r
}
