package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/listforge/pipeline/internal/ops/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DBClient != nil {
			if err := deps.DBClient.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"service": "ops-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "ops-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes, read-only
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// GET /api/v1/jobs/:job_id/results - List submission outcomes
			jobs.GET("/:job_id/results", jobHandler.ListJobResults)

			// GET /api/v1/jobs/:job_id/history - Audit trail for a job
			jobs.GET("/:job_id/history", jobHandler.ListJobHistory)
		}

		// GET /api/v1/workers - Worker heartbeat fleet view
		v1.GET("/workers", jobHandler.ListWorkers)

		// GET /api/v1/directories/search - Catalog search by name
		v1.GET("/directories/search", jobHandler.SearchDirectories)
	}

	return r
}
