package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/scan-control/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": "scan-service",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "scan-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	scheduleHandler := handler.NewScheduleHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.GET("/:job_id/result", jobHandler.GetJobResult)
			jobs.GET("/:job_id/subdomains", jobHandler.GetJobSubdomains)

			// control plane; effective at the next checkpoint
			jobs.POST("/:job_id/pause", jobHandler.PauseJob)
			jobs.POST("/:job_id/resume", jobHandler.ResumeJob)
			jobs.POST("/:job_id/terminate", jobHandler.TerminateJob)
		}

		schedules := v1.Group("/schedules")
		{
			schedules.POST("", scheduleHandler.CreateSchedule)
			schedules.GET("", scheduleHandler.ListSchedules)
			schedules.GET("/:schedule_id", scheduleHandler.GetSchedule)
			schedules.PUT("/:schedule_id", scheduleHandler.RescheduleSchedule)
			schedules.POST("/:schedule_id/cancel", scheduleHandler.CancelSchedule)
		}
	}

	return r
}

// CombineChecks runs checks in order and returns the first failure
func CombineChecks(checks ...func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
