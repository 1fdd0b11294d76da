package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vutran-dev/transcribe-be/internal/api/handler"
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
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "transcription-api-service",
		})
	})

	transcriptionHandler := handler.NewTranscriptionHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/transcriptions")
		{
			// POST /api/v1/transcriptions - Submit a media file for transcription
			jobs.POST("", transcriptionHandler.SubmitJob)

			// GET /api/v1/transcriptions - List jobs with filtering and pagination
			jobs.GET("", transcriptionHandler.ListJobs)

			// GET /api/v1/transcriptions/:job_id - Get job status and progress
			jobs.GET("/:job_id", transcriptionHandler.GetJob)

			// POST /api/v1/transcriptions/:job_id/pause - Request a cooperative pause
			jobs.POST("/:job_id/pause", transcriptionHandler.PauseJob)

			// POST /api/v1/transcriptions/:job_id/resume - Resume a paused job
			jobs.POST("/:job_id/resume", transcriptionHandler.ResumeJob)

			// POST /api/v1/transcriptions/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", transcriptionHandler.CancelJob)

			// DELETE /api/v1/transcriptions/:job_id - Delete a terminal job
			jobs.DELETE("/:job_id", transcriptionHandler.DeleteJob)

			// GET /api/v1/transcriptions/:job_id/transcript - Download the transcript
			jobs.GET("/:job_id/transcript", transcriptionHandler.DownloadTranscript)

			// GET /api/v1/transcriptions/:job_id/subtitle - Download the SRT subtitle
			jobs.GET("/:job_id/subtitle", transcriptionHandler.DownloadSubtitle)
		}
	}

	return r
}
