package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vutran-dev/transcribe-be/internal/api/dto"
	"github.com/vutran-dev/transcribe-be/internal/artifact"
	"github.com/vutran-dev/transcribe-be/internal/ledger"
)

// SubmitJob handles POST /api/v1/transcriptions
// Accepts a multipart upload and queues a transcription job.
func (h *TranscriptionHandler) SubmitJob(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	var req dto.SubmitJobRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Error("Invalid request form", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request form",
		})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A media file is required",
		})
		return
	}
	defer file.Close()

	if req.Model == "" {
		req.Model = h.transcription.DefaultModel
	}
	if req.SegmentLength == 0 {
		req.SegmentLength = h.transcription.DefaultSegmentLength
	}
	if !h.transcription.ModelAllowed(req.Model) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("unknown model %q, allowed: %s", req.Model, strings.Join(h.transcription.AllowedModels, ", ")),
		})
		return
	}

	jobID := ledger.NewJobID()
	location, err := h.artifacts.SaveInput(jobID, header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to store upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store upload",
		})
		return
	}

	job, err := h.ledger.Create(c.Request.Context(), jobID, ledger.JobConfig{
		Model:              req.Model,
		KeepSourceLanguage: req.KeepSourceLanguage,
		SkipSubtitle:       req.SkipSubtitle,
		SegmentLength:      req.SegmentLength,
	}, location, header.Filename)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.publishDispatch(c, job.JobID); err != nil {
		// Undo the queued record so the client can resubmit cleanly.
		if _, cancelErr := h.ledger.Cancel(c.Request.Context(), job.JobID); cancelErr != nil {
			h.logger.Error("Failed to cancel undispatched job",
				slog.String("job_id", job.JobID),
				slog.String("error", cancelErr.Error()),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dispatch job",
		})
		return
	}

	c.JSON(http.StatusAccepted, dto.FromJob(job))
}

// GetJob handles GET /api/v1/transcriptions/:job_id
func (h *TranscriptionHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.ledger.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/transcriptions
// Lists jobs with optional status filtering and cursor pagination.
func (h *TranscriptionHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.ledger.List(c.Request.Context(), ledger.JobFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.FromJob(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&ledger.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// PauseJob handles POST /api/v1/transcriptions/:job_id/pause
// Requests a cooperative pause; the job keeps processing until the runner
// reaches the next segment boundary.
func (h *TranscriptionHandler) PauseJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.ledger.RequestPause(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ResumeJob handles POST /api/v1/transcriptions/:job_id/resume
// Returns a paused job to processing and dispatches it to the workers.
func (h *TranscriptionHandler) ResumeJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.ledger.RequestResume(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.publishDispatch(c, job.JobID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Resume accepted but dispatch failed, retry the resume",
		})
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// CancelJob handles POST /api/v1/transcriptions/:job_id/cancel
func (h *TranscriptionHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.ledger.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.artifacts.RemoveInputs(jobID); err != nil {
		h.logger.Warn("Failed to remove inputs of canceled job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// DeleteJob handles DELETE /api/v1/transcriptions/:job_id
// Removes a terminal job record together with its artifacts.
func (h *TranscriptionHandler) DeleteJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	job, err := h.ledger.Get(ctx, jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.ledger.Delete(ctx, jobID); err != nil {
		h.respondError(c, err)
		return
	}

	for _, location := range []string{job.TranscriptLocation, job.SubtitleLocation} {
		if location == "" {
			continue
		}
		if err := h.artifacts.Delete(location); err != nil && !errors.Is(err, artifact.ErrNotFound) {
			h.logger.Warn("Failed to delete job artifact",
				slog.String("job_id", jobID),
				slog.String("location", location),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := h.artifacts.RemoveInputs(jobID); err != nil {
		h.logger.Warn("Failed to remove inputs of deleted job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	c.Status(http.StatusNoContent)
}

// DownloadTranscript handles GET /api/v1/transcriptions/:job_id/transcript
func (h *TranscriptionHandler) DownloadTranscript(c *gin.Context) {
	h.downloadArtifact(c, func(job *ledger.Job) string {
		return job.TranscriptLocation
	}, "text/plain; charset=utf-8")
}

// DownloadSubtitle handles GET /api/v1/transcriptions/:job_id/subtitle
func (h *TranscriptionHandler) DownloadSubtitle(c *gin.Context) {
	h.downloadArtifact(c, func(job *ledger.Job) string {
		return job.SubtitleLocation
	}, "application/x-subrip")
}

func (h *TranscriptionHandler) downloadArtifact(c *gin.Context, location func(*ledger.Job) string, contentType string) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.ledger.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	loc := location(job)
	if !job.OutputReady() || loc == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Job output is not available",
			"status": string(job.Status),
		})
		return
	}

	data, err := h.artifacts.Get(loc)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(loc)))
	c.Data(http.StatusOK, contentType, data)
}

// publishDispatch sends the at-least-once dispatch message for the job.
func (h *TranscriptionHandler) publishDispatch(c *gin.Context, jobID string) error {
	body, err := json.Marshal(gin.H{"job_id": jobID})
	if err != nil {
		return err
	}
	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to publish dispatch message",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

func (h *TranscriptionHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

// respondError maps domain errors to HTTP statuses.
func (h *TranscriptionHandler) respondError(c *gin.Context, err error) {
	var verr *ledger.ValidationError
	var illegal *ledger.IllegalTransitionError

	switch {
	case errors.Is(err, ledger.ErrJobNotFound), errors.Is(err, artifact.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Job not found",
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": verr.Error(),
		})
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{
			"error":  err.Error(),
			"status": string(illegal.Current),
		})
	default:
		h.logger.Error("Request failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
