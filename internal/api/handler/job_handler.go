package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/scan-control/internal/api/dto"
	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/storage"
)

// CreateJob handles POST /api/v1/jobs
// Asynchronous kinds answer 202 while the job runs; synchronous kinds answer
// 200 with the terminal job.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), controller.CreateRequest{
		Name:      req.Name,
		Kind:      req.Kind,
		Payload:   req.Payload,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to create job", err)
		return
	}

	status := http.StatusAccepted
	if domain.IsTerminalJobStatus(job.Status) {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobDTO(job))
}

// GetJobResult handles GET /api/v1/jobs/:job_id/result
func (h *JobHandler) GetJobResult(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	res, err := h.store.GetResult(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, "Failed to get job result", err)
		return
	}

	c.JSON(http.StatusOK, dto.JobResultDTO{
		JobID:     res.JobID,
		Result:    res.Result,
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
	})
}

// GetJobSubdomains handles GET /api/v1/jobs/:job_id/subdomains
func (h *JobHandler) GetJobSubdomains(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetJob(ctx, jobID); err != nil {
		respondError(c, h.logger, "Failed to get job", err)
		return
	}

	rows, err := h.store.ListResultRows(ctx, jobID)
	if err != nil {
		respondError(c, h.logger, "Failed to list subdomains", err)
		return
	}

	subdomains := make([]string, len(rows))
	for i, row := range rows {
		subdomains[i] = row.Subdomain
	}
	c.JSON(http.StatusOK, dto.SubdomainsResponse{
		JobID:      jobID,
		Subdomains: subdomains,
		Total:      len(subdomains),
	})
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
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
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), storage.JobFilter{
		Kind:      req.Kind,
		Status:    req.Status,
		CreatedBy: req.CreatedBy,
		PageSize:  req.PageSize,
		Cursor:    cursor,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to list jobs", err)
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = dto.NewJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// PauseJob handles POST /api/v1/jobs/:job_id/pause
func (h *JobHandler) PauseJob(c *gin.Context) {
	h.control(c, "pause", h.jobs.Pause)
}

// ResumeJob handles POST /api/v1/jobs/:job_id/resume
func (h *JobHandler) ResumeJob(c *gin.Context) {
	h.control(c, "resume", h.jobs.Resume)
}

// TerminateJob handles POST /api/v1/jobs/:job_id/terminate
func (h *JobHandler) TerminateJob(c *gin.Context) {
	h.control(c, "terminate", h.jobs.Terminate)
}

// control answers 202: the request takes effect at the job's next checkpoint
func (h *JobHandler) control(c *gin.Context, action string, fn func(ctx context.Context, jobID string) error) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), jobID); err != nil {
		respondError(c, h.logger, "Failed to "+action+" job", err)
		return
	}

	c.JSON(http.StatusAccepted, dto.ControlResponse{
		JobID:   jobID,
		Action:  action,
		Message: action + " requested",
	})
}

func jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}
