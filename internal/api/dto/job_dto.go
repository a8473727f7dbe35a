package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/scan-control/internal/domain"
)

type CreateJobRequest struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind" binding:"required"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
	CreatedBy string          `json:"created_by"`
}

type ListJobsRequest struct {
	Kind      string `form:"kind"`
	Status    string `form:"status"`
	CreatedBy string `form:"created_by"`
	PageSize  int    `form:"page_size"`
	Cursor    string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID     string          `json:"job_id"`
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type JobResultDTO struct {
	JobID     string          `json:"job_id"`
	Result    json.RawMessage `json:"result"`
	CreatedAt string          `json:"created_at"`
}

type SubdomainsResponse struct {
	JobID      string   `json:"job_id"`
	Subdomains []string `json:"subdomains"`
	Total      int      `json:"total"`
}

type ControlResponse struct {
	JobID   string `json:"job_id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// NewJobDTO converts a domain job into its wire form
func NewJobDTO(job *domain.Job) JobDTO {
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return JobDTO{
		JobID:     job.ID,
		Name:      job.Name,
		Kind:      job.Kind,
		Status:    job.Status,
		Payload:   payload,
		Error:     job.Error,
		CreatedBy: job.CreatedBy,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
}
