package dto

import (
	"encoding/json"
	"time"

	"github.com/cuongbtq/scan-control/internal/domain"
)

type CreateScheduleRequest struct {
	Name         string          `json:"name"`
	Kind         string          `json:"kind" binding:"required"`
	Payload      json.RawMessage `json:"payload" binding:"required"`
	ScheduledFor time.Time       `json:"scheduled_for" binding:"required"`
	CreatedBy    string          `json:"created_by"`
}

type RescheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
}

type ListSchedulesRequest struct {
	Status string `form:"status"`
	Limit  int    `form:"limit"`
}

type ScheduleDTO struct {
	ScheduleID     string          `json:"schedule_id"`
	JobName        string          `json:"job_name"`
	JobKind        string          `json:"job_kind"`
	Payload        json.RawMessage `json:"payload"`
	ScheduledFor   string          `json:"scheduled_for"`
	Status         string          `json:"status"`
	TriggeredJobID string          `json:"triggered_job_id,omitempty"`
	TriggeredAt    string          `json:"triggered_at,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      string          `json:"created_at"`
}

type ListSchedulesResponse struct {
	Schedules []ScheduleDTO `json:"schedules"`
}

// NewScheduleDTO converts a scheduled job into its wire form
func NewScheduleDTO(sj *domain.ScheduledJob) ScheduleDTO {
	out := ScheduleDTO{
		ScheduleID:   sj.ID,
		JobName:      sj.JobName,
		JobKind:      sj.JobKind,
		Payload:      sj.Payload,
		ScheduledFor: sj.ScheduledFor.Format(time.RFC3339),
		Status:       sj.Status,
		CreatedBy:    sj.CreatedBy,
		CreatedAt:    sj.CreatedAt.Format(time.RFC3339),
	}
	if len(out.Payload) == 0 {
		out.Payload = json.RawMessage(`{}`)
	}
	if sj.TriggeredJobID != nil {
		out.TriggeredJobID = *sj.TriggeredJobID
	}
	if sj.TriggeredAt != nil {
		out.TriggeredAt = sj.TriggeredAt.Format(time.RFC3339)
	}
	if sj.Error != nil {
		out.Error = *sj.Error
	}
	return out
}
