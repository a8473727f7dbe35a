package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/scan-control/internal/api/dto"
	"github.com/cuongbtq/scan-control/internal/schedule"
)

// CreateSchedule handles POST /api/v1/schedules
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ScheduledFor.IsZero() {
		h.logger.Warn("Invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	sj, err := h.schedules.Schedule(c.Request.Context(), schedule.Request{
		Name:         req.Name,
		Kind:         req.Kind,
		Payload:      req.Payload,
		ScheduledFor: req.ScheduledFor,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to schedule job", err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewScheduleDTO(sj))
}

// ListSchedules handles GET /api/v1/schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var req dto.ListSchedulesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	list, err := h.schedules.List(c.Request.Context(), req.Status, req.Limit)
	if err != nil {
		respondError(c, h.logger, "Failed to list scheduled jobs", err)
		return
	}

	out := make([]dto.ScheduleDTO, len(list))
	for i := range list {
		out[i] = dto.NewScheduleDTO(&list[i])
	}
	c.JSON(http.StatusOK, dto.ListSchedulesResponse{Schedules: out})
}

// GetSchedule handles GET /api/v1/schedules/:schedule_id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id, ok := scheduleIDParam(c)
	if !ok {
		return
	}

	sj, err := h.schedules.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "Failed to get scheduled job", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewScheduleDTO(sj))
}

// CancelSchedule handles POST /api/v1/schedules/:schedule_id/cancel
func (h *ScheduleHandler) CancelSchedule(c *gin.Context) {
	id, ok := scheduleIDParam(c)
	if !ok {
		return
	}

	if err := h.schedules.Cancel(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "Failed to cancel scheduled job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"schedule_id": id,
		"status":      "CANCELLED",
	})
}

// RescheduleSchedule handles PUT /api/v1/schedules/:schedule_id
func (h *ScheduleHandler) RescheduleSchedule(c *gin.Context) {
	id, ok := scheduleIDParam(c)
	if !ok {
		return
	}

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ScheduledFor.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	sj, err := h.schedules.Reschedule(c.Request.Context(), id, req.ScheduledFor)
	if err != nil {
		respondError(c, h.logger, "Failed to reschedule job", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewScheduleDTO(sj))
}

func scheduleIDParam(c *gin.Context) (string, bool) {
	id := c.Param("schedule_id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "schedule_id must be a valid UUID",
		})
		return "", false
	}
	return id, true
}
