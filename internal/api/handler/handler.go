// Package handler exposes jobs and scheduled jobs over HTTP.
package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/schedule"
	"github.com/cuongbtq/scan-control/internal/storage"
)

// JobController creates and controls jobs
type JobController interface {
	Create(ctx context.Context, req controller.CreateRequest) (*domain.Job, error)
	Pause(ctx context.Context, jobID string) error
	Resume(ctx context.Context, jobID string) error
	Terminate(ctx context.Context, jobID string) error
}

// JobStore reads persisted jobs and results
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]domain.Job, error)
	GetResult(ctx context.Context, jobID string) (*domain.JobResult, error)
	ListResultRows(ctx context.Context, jobID string) ([]domain.ResultRow, error)
}

// ScheduleService manages scheduled jobs
type ScheduleService interface {
	Schedule(ctx context.Context, req schedule.Request) (*domain.ScheduledJob, error)
	Cancel(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, at time.Time) (*domain.ScheduledJob, error)
	Get(ctx context.Context, id string) (*domain.ScheduledJob, error)
	List(ctx context.Context, status string, limit int) ([]domain.ScheduledJob, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Jobs      JobController
	Store     JobStore
	Schedules ScheduleService
	// Health reports whether backing services are reachable. Optional.
	Health func(ctx context.Context) error
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	jobs   JobController
	store  JobStore
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		jobs:   deps.Jobs,
		store:  deps.Store,
	}
}

// ScheduleHandler handles scheduled-job HTTP requests
type ScheduleHandler struct {
	logger    *slog.Logger
	schedules ScheduleService
}

// NewScheduleHandler creates a new ScheduleHandler instance
func NewScheduleHandler(deps *Dependencies) *ScheduleHandler {
	return &ScheduleHandler{
		logger:    deps.Logger,
		schedules: deps.Schedules,
	}
}
