// Package schedule defers job creation to a future time and triggers each
// scheduled job exactly once.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/events"
)

const defaultListLimit = 50

// Repository stores scheduled jobs
type Repository interface {
	CreateSchedule(ctx context.Context, sj *domain.ScheduledJob) error
	GetSchedule(ctx context.Context, id string) (*domain.ScheduledJob, error)
	ListSchedules(ctx context.Context, status string, limit int) ([]domain.ScheduledJob, error)
	CancelSchedule(ctx context.Context, id string) error
	RescheduleSchedule(ctx context.Context, id string, at time.Time) error
}

// Validator checks a job kind and its payload
type Validator interface {
	Validate(kind string, payload json.RawMessage) error
}

// Request describes a job to run later
type Request struct {
	Name         string
	Kind         string
	Payload      json.RawMessage
	ScheduledFor time.Time
	CreatedBy    string
}

// Service manages PENDING scheduled jobs
type Service struct {
	repo      Repository
	validator Validator
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a schedule service. publisher may be nil.
func NewService(repo Repository, validator Validator, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Schedule stores a PENDING scheduled job. The time must lie in the future
// and kind and payload must be valid for immediate creation.
func (s *Service) Schedule(ctx context.Context, req Request) (*domain.ScheduledJob, error) {
	now := s.now().UTC()
	if !req.ScheduledFor.After(now) {
		return nil, domain.ErrScheduleInPast
	}
	if err := s.validator.Validate(req.Kind, req.Payload); err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s", req.Kind, req.ScheduledFor.UTC().Format("20060102_150405"))
	}

	sj := &domain.ScheduledJob{
		ID:           uuid.NewString(),
		JobName:      name,
		JobKind:      req.Kind,
		Payload:      req.Payload,
		ScheduledFor: req.ScheduledFor.UTC(),
		Status:       domain.ScheduleStatusPending,
		CreatedAt:    now,
		CreatedBy:    req.CreatedBy,
	}
	if err := s.repo.CreateSchedule(ctx, sj); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Job scheduled",
		slog.String("schedule_id", sj.ID),
		slog.String("kind", sj.JobKind),
		slog.Time("scheduled_for", sj.ScheduledFor),
	)
	s.publish(ctx, sj.ID, sj.JobKind, sj.Status)
	return sj, nil
}

// Cancel cancels a PENDING scheduled job
func (s *Service) Cancel(ctx context.Context, id string) error {
	sj, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.CancelSchedule(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Scheduled job cancelled", slog.String("schedule_id", id))
	s.publish(ctx, id, sj.JobKind, domain.ScheduleStatusCancelled)
	return nil
}

// Reschedule moves a PENDING scheduled job to a new future time
func (s *Service) Reschedule(ctx context.Context, id string, at time.Time) (*domain.ScheduledJob, error) {
	if !at.After(s.now()) {
		return nil, domain.ErrScheduleInPast
	}
	if err := s.repo.RescheduleSchedule(ctx, id, at.UTC()); err != nil {
		return nil, err
	}
	sj, err := s.repo.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Scheduled job moved",
		slog.String("schedule_id", id),
		slog.Time("scheduled_for", sj.ScheduledFor),
	)
	s.publish(ctx, sj.ID, sj.JobKind, sj.Status)
	return sj, nil
}

// Get returns one scheduled job
func (s *Service) Get(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	return s.repo.GetSchedule(ctx, id)
}

// List returns scheduled jobs, optionally filtered by status
func (s *Service) List(ctx context.Context, status string, limit int) ([]domain.ScheduledJob, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListSchedules(ctx, status, limit)
}

func (s *Service) publish(ctx context.Context, id, kind, status string) {
	_ = s.publisher.Publish(ctx, events.Event{
		Subject:    events.SubjectSchedule,
		ID:         id,
		Kind:       kind,
		Status:     status,
		OccurredAt: s.now().UTC(),
	})
}
