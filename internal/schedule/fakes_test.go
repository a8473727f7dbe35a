package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/events"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore mirrors the conditional updates of the Postgres store
type memStore struct {
	mu        sync.Mutex
	schedules map[string]*domain.ScheduledJob
	jobs      map[string]*domain.Job
	claims    int
}

func newMemStore() *memStore {
	return &memStore{
		schedules: make(map[string]*domain.ScheduledJob),
		jobs:      make(map[string]*domain.Job),
	}
}

func (s *memStore) put(sj domain.ScheduledJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sj.ID] = &sj
}

func (s *memStore) schedule(id string) domain.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.schedules[id]
}

func (s *memStore) setJobStatus(id, status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
	s.jobs[id].Error = errMsg
}

func (s *memStore) CreateSchedule(_ context.Context, sj *domain.ScheduledJob) error {
	s.put(*sj)
	return nil
}

func (s *memStore) GetSchedule(_ context.Context, id string) (*domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.schedules[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	cp := *sj
	return &cp, nil
}

func (s *memStore) ListSchedules(_ context.Context, status string, limit int) ([]domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledJob
	for _, sj := range s.schedules {
		if status == "" || sj.Status == status {
			out = append(out, *sj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.After(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CancelSchedule(_ context.Context, id string) error {
	return s.updatePending(id, func(sj *domain.ScheduledJob) { sj.Status = domain.ScheduleStatusCancelled })
}

func (s *memStore) RescheduleSchedule(_ context.Context, id string, at time.Time) error {
	return s.updatePending(id, func(sj *domain.ScheduledJob) { sj.ScheduledFor = at })
}

func (s *memStore) updatePending(id string, fn func(*domain.ScheduledJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.schedules[id]
	if !ok {
		return domain.ErrScheduleNotFound
	}
	if sj.Status != domain.ScheduleStatusPending {
		return domain.ErrScheduleNotPending
	}
	fn(sj)
	return nil
}

func (s *memStore) ListDueSchedules(_ context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledJob
	for _, sj := range s.schedules {
		if sj.Status == domain.ScheduleStatusPending && !sj.ScheduledFor.After(now) {
			out = append(out, *sj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListClaimedSchedules(_ context.Context, limit int) ([]domain.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ScheduledJob
	for _, sj := range s.schedules {
		claimed := sj.Status == domain.ScheduleStatusTriggering || sj.Status == domain.ScheduleStatusInProgress
		if claimed && sj.TriggeredJobID != nil {
			out = append(out, *sj)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ClaimSchedule(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj, ok := s.schedules[id]
	if !ok || sj.Status != domain.ScheduleStatusPending {
		return false, nil
	}
	sj.Status = domain.ScheduleStatusTriggering
	s.claims++
	return true, nil
}

func (s *memStore) MarkTriggered(_ context.Context, id, jobID string, at time.Time, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj := s.schedules[id]
	if sj.Status != domain.ScheduleStatusTriggering {
		return nil
	}
	sj.TriggeredJobID = &jobID
	sj.TriggeredAt = &at
	sj.Status = status
	return nil
}

func (s *memStore) SetClaimedScheduleStatus(_ context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sj := s.schedules[id]
	if sj.Status != domain.ScheduleStatusTriggering && sj.Status != domain.ScheduleStatusInProgress {
		return nil
	}
	sj.Status = status
	if errMsg != "" {
		sj.Error = &errMsg
	}
	return nil
}

func (s *memStore) FailUnfinishedClaims(_ context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sj := range s.schedules {
		if sj.Status == domain.ScheduleStatusTriggering && sj.TriggeredJobID == nil {
			sj.Status = domain.ScheduleStatusFailed
			r := reason
			sj.Error = &r
			n++
		}
	}
	return n, nil
}

func (s *memStore) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// fakeCreator records created jobs in the store. Kinds listed in syncKinds come
// back COMPLETED; kinds listed in fail are rejected.
type fakeCreator struct {
	store     *memStore
	syncKinds map[string]bool
	fail      map[string]error
	delay     time.Duration

	mu       sync.Mutex
	requests []controller.CreateRequest
}

func (c *fakeCreator) Create(_ context.Context, req controller.CreateRequest) (*domain.Job, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if err := c.fail[req.Kind]; err != nil {
		return nil, err
	}
	status := domain.JobStatusInProgress
	if c.syncKinds[req.Kind] {
		status = domain.JobStatusCompleted
	}
	job := &domain.Job{ID: uuid.NewString(), Name: req.Name, Kind: req.Kind, Status: status, CreatedBy: req.CreatedBy}

	c.store.mu.Lock()
	cp := *job
	c.store.jobs[job.ID] = &cp
	c.store.mu.Unlock()
	return job, nil
}

func (c *fakeCreator) created() []controller.CreateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]controller.CreateRequest(nil), c.requests...)
}

type fakeValidator struct{}

func (fakeValidator) Validate(kind string, payload json.RawMessage) error {
	switch kind {
	case "subdomain", "dd", "api":
	default:
		return domain.ErrUnknownKind
	}
	if !json.Valid(payload) {
		return domain.ErrInvalidPayload
	}
	return nil
}

var errCreate = errors.New("queue exploded")

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) routingKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, len(p.events))
	for i, e := range p.events {
		keys[i] = e.RoutingKey()
	}
	return keys
}
