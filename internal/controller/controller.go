// Package controller runs scan jobs on a bounded worker pool and drives
// their lifecycle: IN_PROGRESS, PAUSED and the terminal TERMINATED,
// COMPLETED and FAILED states.
//
// Pause and terminate are cooperative. They are observed at checkpoints
// between pipeline stages, so a request issued while a network call is in
// flight takes effect once that call returns.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/events"
	"github.com/cuongbtq/scan-control/internal/registry"
	"github.com/cuongbtq/scan-control/internal/scanner"
)

// ErrStopped is returned by Create after Stop was called
var ErrStopped = errors.New("controller is stopped")

const (
	reasonShutdown = "interrupted by shutdown"
	reasonRestart  = "interrupted by restart"

	nameSuffixLayout = "20060102_150405"
)

// Store persists jobs and their results
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	// UpdateJobStatus only changes jobs that are IN_PROGRESS or PAUSED
	UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error
	SaveResult(ctx context.Context, jobID string, result json.RawMessage, rows []domain.ResultRow) error
	// FailActiveJobs marks every IN_PROGRESS or PAUSED job FAILED
	FailActiveJobs(ctx context.Context, reason string) (int64, error)
}

// Config holds controller configuration
type Config struct {
	Logger        *slog.Logger
	Store         Store
	Registry      *registry.Registry
	Scanners      *scanner.Catalog
	Publisher     events.Publisher
	Workers       int
	QueueSize     int
	StatusTimeout time.Duration
	Now           func() time.Time
}

// CreateRequest describes a job to start
type CreateRequest struct {
	Name      string
	Kind      string
	Payload   json.RawMessage
	CreatedBy string
}

// Controller owns the worker pool and the control plane of running jobs
type Controller struct {
	logger        *slog.Logger
	store         Store
	registry      *registry.Registry
	scanners      *scanner.Catalog
	publisher     events.Publisher
	workers       int
	statusTimeout time.Duration
	now           func() time.Time

	tasks    chan *task
	stopChan chan struct{}
	wg       sync.WaitGroup

	// runCtx is canceled on Stop and bounds all worker network I/O
	runCtx context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	started  bool
	stopping bool
}

type task struct {
	job     *domain.Job
	handle  *registry.Handle
	scanner scanner.Scanner
}

// New creates a controller. Call Start before creating asynchronous jobs.
func New(cfg *Config) *Controller {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	statusTimeout := cfg.StatusTimeout
	if statusTimeout <= 0 {
		statusTimeout = 5 * time.Second
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:        cfg.Logger,
		store:         cfg.Store,
		registry:      cfg.Registry,
		scanners:      cfg.Scanners,
		publisher:     publisher,
		workers:       workers,
		statusTimeout: statusTimeout,
		now:           now,
		tasks:         make(chan *task, queueSize),
		stopChan:      make(chan struct{}),
		runCtx:        runCtx,
		cancel:        cancel,
	}
}

// Start fails jobs orphaned by a previous process and spawns the workers
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if c.stopping {
		return ErrStopped
	}

	n, err := c.store.FailActiveJobs(ctx, reasonRestart)
	if err != nil {
		return fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}
	if n > 0 {
		c.logger.Warn("Marked orphaned jobs as failed", slog.Int64("count", n))
	}

	c.spawnWorkerPool()
	c.started = true
	return nil
}

// Stop cancels running jobs, waits for the workers to exit and fails any job
// still queued. Jobs interrupted this way end FAILED.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	c.mu.Unlock()

	c.logger.Info("Stopping job controller...", slog.Any("running_jobs", c.registry.IDs()))
	close(c.stopChan)
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for workers: %w", ctx.Err())
	}

	c.drainQueue()
	c.logger.Info("Job controller stopped")
	return nil
}

// Validate checks kind and payload without creating anything
func (c *Controller) Validate(kind string, payload json.RawMessage) error {
	s, err := c.scanners.Get(kind)
	if err != nil {
		return err
	}
	return s.Validate(payload)
}

// Create persists a job and starts it. Asynchronous kinds are queued and
// Create returns immediately with the job IN_PROGRESS; synchronous kinds run
// to completion first and the returned job carries its terminal status.
func (c *Controller) Create(ctx context.Context, req CreateRequest) (*domain.Job, error) {
	s, err := c.scanners.Get(req.Kind)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(req.Payload); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s", req.Kind, now.Format(nameSuffixLayout))
	}
	job := &domain.Job{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      req.Kind,
		Status:    domain.JobStatusInProgress,
		Payload:   req.Payload,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: req.CreatedBy,
	}

	t, snapshot, err := c.admit(ctx, job, s)
	if err != nil {
		return nil, err
	}
	if s.Synchronous() {
		c.process(ctx, t)
		return job, nil
	}
	return snapshot, nil
}

// admit persists, registers and announces a job, then queues it when
// asynchronous. Only the stop check and the enqueue run under the read lock,
// so Stop cannot drain the queue between them. The returned snapshot is taken
// before a worker can touch the job.
func (c *Controller) admit(ctx context.Context, job *domain.Job, s scanner.Scanner) (*task, *domain.Job, error) {
	if c.isStopping() {
		return nil, nil, ErrStopped
	}
	if err := c.insertJob(ctx, job); err != nil {
		return nil, nil, err
	}
	snapshot := *job

	t := &task{job: job, handle: c.registry.Register(job.ID), scanner: s}
	c.publish(ctx, job, "")
	c.logger.InfoContext(ctx, "Job created",
		slog.String("job_id", job.ID),
		slog.String("name", job.Name),
		slog.String("kind", job.Kind),
		slog.Bool("synchronous", s.Synchronous()),
	)

	if s.Synchronous() {
		return t, &snapshot, nil
	}

	if err := c.enqueue(t); err != nil {
		c.registry.Remove(job.ID)
		reason := err.Error()
		if errors.Is(err, ErrStopped) {
			reason = reasonShutdown
		}
		c.finish(ctx, t, domain.JobStatusFailed, reason)
		return nil, nil, err
	}
	return t, &snapshot, nil
}

func (c *Controller) isStopping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopping
}

func (c *Controller) enqueue(t *task) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stopping {
		return ErrStopped
	}
	select {
	case c.tasks <- t:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// insertJob retries once with a timestamp suffix when the name is taken
func (c *Controller) insertJob(ctx context.Context, job *domain.Job) error {
	err := c.store.CreateJob(ctx, job)
	if errors.Is(err, domain.ErrDuplicateName) {
		renamed := fmt.Sprintf("%s_%s", job.Name, c.now().UTC().Format(nameSuffixLayout))
		c.logger.InfoContext(ctx, "Job name taken, retrying with suffix",
			slog.String("name", job.Name),
			slog.String("renamed", renamed),
		)
		job.Name = renamed
		err = c.store.CreateJob(ctx, job)
	}
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Pause asks a running job to pause at its next checkpoint
func (c *Controller) Pause(ctx context.Context, jobID string) error {
	h, err := c.handle(ctx, jobID)
	if err != nil {
		return err
	}
	if err := h.Pause(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Pause requested", slog.String("job_id", jobID))
	return nil
}

// Resume clears the pause signal of a job
func (c *Controller) Resume(ctx context.Context, jobID string) error {
	h, err := c.handle(ctx, jobID)
	if err != nil {
		return err
	}
	if err := h.Resume(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Resume requested", slog.String("job_id", jobID))
	return nil
}

// Terminate asks a running or paused job to stop at its next checkpoint
func (c *Controller) Terminate(ctx context.Context, jobID string) error {
	h, err := c.handle(ctx, jobID)
	if err != nil {
		return err
	}
	if err := h.Terminate(); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Termination requested", slog.String("job_id", jobID))
	return nil
}

// handle distinguishes unknown jobs from jobs that are no longer running
func (c *Controller) handle(ctx context.Context, jobID string) (*registry.Handle, error) {
	if h, ok := c.registry.Get(jobID); ok {
		return h, nil
	}
	if _, err := c.store.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return nil, domain.ErrJobNotRunning
}

func (c *Controller) publish(ctx context.Context, job *domain.Job, errMsg string) {
	_ = c.publisher.Publish(ctx, events.Event{
		Subject:    events.SubjectJob,
		ID:         job.ID,
		Kind:       job.Kind,
		Status:     job.Status,
		Error:      errMsg,
		OccurredAt: c.now().UTC(),
	})
}
