package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/cuongbtq/scan-control/internal/controller"
	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/events"
	"github.com/cuongbtq/scan-control/shared/logger"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultTriggerBatch   = 20
	defaultReconcileBatch = 50

	defaultCreator  = "scheduler"
	markAttempts    = 3
	reasonAbandoned = "interrupted before the job was created"
)

// Store is the persistence used by the dispatcher
type Store interface {
	ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error)
	ListClaimedSchedules(ctx context.Context, limit int) ([]domain.ScheduledJob, error)
	// ClaimSchedule moves PENDING to TRIGGERING and reports whether this
	// caller won the row
	ClaimSchedule(ctx context.Context, id string) (bool, error)
	MarkTriggered(ctx context.Context, id, jobID string, at time.Time, status string) error
	SetClaimedScheduleStatus(ctx context.Context, id, status, errMsg string) error
	FailUnfinishedClaims(ctx context.Context, reason string) (int64, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobCreator starts jobs
type JobCreator interface {
	Create(ctx context.Context, req controller.CreateRequest) (*domain.Job, error)
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	Logger         *slog.Logger
	Store          Store
	Jobs           JobCreator
	Publisher      events.Publisher
	PollInterval   time.Duration
	TriggerBatch   int
	ReconcileBatch int
	Now            func() time.Time
}

// Dispatcher polls for due scheduled jobs and keeps claimed rows in step
// with the jobs they triggered
type Dispatcher struct {
	logger         *slog.Logger
	store          Store
	jobs           JobCreator
	publisher      events.Publisher
	pollInterval   time.Duration
	triggerBatch   int
	reconcileBatch int
	now            func() time.Time

	mu        sync.Mutex
	scheduler gocron.Scheduler
	runCtx    context.Context
	cancel    context.CancelFunc
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg *DispatcherConfig) *Dispatcher {
	d := &Dispatcher{
		logger:         cfg.Logger,
		store:          cfg.Store,
		jobs:           cfg.Jobs,
		publisher:      cfg.Publisher,
		pollInterval:   cfg.PollInterval,
		triggerBatch:   cfg.TriggerBatch,
		reconcileBatch: cfg.ReconcileBatch,
		now:            cfg.Now,
	}
	if d.publisher == nil {
		d.publisher = events.Nop{}
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	if d.triggerBatch <= 0 {
		d.triggerBatch = defaultTriggerBatch
	}
	if d.reconcileBatch <= 0 {
		d.reconcileBatch = defaultReconcileBatch
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Start fails claims abandoned by a previous process and begins ticking.
// Ticks never overlap; a tick that is still running when the next one is
// due pushes it back.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler != nil {
		return nil
	}

	n, err := d.store.FailUnfinishedClaims(ctx, reasonAbandoned)
	if err != nil {
		return fmt.Errorf("failed to recover abandoned claims: %w", err)
	}
	if n > 0 {
		d.logger.Warn("Marked abandoned scheduled jobs as failed", slog.Int64("count", n))
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("initializing gocron scheduler: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	_, err = s.NewJob(
		gocron.DurationJob(d.pollInterval),
		gocron.NewTask(func() { d.Tick(runCtx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return fmt.Errorf("initializing gocron job: %w", err)
	}

	d.scheduler = s
	d.runCtx = runCtx
	d.cancel = cancel
	s.Start()

	d.logger.Info("Schedule dispatcher started", slog.Duration("poll_interval", d.pollInterval))
	return nil
}

// Stop halts ticking and waits for a running tick to return
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scheduler == nil {
		return nil
	}
	d.cancel()
	err := d.scheduler.Shutdown()
	d.scheduler = nil
	if err != nil {
		return fmt.Errorf("shutting down gocron: %w", err)
	}
	d.logger.Info("Schedule dispatcher stopped")
	return nil
}

// Tick runs one reconciliation pass followed by one trigger pass
func (d *Dispatcher) Tick(ctx context.Context) {
	if err := d.reconcile(ctx); err != nil {
		d.logger.ErrorContext(ctx, "Reconciliation failed", slog.String("error", err.Error()))
	}
	if err := d.trigger(ctx); err != nil {
		d.logger.ErrorContext(ctx, "Trigger pass failed", slog.String("error", err.Error()))
	}
}

// reconcile mirrors the status of triggered jobs onto their schedules
func (d *Dispatcher) reconcile(ctx context.Context) error {
	claimed, err := d.store.ListClaimedSchedules(ctx, d.reconcileBatch)
	if err != nil {
		return err
	}

	for i := range claimed {
		sj := &claimed[i]
		if sj.TriggeredJobID == nil {
			continue
		}
		job, err := d.store.GetJob(ctx, *sj.TriggeredJobID)
		if err != nil {
			d.logger.DebugContext(ctx, "Skipping reconciliation",
				slog.String("schedule_id", sj.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		status, ok := domain.ScheduleStatusForJob(job.Status)
		if !ok || status == sj.Status {
			continue
		}
		if err := d.store.SetClaimedScheduleStatus(ctx, sj.ID, status, job.Error); err != nil {
			d.logger.WarnContext(ctx, "Failed to mirror job status",
				slog.String("schedule_id", sj.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.logger.InfoContext(ctx, "Scheduled job status updated",
			slog.String("schedule_id", sj.ID),
			slog.String("job_id", job.ID),
			slog.String("status", status),
		)
		d.publish(ctx, sj, status, job.ID, job.Error)
	}
	return nil
}

// trigger claims due rows and creates their jobs
func (d *Dispatcher) trigger(ctx context.Context) error {
	due, err := d.store.ListDueSchedules(ctx, d.now().UTC(), d.triggerBatch)
	if err != nil {
		return err
	}

	for i := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.triggerOne(ctx, &due[i])
	}
	return nil
}

func (d *Dispatcher) triggerOne(ctx context.Context, sj *domain.ScheduledJob) {
	ctx = logger.ContextAttrs(ctx, slog.String("schedule_id", sj.ID))

	won, err := d.store.ClaimSchedule(ctx, sj.ID)
	if err != nil {
		d.logger.WarnContext(ctx, "Failed to claim scheduled job", slog.String("error", err.Error()))
		return
	}
	if !won {
		return
	}

	createdBy := sj.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreator
	}

	job, err := d.jobs.Create(ctx, controller.CreateRequest{
		Name:      sj.JobName,
		Kind:      sj.JobKind,
		Payload:   sj.Payload,
		CreatedBy: createdBy,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to trigger scheduled job", slog.String("error", err.Error()))
		d.fail(ctx, sj, "", err.Error())
		return
	}

	// synchronous kinds come back terminal
	status, ok := domain.ScheduleStatusForJob(job.Status)
	if !ok {
		status = domain.ScheduleStatusInProgress
	}
	if err := d.markTriggered(ctx, sj.ID, job.ID, status); err != nil {
		d.logger.ErrorContext(ctx, "Failed to record triggered job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		d.fail(ctx, sj, job.ID, fmt.Sprintf("job %s created but not recorded: %v", job.ID, err))
		return
	}

	d.logger.InfoContext(ctx, "Scheduled job triggered",
		slog.String("job_id", job.ID),
		slog.String("status", status),
	)
	d.publish(ctx, sj, status, job.ID, job.Error)
}

// markTriggered links the row to its job, retrying a few times so that
// reconciliation can follow the job afterwards
func (d *Dispatcher) markTriggered(ctx context.Context, id, jobID, status string) error {
	var err error
	for attempt := 0; attempt < markAttempts; attempt++ {
		if err = d.store.MarkTriggered(ctx, id, jobID, d.now().UTC(), status); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

// fail moves a claimed row to FAILED with errMsg
func (d *Dispatcher) fail(ctx context.Context, sj *domain.ScheduledJob, jobID, errMsg string) {
	if err := d.store.SetClaimedScheduleStatus(ctx, sj.ID, domain.ScheduleStatusFailed, errMsg); err != nil {
		d.logger.ErrorContext(ctx, "Failed to mark scheduled job failed", slog.String("error", err.Error()))
	}
	d.publish(ctx, sj, domain.ScheduleStatusFailed, jobID, errMsg)
}

func (d *Dispatcher) publish(ctx context.Context, sj *domain.ScheduledJob, status, jobID, errMsg string) {
	_ = d.publisher.Publish(ctx, events.Event{
		Subject:    events.SubjectSchedule,
		ID:         sj.ID,
		Kind:       sj.JobKind,
		Status:     status,
		Error:      errMsg,
		JobID:      jobID,
		OccurredAt: d.now().UTC(),
	})
}
