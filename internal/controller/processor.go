package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/scan-control/internal/domain"
	"github.com/cuongbtq/scan-control/internal/recon"
	"github.com/cuongbtq/scan-control/internal/registry"
	"github.com/cuongbtq/scan-control/internal/scanner"
	"github.com/cuongbtq/scan-control/shared/logger"
)

// process runs one job to a terminal state. The registry entry is removed
// on every exit path, before the terminal status is written.
func (c *Controller) process(ctx context.Context, t *task) {
	jobID := t.job.ID
	defer c.registry.Remove(jobID)

	ctx = logger.ContextAttrs(ctx,
		slog.String("job_id", jobID),
		slog.String("kind", t.job.Kind),
	)
	start := c.now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Job panicked", slog.Any("panic", r))
			c.registry.Remove(jobID)
			c.finish(ctx, t, domain.JobStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	c.logger.InfoContext(ctx, "Processing job")

	cp := c.checkpoint(t)
	result, err := t.scanner.Run(ctx, t.job.Payload, cp)
	if err == nil {
		err = c.commit(ctx, t, cp, result)
	}

	status, errMsg := c.outcome(ctx, err)
	c.registry.Remove(jobID)
	c.finish(ctx, t, status, errMsg)

	c.logger.InfoContext(ctx, "Job finished",
		slog.String("status", status),
		slog.Duration("duration", c.now().Sub(start)),
	)
}

// checkpoint returns the function scanners call between stages. A pending
// pause is persisted as PAUSED and blocks until resume, terminate or
// shutdown.
func (c *Controller) checkpoint(t *task) recon.Checkpoint {
	return func(ctx context.Context) error {
		h := t.handle
		if h.Terminated() {
			return domain.ErrTerminated
		}
		if !h.Paused() {
			return nil
		}

		c.setStatus(ctx, t, domain.JobStatusPaused)
		c.logger.InfoContext(ctx, "Job paused")

		if err := h.WaitResumed(ctx); err != nil {
			return err
		}

		c.setStatus(ctx, t, domain.JobStatusInProgress)
		c.logger.InfoContext(ctx, "Job resumed")
		return nil
	}
}

// commit passes a final checkpoint, seals the handle and stores the result.
// After sealing, pause and terminate report the job as not running.
func (c *Controller) commit(ctx context.Context, t *task, cp recon.Checkpoint, result *scanner.Result) error {
	for {
		if err := cp(ctx); err != nil {
			return err
		}
		err := t.handle.Seal()
		if errors.Is(err, registry.ErrPaused) {
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	if result == nil {
		result = &scanner.Result{Payload: struct{}{}}
	}
	data, err := json.Marshal(result.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()
	if err := c.store.SaveResult(writeCtx, t.job.ID, data, result.Rows); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// outcome maps a run error onto a terminal status
func (c *Controller) outcome(ctx context.Context, err error) (string, string) {
	switch {
	case err == nil:
		return domain.JobStatusCompleted, ""
	case errors.Is(err, domain.ErrTerminated):
		return domain.JobStatusTerminated, ""
	case c.runCtx.Err() != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil):
		return domain.JobStatusFailed, reasonShutdown
	default:
		c.logger.ErrorContext(ctx, "Job execution failed", slog.String("error", err.Error()))
		return domain.JobStatusFailed, err.Error()
	}
}

// finish writes a terminal status. The write outlives ctx cancellation.
func (c *Controller) finish(ctx context.Context, t *task, status, errMsg string) {
	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := c.store.UpdateJobStatus(writeCtx, t.job.ID, status, errMsg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to update job status",
			slog.String("job_id", t.job.ID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
	t.job.Status = status
	t.job.Error = errMsg
	t.job.UpdatedAt = c.now().UTC()
	c.publish(writeCtx, t.job, errMsg)
}

// setStatus records the IN_PROGRESS and PAUSED transitions
func (c *Controller) setStatus(ctx context.Context, t *task, status string) {
	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := c.store.UpdateJobStatus(writeCtx, t.job.ID, status, ""); err != nil {
		c.logger.WarnContext(ctx, "Failed to update job status",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
		return
	}
	t.job.Status = status
	c.publish(writeCtx, t.job, "")
}

func (c *Controller) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.statusTimeout)
}
