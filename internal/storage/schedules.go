package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cuongbtq/scan-control/internal/domain"
)

const scheduleColumns = `id, job_name, job_kind, payload, scheduled_for, status,
	triggered_job_id, triggered_at, error, created_at, created_by`

var claimedScheduleStatuses = pq.Array([]string{domain.ScheduleStatusTriggering, domain.ScheduleStatusInProgress})

// CreateSchedule inserts a PENDING scheduled job
func (s *Storage) CreateSchedule(ctx context.Context, sj *domain.ScheduledJob) error {
	query := `
		INSERT INTO scheduled_jobs (
			id, job_name, job_kind, payload, scheduled_for,
			status, created_at, created_by
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		sj.ID,
		sj.JobName,
		sj.JobKind,
		jsonOrEmpty(sj.Payload),
		sj.ScheduledFor,
		sj.Status,
		sj.CreatedAt,
		sj.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled job: %w", err)
	}
	return nil
}

// GetSchedule retrieves a scheduled job by id
func (s *Storage) GetSchedule(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	var sj domain.ScheduledJob
	err := s.db.GetContext(ctx, &sj, `SELECT `+scheduleColumns+` FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get scheduled job: %w", err)
	}
	return &sj, nil
}

// ListSchedules returns scheduled jobs ordered by scheduled_for, optionally
// filtered by status
func (s *Storage) ListSchedules(ctx context.Context, status string, limit int) ([]domain.ScheduledJob, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY scheduled_for DESC, id LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	out := []domain.ScheduledJob{}
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	return out, nil
}

// ListDueSchedules returns PENDING rows due at or before now, oldest first
func (s *Storage) ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledJob, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM scheduled_jobs
		WHERE status = $1
		  AND scheduled_for <= $2
		ORDER BY scheduled_for
		LIMIT $3
	`

	out := []domain.ScheduledJob{}
	if err := s.db.SelectContext(ctx, &out, query, domain.ScheduleStatusPending, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due scheduled jobs: %w", err)
	}
	return out, nil
}

// ListClaimedSchedules returns TRIGGERING or IN_PROGRESS rows that already
// reference a job
func (s *Storage) ListClaimedSchedules(ctx context.Context, limit int) ([]domain.ScheduledJob, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM scheduled_jobs
		WHERE status = ANY($1)
		  AND triggered_job_id IS NOT NULL
		ORDER BY triggered_at
		LIMIT $2
	`

	out := []domain.ScheduledJob{}
	if err := s.db.SelectContext(ctx, &out, query, claimedScheduleStatuses, limit); err != nil {
		return nil, fmt.Errorf("failed to list claimed scheduled jobs: %w", err)
	}
	return out, nil
}

// ClaimSchedule moves a row from PENDING to TRIGGERING. It reports false when
// the row was no longer PENDING.
func (s *Storage) ClaimSchedule(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = $1 WHERE id = $2 AND status = $3`,
		domain.ScheduleStatusTriggering, id, domain.ScheduleStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim scheduled job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkTriggered records the job created for a claimed row
func (s *Storage) MarkTriggered(ctx context.Context, id, jobID string, at time.Time, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET triggered_job_id = $1,
			triggered_at = $2,
			status = $3
		WHERE id = $4
		  AND status = $5
	`, jobID, at, status, id, domain.ScheduleStatusTriggering)
	if err != nil {
		return fmt.Errorf("failed to mark scheduled job triggered: %w", err)
	}
	return nil
}

// SetClaimedScheduleStatus updates a TRIGGERING or IN_PROGRESS row
func (s *Storage) SetClaimedScheduleStatus(ctx context.Context, id, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET status = $1,
			error = COALESCE($2, error)
		WHERE id = $3
		  AND status = ANY($4)
	`, status, nullIfEmpty(errMsg), id, claimedScheduleStatuses)
	if err != nil {
		return fmt.Errorf("failed to update scheduled job status: %w", err)
	}
	return nil
}

// FailUnfinishedClaims fails TRIGGERING rows that never recorded a job,
// which happens when a process stops between claim and trigger
func (s *Storage) FailUnfinishedClaims(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_jobs
		SET status = $1,
			error = $2
		WHERE status = $3
		  AND triggered_job_id IS NULL
	`, domain.ScheduleStatusFailed, reason, domain.ScheduleStatusTriggering)
	if err != nil {
		return 0, fmt.Errorf("failed to fail unfinished claims: %w", err)
	}
	return res.RowsAffected()
}

// CancelSchedule cancels a PENDING row
func (s *Storage) CancelSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET status = $1 WHERE id = $2 AND status = $3`,
		domain.ScheduleStatusCancelled, id, domain.ScheduleStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel scheduled job: %w", err)
	}
	return s.pendingOnly(ctx, res, id)
}

// RescheduleSchedule moves a PENDING row to a new time
func (s *Storage) RescheduleSchedule(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET scheduled_for = $1 WHERE id = $2 AND status = $3`,
		at, id, domain.ScheduleStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reschedule scheduled job: %w", err)
	}
	return s.pendingOnly(ctx, res, id)
}

// pendingOnly turns a zero-row update into ErrScheduleNotFound or
// ErrScheduleNotPending
func (s *Storage) pendingOnly(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetSchedule(ctx, id); err != nil {
		return err
	}
	return domain.ErrScheduleNotPending
}
