package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/scan-control/internal/domain"
)

const jobColumns = `id, name, kind, status, payload, COALESCE(error, '') AS error, created_by, created_at, updated_at`

// CreateJob inserts a job. A taken name yields domain.ErrDuplicateName.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			id, name, kind, status, payload,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Name,
		job.Kind,
		job.Status,
		jsonOrEmpty(job.Payload),
		job.CreatedBy,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateName, job.Name)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id
func (s *Storage) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	var job domain.Job
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// JobFilter narrows ListJobs
type JobFilter struct {
	Kind      string
	Status    string
	CreatedBy string
	PageSize  int
	Cursor    *JobCursor
}

// JobCursor points at the last job of the previous page
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs, newest first. The extra row tells
// the caller whether another page exists.
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, filter.Kind)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.CreatedBy != "" {
		query += fmt.Sprintf(" AND created_by = $%d", argIdx)
		args = append(args, filter.CreatedBy)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// UpdateJobStatus changes the status of an active job. Terminal jobs are
// never modified; updating one returns domain.ErrJobNotRunning.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
			error = $2,
			updated_at = NOW()
		WHERE id = $3
		  AND status = ANY($4)
	`

	res, err := s.db.ExecContext(ctx, query, status, nullIfEmpty(errMsg), jobID, activeJobStatuses)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Warn("Job status update - no rows affected (job may not be running)",
			slog.String("job_id", jobID),
			slog.String("status", status),
		)
		return domain.ErrJobNotRunning
	}

	s.logger.Debug("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)
	return nil
}

// FailActiveJobs marks every IN_PROGRESS or PAUSED job FAILED with reason
func (s *Storage) FailActiveJobs(ctx context.Context, reason string) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1,
			error = $2,
			updated_at = NOW()
		WHERE status = ANY($3)
	`

	res, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, reason, activeJobStatuses)
	if err != nil {
		return 0, fmt.Errorf("failed to fail active jobs: %w", err)
	}
	return res.RowsAffected()
}

// SaveResult stores the result document and the per-subdomain rows of a job
// in one transaction
func (s *Storage) SaveResult(ctx context.Context, jobID string, result json.RawMessage, rows []domain.ResultRow) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_results (job_id, result, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_id) DO UPDATE SET result = EXCLUDED.result, created_at = NOW()
	`, jobID, jsonOrEmpty(result))
	if err != nil {
		return fmt.Errorf("failed to save job result: %w", err)
	}

	for _, row := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO scan_results (job_id, domain, subdomain)
			VALUES ($1, $2, $3)
		`, jobID, row.Domain, row.Subdomain)
		if err != nil {
			return fmt.Errorf("failed to save scan result row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

// GetResult returns the stored result document of a job
func (s *Storage) GetResult(ctx context.Context, jobID string) (*domain.JobResult, error) {
	var res domain.JobResult
	err := s.db.GetContext(ctx, &res, `SELECT job_id, result, created_at FROM job_results WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}
	return &res, nil
}

// ListResultRows returns the subdomains recorded for a job
func (s *Storage) ListResultRows(ctx context.Context, jobID string) ([]domain.ResultRow, error) {
	rows := []domain.ResultRow{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT domain, subdomain FROM scan_results WHERE job_id = $1 ORDER BY subdomain`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan results: %w", err)
	}
	return rows, nil
}
