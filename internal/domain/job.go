package domain

import (
	"encoding/json"
	"time"
)

// Job is one persisted scan execution
type Job struct {
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Kind      string          `db:"kind"`
	Status    string          `db:"status"`
	Payload   json.RawMessage `db:"payload"`
	Error     string          `db:"error"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
	CreatedBy string          `db:"created_by"`
}

// JobResult is the merged output of a finished job
type JobResult struct {
	JobID     string          `db:"job_id"`
	Result    json.RawMessage `db:"result"`
	CreatedAt time.Time       `db:"created_at"`
}

// ResultRow is one discovered subdomain recorded for a job
type ResultRow struct {
	Domain    string `db:"domain"`
	Subdomain string `db:"subdomain"`
}

// ScheduledJob is a deferred request to create a Job at a future time
type ScheduledJob struct {
	ID             string          `db:"id"`
	JobName        string          `db:"job_name"`
	JobKind        string          `db:"job_kind"`
	Payload        json.RawMessage `db:"payload"`
	ScheduledFor   time.Time       `db:"scheduled_for"`
	Status         string          `db:"status"`
	TriggeredJobID *string         `db:"triggered_job_id"`
	TriggeredAt    *time.Time      `db:"triggered_at"`
	Error          *string         `db:"error"`
	CreatedAt      time.Time       `db:"created_at"`
	CreatedBy      string          `db:"created_by"`
}
