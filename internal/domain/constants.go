package domain

// Job status constants
const (
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusPaused     = "PAUSED"
	JobStatusTerminated = "TERMINATED"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

// Scheduled job status constants
const (
	ScheduleStatusPending    = "PENDING"
	ScheduleStatusTriggering = "TRIGGERING"
	ScheduleStatusInProgress = "IN_PROGRESS"
	ScheduleStatusCompleted  = "COMPLETED"
	ScheduleStatusFailed     = "FAILED"
	ScheduleStatusCancelled  = "CANCELLED"
)

// IsTerminalJobStatus reports whether a job status can no longer change.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusTerminated, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsActiveJobStatus reports whether a job in this status owns a registry entry.
func IsActiveJobStatus(status string) bool {
	return status == JobStatusInProgress || status == JobStatusPaused
}

// ScheduleStatusForJob maps the status of a triggered job onto the status of
// the schedule that triggered it. ok is false for unknown job statuses.
func ScheduleStatusForJob(jobStatus string) (status string, ok bool) {
	switch jobStatus {
	case JobStatusCompleted:
		return ScheduleStatusCompleted, true
	case JobStatusFailed, JobStatusTerminated:
		return ScheduleStatusFailed, true
	case JobStatusInProgress, JobStatusPaused:
		return ScheduleStatusInProgress, true
	default:
		return "", false
	}
}
