package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrResultNotFound is returned when a job has no stored result yet
	ErrResultNotFound = errors.New("job result not found")

	// ErrJobNotRunning is returned by control operations when the job exists
	// but has no active worker (it already reached a terminal state)
	ErrJobNotRunning = errors.New("job is not running")

	// ErrInvalidTransition is returned when a control operation does not apply
	// to the job's current state, e.g. resuming a job that is not paused
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrUnknownKind is returned when no scanner is registered for a job kind
	ErrUnknownKind = errors.New("unknown job kind")

	// ErrInvalidPayload is returned when job payload JSON is malformed or
	// misses a required field
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrDuplicateName is returned by storage when a job name is already taken
	ErrDuplicateName = errors.New("job name already exists")

	// ErrQueueFull is returned when the worker pool cannot accept more jobs
	ErrQueueFull = errors.New("job queue is full")

	// ErrTerminated signals that an operator terminated the job. It is a
	// cancellation signal, not a failure.
	ErrTerminated = errors.New("job was terminated")

	// ErrScheduleNotFound is returned when a scheduled job cannot be found
	ErrScheduleNotFound = errors.New("scheduled job not found")

	// ErrScheduleNotPending is returned when a scheduled job is modified after
	// the dispatcher claimed it
	ErrScheduleNotPending = errors.New("scheduled job is not pending")

	// ErrScheduleInPast is returned when scheduled_for is not in the future
	ErrScheduleInPast = errors.New("scheduled_for must be in the future")
)
