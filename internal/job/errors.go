package job

import "errors"

// Registry and state machine errors
var (
	// ErrNotFound is returned for an unknown job ID.
	ErrNotFound = errors.New("job not found")

	// ErrNotCompleted is returned when a result is requested before the job completed.
	ErrNotCompleted = errors.New("job not completed")

	// ErrNotFailed is returned when an error message is requested for a job that has not failed.
	ErrNotFailed = errors.New("job not failed")

	// ErrJobAlreadyTerminal is returned for a transition out of Completed or Failed.
	ErrJobAlreadyTerminal = errors.New("job already terminal")

	// ErrInvalidProgress is returned when progress would decrease or leave [0, 1].
	ErrInvalidProgress = errors.New("invalid progress")

	// ErrJobRunning is returned when evicting a job that is still running.
	ErrJobRunning = errors.New("job still running")

	// ErrRegistryClosed is returned by Create after Shutdown.
	ErrRegistryClosed = errors.New("registry closed")
)
