package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrScheduledRunInThePast is returned when a next run is more than
	// staleThreshold behind the clock.
	ErrScheduledRunInThePast = errors.New("scheduled run is in the past")
	ErrJobAlreadyFinished    = errors.New("job already finished")
	ErrJobNotLinked          = errors.New("job is not linked to a scheduler")
	ErrAlreadyLinked         = errors.New("job is linked to another scheduler")
	ErrDuplicateJobID        = errors.New("duplicate job id")
	ErrInvalidJobID          = errors.New("job id must be comparable")
	ErrInvalidCountdown      = errors.New("countdown must be positive")
	ErrNoProducer            = errors.New("datetime job needs a producer")
	ErrNoExecutor            = errors.New("job needs an executor")
	// ErrNoNextRun wraps a producer failure. The job stays linked and paused.
	ErrNoNextRun = errors.New("no next run")
)

// JobError ties an executor or producer failure to the job it came from.
type JobError struct {
	JobID any
	Err   error
}

func (e *JobError) Error() string { return fmt.Sprintf("job %v: %v", e.JobID, e.Err) }
func (e *JobError) Unwrap() error { return e.Err }
