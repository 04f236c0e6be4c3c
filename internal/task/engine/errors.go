package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSkipped is returned by Submit when the overlap policy drops the new
	// task, and is the Err of a queued task that a later submission displaced.
	ErrSkipped = errors.New("task skipped by overlap policy")

	ErrClosed        = errors.New("task manager closed")
	ErrInvalidLimit  = errors.New("task manager limit must be at least 1")
	ErrInvalidPolicy = errors.New("unknown task manager policy")
	ErrInvalidKind   = errors.New("unknown task manager kind")
	ErrNoRun         = errors.New("task Run is nil")
)

// NoRetry marks an error as permanent so WithRetry stops immediately.
//
//	return engine.NoRetry(fmt.Errorf("bad input: %w", err))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }

// RetryAfter attaches a suggested delay before the next attempt. WithRetry
// honors it up to the policy's MaxDelay.
func RetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return retryAfterError{err: err, after: max(after, 0)}
}

// RetryAfterError is implemented by errors that carry an explicit retry delay.
type RetryAfterError interface {
	error
	RetryAfter() time.Duration
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e retryAfterError) Error() string             { return fmt.Sprintf("retry-after(%s): %v", e.after, e.err) }
func (e retryAfterError) Unwrap() error             { return e.err }
func (e retryAfterError) RetryAfter() time.Duration { return e.after }
