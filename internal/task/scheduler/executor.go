package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schedkit/internal/task/engine"
)

// Executor runs the user callback of a job. The scheduler calls Execute on
// its loop goroutine, so long work belongs in an AsyncExecutor.
type Executor interface {
	Execute(ctx context.Context) error
}

// SyncExecutor runs the callback on the scheduler loop.
type SyncExecutor func(ctx context.Context) error

func (f SyncExecutor) Execute(ctx context.Context) error { return f(ctx) }

// AsyncExecutor hands the callback to a task manager and returns at once.
// Errors and panics of the callback go to HandleError.
type AsyncExecutor struct {
	Manager engine.TaskManager
	Name    string
	// Key groups submissions for SequentialDedup. It defaults to Name.
	Key     string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

func (e *AsyncExecutor) Execute(context.Context) error {
	if e.Manager == nil || e.Run == nil {
		return ErrNoExecutor
	}
	_, err := e.Manager.Submit(engine.Task{
		Name:    e.Name,
		Key:     e.Key,
		Timeout: e.Timeout,
		Run:     e.wrap,
	})
	if errors.Is(err, engine.ErrSkipped) {
		return nil
	}
	return err
}

func (e *AsyncExecutor) wrap(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil && !errors.Is(ctx.Err(), context.Canceled) {
			HandleError(&JobError{JobID: e.Name, Err: err})
		}
	}()
	return e.Run(ctx)
}
