package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TaskManager runs units of work submitted by async executors.
type TaskManager interface {
	// Submit starts or queues t. When the overlap policy drops t the handle
	// is nil and the error is ErrSkipped.
	Submit(t Task) (*Handle, error)
	// Close cancels running tasks, drops queued ones and waits for the
	// running ones to return.
	Close(ctx context.Context) error
	Snapshot() Snapshot
}

// Task is a unit of work.
type Task struct {
	Name string
	// Key identifies the task for SequentialDedup. It defaults to Name.
	Key string
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Handle tracks one submitted task.
type Handle struct {
	ID   string
	Name string

	key     string
	run     func(ctx context.Context) error
	timeout time.Duration
	queued  time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc

	once sync.Once
	done chan struct{}
	err  error
}

// Cancel cancels the task's context. A queued task never starts.
func (h *Handle) Cancel() { h.cancel(context.Canceled) }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Err is the task's result once Done is closed, nil before.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task is done or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		h.cancel(context.Canceled)
		close(h.done)
	})
}

// ParallelPolicy decides what a full LimitingParallel does with a new task.
type ParallelPolicy int

const (
	// ParallelSkip drops the new task.
	ParallelSkip ParallelPolicy = iota
	// ParallelCancelFirst cancels the oldest running task.
	ParallelCancelFirst
	// ParallelCancelLast cancels the newest running task.
	ParallelCancelLast
)

var parallelPolicyNames = [...]string{
	ParallelSkip:        "skip",
	ParallelCancelFirst: "cancel_first",
	ParallelCancelLast:  "cancel_last",
}

func (p ParallelPolicy) String() string {
	if p < 0 || int(p) >= len(parallelPolicyNames) {
		return fmt.Sprintf("ParallelPolicy(%d)", int(p))
	}
	return parallelPolicyNames[p]
}

func ParseParallelPolicy(s string) (ParallelPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ParallelSkip, nil
	}
	for i, n := range parallelPolicyNames {
		if n == s {
			return ParallelPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: parallel %q", ErrInvalidPolicy, s)
}

// SequentialPolicy decides what a full LimitingSequential does with a new task.
type SequentialPolicy int

const (
	// SequentialSkip drops the new task.
	SequentialSkip SequentialPolicy = iota
	// SequentialSkipFirst drops the oldest queued task.
	SequentialSkipFirst
	// SequentialSkipLast drops the newest queued task.
	SequentialSkipLast
)

var sequentialPolicyNames = [...]string{
	SequentialSkip:      "skip",
	SequentialSkipFirst: "skip_first",
	SequentialSkipLast:  "skip_last",
}

func (p SequentialPolicy) String() string {
	if p < 0 || int(p) >= len(sequentialPolicyNames) {
		return fmt.Sprintf("SequentialPolicy(%d)", int(p))
	}
	return sequentialPolicyNames[p]
}

func ParseSequentialPolicy(s string) (SequentialPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SequentialSkip, nil
	}
	for i, n := range sequentialPolicyNames {
		if n == s {
			return SequentialPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: sequential %q", ErrInvalidPolicy, s)
}

type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// TaskEvent is published on the event bus for task lifecycle events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Manager    string        `json:"manager"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

const (
	EventStarted  = "task.started"
	EventFinished = "task.finished"
	EventFailed   = "task.failed"
	EventCanceled = "task.canceled"
	EventSkipped  = "task.skipped"
)

// Snapshot is a diagnostics view of a manager.
type Snapshot struct {
	Kind      string
	Running   int
	Queued    int
	Submitted uint64
	Skipped   uint64
	Failed    uint64
	Canceled  uint64
	History   []HistoryItem
}
