package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"schedkit/internal/eventbus"
	logx "schedkit/pkg/logx"
)

const defaultHistorySize = 200

type options struct {
	log         logx.Logger
	bus         eventbus.Bus
	historySize int
}

type Option func(*options)

func WithLogger(log logx.Logger) Option { return func(o *options) { o.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(o *options) { o.bus = bus } }

// WithHistory keeps the last n finished tasks in Snapshot.
func WithHistory(n int) Option { return func(o *options) { o.historySize = n } }

// core holds what every manager shares: ids, execution, history and counters.
type core struct {
	kind        string
	log         logx.Logger
	bus         eventbus.Bus
	historySize int

	wg    sync.WaitGroup
	idSeq atomic.Uint64

	submitted atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
	canceled  atomic.Uint64

	hmu     sync.Mutex
	history []HistoryItem
}

func newCore(kind string, opts []Option) *core {
	o := options{historySize: defaultHistorySize}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	return &core{
		kind:        kind,
		log:         o.log.With(logx.String("comp", "taskmanager"), logx.String("kind", kind)),
		bus:         o.bus,
		historySize: o.historySize,
	}
}

func (c *core) newHandle(t Task) (*Handle, error) {
	if t.Run == nil {
		return nil, ErrNoRun
	}
	name := strings.TrimSpace(t.Name)
	if name == "" {
		name = "task"
	}
	key := t.Key
	if key == "" {
		key = name
	}
	now := time.Now()
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Handle{
		ID:      fmt.Sprintf("tsk-%x-%x", now.UnixNano(), c.idSeq.Add(1)),
		Name:    name,
		key:     key,
		run:     t.Run,
		timeout: t.Timeout,
		queued:  now,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}, nil
}

func (c *core) publish(typ string, ev TaskEvent) {
	if c.bus == nil {
		return
	}
	ev.Manager = c.kind
	c.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}

// skip reports a task that was never accepted.
func (c *core) skip(t Task) (*Handle, error) {
	c.skipped.Add(1)
	c.log.Debug("task skipped", logx.String("task", t.Name))
	c.publish(EventSkipped, TaskEvent{Name: t.Name, Error: ErrSkipped.Error()})
	return nil, ErrSkipped
}

// drop finishes a queued task that will never run.
func (c *core) drop(h *Handle, cause error) {
	h.cancel(cause)
	h.finish(cause)
	c.skipped.Add(1)
	c.log.Debug("queued task dropped", logx.String("task", h.Name), logx.String("id", h.ID), logx.Err(cause))
	c.publish(EventSkipped, TaskEvent{ID: h.ID, Name: h.Name, Error: cause.Error()})
}

// execute runs h on the calling goroutine. Panics become errors.
func (c *core) execute(h *Handle) {
	start := time.Now()
	queueDelay := max(start.Sub(h.queued), 0)

	if h.ctx.Err() != nil {
		err := withCause(h.ctx, context.Canceled)
		h.finish(err)
		c.canceled.Add(1)
		c.record(HistoryItem{ID: h.ID, Name: h.Name, Started: start, QueueDelay: queueDelay, Error: err.Error()})
		c.publish(EventCanceled, TaskEvent{ID: h.ID, Name: h.Name, Started: start, QueueDelay: queueDelay, Error: err.Error()})
		return
	}

	c.log.Debug("task started", logx.String("task", h.Name), logx.String("id", h.ID), logx.Duration("queue_delay", queueDelay))
	c.publish(EventStarted, TaskEvent{ID: h.ID, Name: h.Name, Started: start, QueueDelay: queueDelay})

	ctx := h.ctx
	var cancel context.CancelFunc
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
	}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				c.log.Error("task panicked", logx.String("task", h.Name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		err = h.run(ctx)
	}()
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	item := HistoryItem{ID: h.ID, Name: h.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	ev := TaskEvent{ID: h.ID, Name: h.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	switch {
	case err == nil:
		c.log.Debug("task finished", logx.String("task", h.Name), logx.Duration("dur", dur))
		c.publish(EventFinished, ev)
	case h.ctx.Err() != nil && errors.Is(err, context.Canceled):
		err = withCause(h.ctx, err)
		item.Error, ev.Error = err.Error(), err.Error()
		c.canceled.Add(1)
		c.log.Debug("task canceled", logx.String("task", h.Name), logx.Duration("dur", dur))
		c.publish(EventCanceled, ev)
	default:
		item.Error, ev.Error = err.Error(), err.Error()
		c.failed.Add(1)
		// The submitter reports the error; keep this at debug.
		c.log.Debug("task failed", logx.String("task", h.Name), logx.Duration("dur", dur), logx.Err(err))
		c.publish(EventFailed, ev)
	}
	c.record(item)
	h.finish(err)
}

// withCause attaches the reason ctx was canceled with (ErrClosed, say) to
// err, so a task reports the same cause whether or not it had started.
func withCause(ctx context.Context, err error) error {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(err, cause) {
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}

func (c *core) record(item HistoryItem) {
	if c.historySize <= 0 {
		return
	}
	c.hmu.Lock()
	c.history = append(c.history, item)
	if len(c.history) > c.historySize {
		c.history = c.history[len(c.history)-c.historySize:]
	}
	c.hmu.Unlock()
}

func (c *core) snapshot(running, queued int) Snapshot {
	c.hmu.Lock()
	h := make([]HistoryItem, len(c.history))
	copy(h, c.history)
	c.hmu.Unlock()
	return Snapshot{
		Kind:      c.kind,
		Running:   running,
		Queued:    queued,
		Submitted: c.submitted.Load(),
		Skipped:   c.skipped.Load(),
		Failed:    c.failed.Load(),
		Canceled:  c.canceled.Load(),
		History:   h,
	}
}

// wait blocks until every started task returned or ctx ends.
func (c *core) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.log.Warn("task manager close timed out", logx.Err(ctx.Err()))
		return ctx.Err()
	}
}
