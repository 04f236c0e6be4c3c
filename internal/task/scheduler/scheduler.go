package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"schedkit/internal/eventbus"
	"schedkit/internal/producer"
	"schedkit/internal/runtime/supervisor"
	logx "schedkit/pkg/logx"
)

const (
	// staleThreshold tolerates clock jitter when a next run is set.
	staleThreshold = 100 * time.Millisecond
	// maxSleep caps the timer so wall-clock jumps are noticed.
	maxSleep = 60 * time.Second
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option { return func(s *Scheduler) { s.log = log } }

func WithBus(bus eventbus.Bus) Option { return func(s *Scheduler) { s.bus = bus } }

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// Scheduler holds running jobs ordered by next run and fires them from a
// single loop goroutine.
type Scheduler struct {
	log   logx.Logger
	bus   eventbus.Bus
	clock Clock

	mu    sync.Mutex
	queue runQueue
	jobs  map[any]*jobBase
	seq   uint64

	wakeCh chan struct{}

	runMu sync.Mutex
	sup   *supervisor.Supervisor
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  ClockFunc(time.Now),
		jobs:   map[any]*jobBase{},
		wakeCh: make(chan struct{}, 1),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.log = s.log.With(logx.String("comp", "scheduler"))
	return s
}

// Start runs the fire loop until Stop or until ctx is cancelled. A panic in
// the loop restarts it.
func (s *Scheduler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log))
	s.sup.GoRestart("scheduler.loop", s.run, supervisor.WithRestartBackoff(100*time.Millisecond, 5*time.Second))

	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	s.log.Info("scheduler started", logx.Int("jobs", n))
}

// Stop ends the loop and waits for it. Jobs stay linked, so a later Start
// resumes them.
func (s *Scheduler) Stop(ctx context.Context) error {
	start := time.Now()
	s.runMu.Lock()
	sup := s.sup
	s.sup = nil
	s.runMu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	return err
}

func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// do runs fn under the lock, then delivers the callbacks fn queued and
// wakes the loop so the timer follows the earliest entry.
func (s *Scheduler) do(fn func(n *pending) error) error {
	var n pending
	s.mu.Lock()
	err := fn(&n)
	s.mu.Unlock()
	n.flush(s)
	s.wake()
	return err
}

// setNextRunLocked arms j at at, or pauses it when at is zero.
func (s *Scheduler) setNextRunLocked(j *jobBase, at time.Time, n *pending) error {
	if at.IsZero() {
		s.queue.remove(j.entry)
		j.entry = nil
		j.mu.Lock()
		j.status, j.next = StatusPaused, time.Time{}
		j.mu.Unlock()
		n.update(j)
		return nil
	}
	if at.Before(s.clock.Now().Add(-staleThreshold)) {
		return fmt.Errorf("%w: %s", ErrScheduledRunInThePast, at.Format(time.RFC3339Nano))
	}
	j.mu.Lock()
	j.status, j.next = StatusRunning, at
	j.mu.Unlock()
	s.updateLocked(j)
	n.update(j)
	return nil
}

// updateLocked re-queues j at its current next run, or drops it from the
// queue when it is not running.
func (s *Scheduler) updateLocked(j *jobBase) {
	s.queue.remove(j.entry)
	j.entry = nil
	j.mu.Lock()
	running, at := j.status == StatusRunning, j.next
	j.mu.Unlock()
	if !running {
		return
	}
	s.seq++
	j.entry = &entry{job: j, at: at, seq: s.seq}
	s.queue.add(j.entry)
}

func (s *Scheduler) finishLocked(j *jobBase, n *pending) {
	s.queue.remove(j.entry)
	j.entry = nil
	if cur, ok := s.jobs[j.id]; ok && cur == j {
		delete(s.jobs, j.id)
	}
	j.mu.Lock()
	j.status, j.next, j.sched = StatusFinished, time.Time{}, nil
	j.mu.Unlock()
	n.finished(j)
}

// Add links job to s and computes its first run. Adding a job that is
// already linked to s is a no-op. When the first run cannot be computed the
// job stays linked and paused, the error goes to the error handler and Add
// returns it wrapping ErrNoNextRun.
func (s *Scheduler) Add(job Job) error {
	if job == nil {
		return ErrNoExecutor
	}
	j := job.base()
	var paused error
	err := s.do(func(n *pending) error {
		j.mu.Lock()
		cur, st := j.sched, j.status
		j.mu.Unlock()
		switch {
		case cur == s:
			return nil
		case cur != nil:
			return ErrAlreadyLinked
		case st == StatusFinished:
			return ErrJobAlreadyFinished
		}
		if _, dup := s.jobs[j.id]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateJobID, j.id)
		}

		s.seq++
		j.mu.Lock()
		j.sched, j.added = s, s.seq
		j.mu.Unlock()
		s.jobs[j.id] = j

		var first pending
		if err := j.v.updateFirst(s, s.clock.Now(), &first); err != nil {
			if errors.Is(err, ErrNoNextRun) {
				n.notices = append(n.notices, first.notices...)
				paused = err
				return nil
			}
			s.queue.remove(j.entry)
			j.entry = nil
			delete(s.jobs, j.id)
			j.mu.Lock()
			j.sched, j.status, j.next = nil, StatusCreated, time.Time{}
			j.mu.Unlock()
			return err
		}
		n.notices = append(n.notices, first.notices...)
		s.log.Debug("job added", logx.String("job", fmt.Sprint(j.id)), logx.String("kind", j.v.kind()))
		return nil
	})
	if err != nil {
		return err
	}
	if paused != nil {
		s.log.Debug("job added paused", logx.String("job", fmt.Sprint(j.id)), logx.Err(paused))
		HandleError(&JobError{JobID: j.id, Err: paused})
		return paused
	}
	return nil
}

// Remove cancels the job with the given id.
func (s *Scheduler) Remove(id any) error {
	j, ok := s.Job(id)
	if !ok {
		return fmt.Errorf("%w: %v", ErrJobNotLinked, id)
	}
	return j.Cancel()
}

// At links a one-time job firing at t.
func (s *Scheduler) At(t time.Time, exec Executor, opts ...JobOption) (*OneTimeJob, error) {
	j, err := NewOneTimeJob(t, exec, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Add(j); err != nil {
		return nil, err
	}
	return j, nil
}

// Countdown links a countdown job and arms it.
func (s *Scheduler) Countdown(d time.Duration, exec Executor, opts ...JobOption) (*CountdownJob, error) {
	j, err := NewCountdownJob(d, exec, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Add(j); err != nil {
		return nil, err
	}
	if err := j.Reset(); err != nil {
		return nil, err
	}
	return j, nil
}

// Every links a job firing at each instant p yields.
// Every links a job that fires at every instant p yields. When p has no
// first run the paused job is returned with an error wrapping ErrNoNextRun.
func (s *Scheduler) Every(p producer.Producer, exec Executor, opts ...JobOption) (*DateTimeJob, error) {
	j, err := NewDateTimeJob(p, exec, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Add(j); err != nil {
		if errors.Is(err, ErrNoNextRun) {
			return j, err
		}
		return nil, err
	}
	return j, nil
}

func (s *Scheduler) run(ctx context.Context) error {
	timer := time.NewTimer(maxSleep)
	defer timer.Stop()
	for {
		s.fireDue(ctx)
		if ctx.Err() != nil {
			return nil
		}
		timer.Reset(s.sleepFor())
		select {
		case <-ctx.Done():
			return nil
		case <-s.wakeCh:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) sleepFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.queue.peek()
	if !ok {
		return maxSleep
	}
	return min(max(e.at.Sub(s.clock.Now()), 0), maxSleep)
}

func (s *Scheduler) fireDue(ctx context.Context) {
	s.mu.Lock()
	due := s.queue.popDue(s.clock.Now())
	for _, e := range due {
		e.job.entry = nil
	}
	s.mu.Unlock()

	for _, e := range due {
		if ctx.Err() != nil {
			// Put back what was not fired so a restart sees it.
			_ = s.do(func(*pending) error {
				if e.job.entry == nil && e.job.Status() == StatusRunning {
					s.updateLocked(e.job)
				}
				return nil
			})
			continue
		}
		s.fire(ctx, e.job)
	}
}

// unarmedLocked reports whether j is still running and was not re-armed
// since it left the queue.
func (s *Scheduler) unarmedLocked(j *jobBase) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entry == nil && j.status == StatusRunning && j.sched == s
}

func (s *Scheduler) fire(ctx context.Context, j *jobBase) {
	s.mu.Lock()
	ok := s.unarmedLocked(j)
	s.mu.Unlock()
	if !ok {
		return
	}

	start := time.Now()
	err := s.execute(ctx, j)
	if err != nil {
		HandleError(&JobError{JobID: j.id, Err: err})
	}
	s.log.Debug("job fired", logx.String("job", fmt.Sprint(j.id)), logx.Duration("took", time.Since(start)), logx.Err(err))

	var updateErr error
	_ = s.do(func(n *pending) error {
		now := s.clock.Now()
		j.mu.Lock()
		j.last = now
		j.mu.Unlock()
		if s.unarmedLocked(j) {
			updateErr = j.v.updateNext(s, now, n)
		}
		return nil
	})
	if updateErr != nil {
		HandleError(&JobError{JobID: j.id, Err: updateErr})
		// A job that cannot compute its next run is paused, not dropped.
		if st := j.Status(); st == StatusRunning {
			_ = j.pause()
		}
	}
	s.publish(EventJobFired, j, err)
}

func (s *Scheduler) execute(ctx context.Context, j *jobBase) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("job panicked", logx.String("job", fmt.Sprint(j.id)), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return j.exec.Execute(ctx)
}
