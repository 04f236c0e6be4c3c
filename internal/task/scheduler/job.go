package scheduler

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status int

const (
	StatusCreated Status = iota
	StatusRunning
	StatusPaused
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Job is implemented by *OneTimeJob, *CountdownJob and *DateTimeJob.
type Job interface {
	ID() any
	Status() Status
	// NextRun reports the armed instant. ok is false while the job is
	// paused, finished or not yet linked.
	NextRun() (t time.Time, ok bool)
	LastRun() (t time.Time, ok bool)
	// Cancel finishes the job. A second call returns ErrJobAlreadyFinished.
	Cancel() error
	// OnUpdate registers fn for every next-run change.
	OnUpdate(fn func(Job)) (unregister func())
	// OnFinished registers fn for the transition to StatusFinished.
	OnFinished(fn func(Job)) (unregister func())

	base() *jobBase
}

type JobOption func(*jobBase)

// WithID sets the job id. It must be comparable. The default is a random
// UUID string.
func WithID(id any) JobOption {
	return func(j *jobBase) {
		if id != nil {
			j.id = id
		}
	}
}

// variant is the per-kind part of the state machine. Both hooks run with
// the scheduler lock held.
type variant interface {
	kind() string
	updateFirst(s *Scheduler, now time.Time, n *pending) error
	updateNext(s *Scheduler, now time.Time, n *pending) error
}

type callback struct {
	id uint64
	fn func(Job)
}

type jobBase struct {
	id   any
	exec Executor
	self Job
	v    variant

	// mu guards the fields below. Writes to a linked job also hold the
	// scheduler lock.
	mu     sync.Mutex
	sched  *Scheduler
	status Status
	next   time.Time
	last   time.Time
	added  uint64

	// entry is the job's slot in the run queue. Guarded by the scheduler lock.
	entry *entry

	cbMu       sync.Mutex
	cbSeq      uint64
	onUpdate   []callback
	onFinished []callback
}

func (j *jobBase) init(self Job, v variant, exec Executor, opts []JobOption) error {
	j.self, j.v, j.exec = self, v, exec
	for _, o := range opts {
		if o != nil {
			o(j)
		}
	}
	if j.id == nil {
		j.id = uuid.NewString()
	}
	if !reflect.ValueOf(j.id).Comparable() {
		return fmt.Errorf("%w: %T", ErrInvalidJobID, j.id)
	}
	if exec == nil {
		return ErrNoExecutor
	}
	return nil
}

func (j *jobBase) base() *jobBase { return j }

func (j *jobBase) ID() any { return j.id }

func (j *jobBase) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *jobBase) NextRun() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next, !j.next.IsZero()
}

func (j *jobBase) LastRun() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last, !j.last.IsZero()
}

func (j *jobBase) String() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return fmt.Sprintf("<%s id=%v status=%s next=%s>", j.v.kind(), j.id, j.status, j.next.Format(time.RFC3339))
}

// linked returns the job's scheduler, or the error that explains why there
// is none.
func (j *jobBase) linked() (*Scheduler, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusFinished {
		return nil, ErrJobAlreadyFinished
	}
	if j.sched == nil {
		return nil, ErrJobNotLinked
	}
	return j.sched, nil
}

// mutate runs fn under the scheduler lock after checking that the job is
// still linked to s.
func (j *jobBase) mutate(fn func(s *Scheduler, n *pending) error) error {
	s, err := j.linked()
	if err != nil {
		return err
	}
	return s.do(func(n *pending) error {
		cur, err := j.linked()
		if err != nil {
			return err
		}
		if cur != s {
			return ErrJobNotLinked
		}
		return fn(s, n)
	})
}

func (j *jobBase) Cancel() error {
	return j.mutate(func(s *Scheduler, n *pending) error {
		s.finishLocked(j, n)
		return nil
	})
}

// pause removes the job from the run queue and keeps it linked.
func (j *jobBase) pause() error {
	return j.mutate(func(s *Scheduler, n *pending) error {
		return s.setNextRunLocked(j, time.Time{}, n)
	})
}

func (j *jobBase) OnUpdate(fn func(Job)) func() { return j.register(&j.onUpdate, fn) }

func (j *jobBase) OnFinished(fn func(Job)) func() { return j.register(&j.onFinished, fn) }

func (j *jobBase) register(list *[]callback, fn func(Job)) func() {
	if fn == nil {
		return func() {}
	}
	j.cbMu.Lock()
	j.cbSeq++
	id := j.cbSeq
	*list = append(*list, callback{id: id, fn: fn})
	j.cbMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			j.cbMu.Lock()
			defer j.cbMu.Unlock()
			for i, c := range *list {
				if c.id == id {
					*list = append((*list)[:i:i], (*list)[i+1:]...)
					return
				}
			}
		})
	}
}

func (j *jobBase) callbacks(finished bool) []func(Job) {
	j.cbMu.Lock()
	defer j.cbMu.Unlock()
	list := j.onUpdate
	if finished {
		list = j.onFinished
	}
	out := make([]func(Job), len(list))
	for i, c := range list {
		out[i] = c.fn
	}
	return out
}

type notice struct {
	job      *jobBase
	finished bool
}

// pending collects callback notifications while the scheduler lock is held.
type pending struct {
	notices []notice
}

func (n *pending) update(j *jobBase)   { n.notices = append(n.notices, notice{job: j}) }
func (n *pending) finished(j *jobBase) { n.notices = append(n.notices, notice{job: j, finished: true}) }

// flush runs the queued callbacks. Panics go to HandleError.
func (n *pending) flush(s *Scheduler) {
	for _, no := range n.notices {
		s.publishJob(no.job, no.finished)
		for _, fn := range no.job.callbacks(no.finished) {
			runCallback(no.job, fn)
		}
	}
	n.notices = nil
}

func runCallback(j *jobBase, fn func(Job)) {
	defer func() {
		if r := recover(); r != nil {
			HandleError(&JobError{JobID: j.id, Err: fmt.Errorf("callback panic: %v", r)})
		}
	}()
	fn(j.self)
}
