package scheduler

import (
	"fmt"
	"time"

	"schedkit/internal/producer"
)

// DateTimeJob fires at every instant its producer yields.
type DateTimeJob struct {
	jobBase
	producer producer.Producer
}

func NewDateTimeJob(p producer.Producer, exec Executor, opts ...JobOption) (*DateTimeJob, error) {
	if p == nil {
		return nil, ErrNoProducer
	}
	j := &DateTimeJob{producer: p}
	if err := j.init(j, j, exec, opts); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *DateTimeJob) Producer() producer.Producer { return j.producer }

// Pause keeps the job linked without a next run.
func (j *DateTimeJob) Pause() error { return j.pause() }

// Resume asks the producer for the next run after now. On error the job
// stays paused.
func (j *DateTimeJob) Resume() error {
	return j.mutate(func(s *Scheduler, n *pending) error {
		return j.updateNext(s, s.clock.Now(), n)
	})
}

func (j *DateTimeJob) kind() string { return "datetime" }

func (j *DateTimeJob) updateFirst(s *Scheduler, now time.Time, n *pending) error {
	return j.updateNext(s, now, n)
}

// updateNext pauses the job when the producer fails.
func (j *DateTimeJob) updateNext(s *Scheduler, now time.Time, n *pending) error {
	next, err := j.producer.Next(now)
	if err != nil {
		if perr := s.setNextRunLocked(&j.jobBase, time.Time{}, n); perr != nil {
			return perr
		}
		return fmt.Errorf("%w: %w", ErrNoNextRun, err)
	}
	return s.setNextRunLocked(&j.jobBase, next, n)
}
