package scheduler

import (
	"fmt"
	"time"
)

// CountdownJob fires once the countdown elapsed since the last Reset. It is
// paused when linked and after every run.
type CountdownJob struct {
	jobBase
	countdown time.Duration // guarded by jobBase.mu
}

func NewCountdownJob(d time.Duration, exec Executor, opts ...JobOption) (*CountdownJob, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCountdown, d)
	}
	j := &CountdownJob{countdown: d}
	if err := j.init(j, j, exec, opts); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *CountdownJob) Countdown() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.countdown
}

// SetCountdown changes the duration used by the next Reset. An armed
// countdown keeps its instant.
func (j *CountdownJob) SetCountdown(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCountdown, d)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusFinished {
		return ErrJobAlreadyFinished
	}
	j.countdown = d
	return nil
}

// Reset arms the job to fire one countdown from now, whether it is running
// or paused.
func (j *CountdownJob) Reset() error {
	return j.mutate(func(s *Scheduler, n *pending) error {
		j.mu.Lock()
		d := j.countdown
		j.mu.Unlock()
		return s.setNextRunLocked(&j.jobBase, s.clock.Now().Add(d), n)
	})
}

// Stop pauses the countdown until the next Reset.
func (j *CountdownJob) Stop() error { return j.pause() }

func (j *CountdownJob) kind() string { return "countdown" }

func (j *CountdownJob) updateFirst(s *Scheduler, _ time.Time, n *pending) error {
	return s.setNextRunLocked(&j.jobBase, time.Time{}, n)
}

func (j *CountdownJob) updateNext(s *Scheduler, _ time.Time, n *pending) error {
	return s.setNextRunLocked(&j.jobBase, time.Time{}, n)
}
