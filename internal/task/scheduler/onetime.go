package scheduler

import "time"

// OneTimeJob fires once at a fixed instant and then finishes.
type OneTimeJob struct {
	jobBase
	at time.Time
}

func NewOneTimeJob(at time.Time, exec Executor, opts ...JobOption) (*OneTimeJob, error) {
	j := &OneTimeJob{at: at}
	if err := j.init(j, j, exec, opts); err != nil {
		return nil, err
	}
	return j, nil
}

// At is the instant the job fires.
func (j *OneTimeJob) At() time.Time { return j.at }

func (j *OneTimeJob) kind() string { return "one_time" }

func (j *OneTimeJob) updateFirst(s *Scheduler, _ time.Time, n *pending) error {
	return s.setNextRunLocked(&j.jobBase, j.at, n)
}

func (j *OneTimeJob) updateNext(s *Scheduler, _ time.Time, n *pending) error {
	s.finishLocked(&j.jobBase, n)
	return nil
}
