package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// JobInfo is a point-in-time view of a linked job.
type JobInfo struct {
	ID     string
	Kind   string
	Status Status
	Next   time.Time
	Last   time.Time
}

// Job returns the linked job with the given id.
func (s *Scheduler) Job(id any) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	return j.self, true
}

// Jobs returns the linked jobs, armed ones first by next run, then paused
// ones in the order they were added.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	list := make([]*jobBase, 0, len(s.jobs))
	for _, j := range s.jobs {
		list = append(list, j)
	}
	s.mu.Unlock()

	type row struct {
		j     *jobBase
		next  time.Time
		added uint64
	}
	rows := make([]row, len(list))
	for i, j := range list {
		j.mu.Lock()
		rows[i] = row{j: j, next: j.next, added: j.added}
		j.mu.Unlock()
	}
	sort.Slice(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		if ra.next.IsZero() != rb.next.IsZero() {
			return !ra.next.IsZero()
		}
		if !ra.next.Equal(rb.next) {
			return ra.next.Before(rb.next)
		}
		return ra.added < rb.added
	})
	out := make([]Job, len(rows))
	for i, r := range rows {
		out[i] = r.j.self
	}
	return out
}

// Snapshot describes every linked job in Jobs order.
func (s *Scheduler) Snapshot() []JobInfo {
	jobs := s.Jobs()
	out := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		j := job.base()
		j.mu.Lock()
		out = append(out, JobInfo{
			ID:     fmt.Sprint(j.id),
			Kind:   j.v.kind(),
			Status: j.status,
			Next:   j.next,
			Last:   j.last,
		})
		j.mu.Unlock()
	}
	return out
}
