package scheduler

import (
	"fmt"
	"time"

	"schedkit/internal/eventbus"
)

const (
	EventJobUpdated  = "job.updated"
	EventJobFired    = "job.fired"
	EventJobFinished = "job.finished"
)

// JobEvent is the Data of job.* events.
type JobEvent struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Status string    `json:"status"`
	Next   time.Time `json:"next,omitzero"`
	Error  string    `json:"error,omitempty"`
}

func (s *Scheduler) publishJob(j *jobBase, finished bool) {
	typ := EventJobUpdated
	if finished {
		typ = EventJobFinished
	}
	s.publish(typ, j, nil)
}

func (s *Scheduler) publish(typ string, j *jobBase, err error) {
	if s.bus == nil {
		return
	}
	j.mu.Lock()
	ev := JobEvent{ID: fmt.Sprint(j.id), Kind: j.v.kind(), Status: j.status.String(), Next: j.next}
	j.mu.Unlock()
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
