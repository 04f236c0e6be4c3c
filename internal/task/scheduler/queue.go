package scheduler

import (
	"container/heap"
	"time"
)

// entry is one armed run. Entries order by instant, then by arming order so
// equal instants fire first-in first-out.
type entry struct {
	job   *jobBase
	at    time.Time
	seq   uint64
	index int
}

type runQueue []*entry

func (q runQueue) Len() int { return len(q) }

func (q runQueue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	return q[i].seq < q[j].seq
}

func (q runQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *runQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *runQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

func (q *runQueue) add(e *entry) { heap.Push(q, e) }

func (q *runQueue) remove(e *entry) {
	if e != nil && e.index >= 0 && e.index < len(*q) && (*q)[e.index] == e {
		heap.Remove(q, e.index)
	}
}

// popDue removes and returns every entry at or before now, earliest first.
func (q *runQueue) popDue(now time.Time) []*entry {
	var due []*entry
	for q.Len() > 0 && !(*q)[0].at.After(now) {
		due = append(due, heap.Pop(q).(*entry))
	}
	return due
}

func (q runQueue) peek() (*entry, bool) {
	if len(q) == 0 {
		return nil, false
	}
	return q[0], true
}
