package engine

import (
	"context"
	"fmt"
	"sync"
)

// Sequential runs one task at a time in submission order. The limited
// variant bounds the number of waiting tasks and applies its
// SequentialPolicy on overflow. The dedup variant keeps at most one waiting
// task per key.
type Sequential struct {
	*core

	mu       sync.Mutex
	queue    []*Handle // waiting, oldest first
	running  *Handle
	maxQueue int // 0 means unbounded
	policy   SequentialPolicy
	dedup    bool
	closed   bool
}

func NewSequential(opts ...Option) *Sequential {
	return &Sequential{core: newCore("sequential", opts)}
}

func NewLimitingSequential(maxQueue int, policy SequentialPolicy, opts ...Option) (*Sequential, error) {
	if maxQueue < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, maxQueue)
	}
	if _, err := ParseSequentialPolicy(policy.String()); err != nil {
		return nil, err
	}
	return &Sequential{core: newCore("limiting_sequential", opts), maxQueue: maxQueue, policy: policy}, nil
}

// NewSequentialDedup drops a waiting task that has the same key as a new
// submission and queues the new one at the back. The dropped task finishes
// with ErrSkipped.
func NewSequentialDedup(opts ...Option) *Sequential {
	return &Sequential{core: newCore("sequential_dedup", opts), dedup: true}
}

func (s *Sequential) Submit(t Task) (*Handle, error) {
	h, err := s.newHandle(t)
	if err != nil {
		return nil, err
	}

	var dropped *Handle
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	switch {
	case s.running == nil:
		s.running = h
		s.submitted.Add(1)
		s.wg.Add(1)
		s.mu.Unlock()
		go s.drain(h)
		return h, nil

	case s.dedup && s.replaceLocked(h, &dropped):
		// older task with the same key dropped

	case s.maxQueue > 0 && len(s.queue) >= s.maxQueue:
		switch s.policy {
		case SequentialSkip:
			s.mu.Unlock()
			return s.skip(t)
		case SequentialSkipFirst:
			dropped = s.queue[0]
			s.queue = append(s.queue[1:], h)
		case SequentialSkipLast:
			dropped = s.queue[len(s.queue)-1]
			s.queue[len(s.queue)-1] = h
		}

	default:
		s.queue = append(s.queue, h)
	}
	s.submitted.Add(1)
	s.mu.Unlock()

	if dropped != nil {
		s.drop(dropped, ErrSkipped)
	}
	return h, nil
}

// replaceLocked drops the waiting task with h's key and queues h last.
func (s *Sequential) replaceLocked(h *Handle, dropped **Handle) bool {
	for i, q := range s.queue {
		if q.key == h.key {
			*dropped = q
			s.queue = append(append(s.queue[:i:i], s.queue[i+1:]...), h)
			return true
		}
	}
	return false
}

// drain runs h and then every queued task until the queue is empty.
func (s *Sequential) drain(h *Handle) {
	defer s.wg.Done()
	for h != nil {
		s.execute(h)

		s.mu.Lock()
		h = nil
		if len(s.queue) > 0 {
			h = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
		}
		s.running = h
		s.mu.Unlock()
	}
}

func (s *Sequential) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	queued := s.queue
	s.queue = nil
	running := s.running
	s.mu.Unlock()

	for _, h := range queued {
		s.drop(h, ErrClosed)
	}
	if running != nil {
		running.cancel(ErrClosed)
	}
	return s.wait(ctx)
}

func (s *Sequential) Snapshot() Snapshot {
	s.mu.Lock()
	running, queued := 0, len(s.queue)
	if s.running != nil {
		running = 1
	}
	s.mu.Unlock()
	return s.snapshot(running, queued)
}
