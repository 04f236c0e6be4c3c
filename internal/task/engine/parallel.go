package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"

	logx "schedkit/pkg/logx"
)

// Parallel runs every task in its own goroutine. A limited Parallel applies
// its ParallelPolicy once limit tasks are running.
type Parallel struct {
	*core

	mu      sync.Mutex
	running []*Handle // oldest first
	limit   int       // 0 means unlimited
	policy  ParallelPolicy
	closed  bool
}

func NewParallel(opts ...Option) *Parallel {
	return &Parallel{core: newCore("parallel", opts)}
}

func NewLimitingParallel(limit int, policy ParallelPolicy, opts ...Option) (*Parallel, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	if _, err := ParseParallelPolicy(policy.String()); err != nil {
		return nil, err
	}
	return &Parallel{core: newCore("limiting_parallel", opts), limit: limit, policy: policy}, nil
}

func (p *Parallel) Submit(t Task) (*Handle, error) {
	h, err := p.newHandle(t)
	if err != nil {
		return nil, err
	}

	var victim *Handle
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.limit > 0 && len(p.running) >= p.limit {
		switch p.policy {
		case ParallelSkip:
			p.mu.Unlock()
			return p.skip(t)
		case ParallelCancelFirst:
			victim = p.running[0]
			p.running = p.running[1:]
		case ParallelCancelLast:
			victim = p.running[len(p.running)-1]
			p.running = p.running[:len(p.running)-1]
		}
	}
	p.running = append(p.running, h)
	p.submitted.Add(1)
	p.wg.Add(1)
	p.mu.Unlock()

	if victim != nil {
		p.log.Debug("canceling running task for new submission", logx.String("task", victim.Name), logx.String("id", victim.ID))
		victim.Cancel()
	}

	go func() {
		defer p.wg.Done()
		p.execute(h)
		p.mu.Lock()
		if i := slices.Index(p.running, h); i >= 0 {
			p.running = slices.Delete(p.running, i, i+1)
		}
		p.mu.Unlock()
	}()
	return h, nil
}

func (p *Parallel) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	running := slices.Clone(p.running)
	p.mu.Unlock()

	for _, h := range running {
		h.cancel(ErrClosed)
	}
	return p.wait(ctx)
}

func (p *Parallel) Snapshot() Snapshot {
	p.mu.Lock()
	n := len(p.running)
	p.mu.Unlock()
	return p.snapshot(n, 0)
}
