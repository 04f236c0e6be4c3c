package engine

import (
	"fmt"
	"strings"
)

// Kinds accepted by New.
const (
	KindParallel           = "parallel"
	KindLimitingParallel   = "limiting_parallel"
	KindSequential         = "sequential"
	KindLimitingSequential = "limiting_sequential"
	KindSequentialDedup    = "sequential_dedup"
)

// Config selects and sizes a task manager.
type Config struct {
	Kind string
	// Limit is the running-task limit for limiting_parallel and the
	// queue length for limiting_sequential.
	Limit int
	// Policy is parsed by ParseParallelPolicy or ParseSequentialPolicy
	// depending on Kind.
	Policy string
}

// New builds the manager described by cfg. An empty Kind means parallel.
func New(cfg Config, opts ...Option) (TaskManager, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindParallel:
		return NewParallel(opts...), nil
	case KindLimitingParallel:
		pol, err := ParseParallelPolicy(cfg.Policy)
		if err != nil {
			return nil, err
		}
		m, err := NewLimitingParallel(cfg.Limit, pol, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindSequential:
		return NewSequential(opts...), nil
	case KindLimitingSequential:
		pol, err := ParseSequentialPolicy(cfg.Policy)
		if err != nil {
			return nil, err
		}
		m, err := NewLimitingSequential(cfg.Limit, pol, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case KindSequentialDedup:
		return NewSequentialDedup(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, cfg.Kind)
	}
}
