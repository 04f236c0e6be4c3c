package producer

import "errors"

var (
	// ErrInfiniteLoopDetected reports a forward search that found no accepted
	// occurrence within MaxLoopSteps steps, e.g. a filter that can never match.
	ErrInfiniteLoopDetected = errors.New("producer: infinite loop detected")

	ErrInvalidInterval = errors.New("producer: interval must be positive")
	ErrInvalidJitter   = errors.New("producer: jitter high must be greater than low")
	ErrInvalidFilter   = errors.New("producer: invalid filter")
	ErrNoProducers     = errors.New("producer: group needs at least one producer")
	ErrNoCalendar      = errors.New("producer: holiday calendar not configured")
	ErrNoOccurrence    = errors.New("producer: schedule has no further occurrence")
)
