package engine

import "sync/atomic"

// Sequencer hands out strictly increasing seq numbers.
// *Clock is the production implementation.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for progress ordering.
//
// Every progress emission is stamped with a strictly increasing seq number.
// The clock is never rewound, not even by Reset, so seq values stay unique
// across the whole life of an engine.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}
