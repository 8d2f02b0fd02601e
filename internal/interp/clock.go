package interp

import "sync/atomic"

// Clock is a monotonic logical clock stamping trace steps. Wall-clock time
// is never used for ordering.
type Clock struct {
	seq atomic.Int64
}

func NewClock() *Clock { return &Clock{} }

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 { return c.seq.Add(1) }

// Current returns the last value handed out.
func (c *Clock) Current() int64 { return c.seq.Load() }
