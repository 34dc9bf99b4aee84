package session

import "sync/atomic"

// Clock is the monotonic logical clock that stamps journal events.
//
// Every event gets a strictly increasing seq from Next. Sessions sharing a
// journal resume from the journal's highest seq so ordering holds across
// processes run one after another.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
