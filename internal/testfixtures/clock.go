package testfixtures

import (
	"sync"
	"time"
)

// Clock is a controllable time source. A stepping clock advances by a fixed
// step every time it is read, which gives each fetch a distinct timestamp.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a clock fixed at start. The zero time selects
// ReferenceTime.
func NewClock(start time.Time) *Clock {
	return NewSteppingClock(start, 0)
}

// NewSteppingClock returns a clock that moves forward by step after each Now.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, step: step}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// NowFunc exposes Now for injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
