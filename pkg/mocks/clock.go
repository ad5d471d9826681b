package mocks

import (
	"sync"
	"time"
)

// Clock is a manual clock. Sleep advances the clock instead of blocking.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

// NewClock creates a clock starting at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeps = append(c.Sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Advance moves the clock forward, simulating decode work.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SleepCount returns how many times Sleep was called.
func (c *Clock) SleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sleeps)
}
