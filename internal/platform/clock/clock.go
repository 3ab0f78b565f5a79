package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock supplies the current time. Services never call time.Now directly so
// tests can pin "today".
type Clock interface {
	Now() time.Time
}

type realClock struct {
	loc *time.Location
}

// New returns a Clock that reports wall time in loc. A nil loc means UTC.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &realClock{loc: loc}
}

func (c *realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// ManagedClock is a hand-driven clock for tests.
type ManagedClock struct {
	mu     sync.Mutex
	start  time.Time
	offset time.Duration
}

// NewManaged returns a ManagedClock frozen at start.
func NewManaged(start time.Time) *ManagedClock {
	return &ManagedClock{start: start}
}

// Now returns the managed time.
func (c *ManagedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(c.offset)
}

// WarpForward moves the clock forward by d and returns the new time.
// There is no WarpBackward: clinic days only move forward.
func (c *ManagedClock) WarpForward(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.offset += d
	}
	return c.start.Add(c.offset)
}

// LoadLocation resolves a time zone name, treating "" as UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
