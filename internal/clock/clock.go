package clock

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when an operation is not valid from the
// clock's current state.
var ErrInvalidTransition = errors.New("invalid clock transition")

// State represents the lifecycle state of a countdown clock
type State string

const (
	StateIdle    State = "IDLE"
	StateRunning State = "RUNNING"
	StatePaused  State = "PAUSED"
	StateExpired State = "EXPIRED"
)

// Clock is the authoritative countdown for a single game session.
//
// Remaining time is always recomputed from a wall-clock anchor rather than
// decremented per tick, so a slow or missed tick never drifts the deadline.
// The zero I/O rule holds: callers pass `now` in and observe effects through
// return values.
type Clock struct {
	total     time.Duration
	remaining time.Duration // frozen remaining as of the last anchor
	startedAt time.Time     // wall-clock anchor, valid while Running
	state     State
}

// New returns an Idle clock with no time allocated.
func New() *Clock {
	return &Clock{state: StateIdle}
}

// Start allocates total time and begins the countdown. Valid from Idle or
// Expired only.
func (c *Clock) Start(total time.Duration, now time.Time) error {
	if c.state != StateIdle && c.state != StateExpired {
		return fmt.Errorf("start from %s: %w", c.state, ErrInvalidTransition)
	}
	c.total = total
	c.remaining = total
	c.startedAt = now
	c.state = StateRunning
	return nil
}

// Pause freezes elapsed time. Valid from Running only.
func (c *Clock) Pause(now time.Time) error {
	if c.state != StateRunning {
		return fmt.Errorf("pause from %s: %w", c.state, ErrInvalidTransition)
	}
	c.remaining = c.remainingAt(now)
	c.state = StatePaused
	return nil
}

// Resume re-anchors the countdown against the frozen remaining time. Valid
// from Paused only.
func (c *Clock) Resume(now time.Time) error {
	if c.state != StatePaused {
		return fmt.Errorf("resume from %s: %w", c.state, ErrInvalidTransition)
	}
	c.startedAt = now
	c.state = StateRunning
	return nil
}

// Stop resets the clock to Idle with no remaining time. Valid from any state.
func (c *Clock) Stop() {
	c.total = 0
	c.remaining = 0
	c.startedAt = time.Time{}
	c.state = StateIdle
}

// Tick recomputes remaining time at `now`. When the countdown reaches zero it
// transitions to Expired and reports expired=true exactly once; subsequent
// ticks are no-ops. Outside Running, Tick reports the frozen remaining time.
func (c *Clock) Tick(now time.Time) (remaining time.Duration, expired bool) {
	if c.state != StateRunning {
		return c.remaining, false
	}
	rem := c.remainingAt(now)
	if rem <= 0 {
		c.remaining = 0
		c.state = StateExpired
		return 0, true
	}
	return rem, false
}

// Remaining reports the time left at `now` without mutating state.
func (c *Clock) Remaining(now time.Time) time.Duration {
	if c.state != StateRunning {
		return c.remaining
	}
	return c.remainingAt(now)
}

// Total reports the duration allocated at Start.
func (c *Clock) Total() time.Duration {
	return c.total
}

// State reports the current lifecycle state.
func (c *Clock) State() State {
	return c.state
}

func (c *Clock) remainingAt(now time.Time) time.Duration {
	rem := c.remaining - now.Sub(c.startedAt)
	if rem < 0 {
		return 0
	}
	return rem
}
