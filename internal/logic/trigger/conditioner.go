// Package trigger turns a bouncy digital input into single rising-edge events.
package trigger

import "time"

// Window is how long a raw level must hold before it is accepted.
const Window = 100 * time.Millisecond

// Conditioner debounces one digital input and reports its rising edges.
// It is polled from the control loop only and is not safe for concurrent use.
type Conditioner struct {
	stable   bool
	pending  bool
	deadline time.Time
	previous bool
}

// New returns a conditioner whose stable level starts low.
func New() *Conditioner {
	return &Conditioner{}
}

// Poll feeds one raw sample taken at now and reports whether the stable
// level has just gone from low to high. The event is returned exactly once:
// holding the input high yields no further events.
func (c *Conditioner) Poll(raw bool, now time.Time) bool {
	switch {
	case raw == c.stable:
		// Back to the stable level before the deadline: it was bounce.
		c.pending = false
	case !c.pending:
		c.pending = true
		c.deadline = now.Add(Window)
	case !now.Before(c.deadline):
		c.stable = raw
		c.pending = false
	}

	fired := c.stable && !c.previous
	c.previous = c.stable
	return fired
}

// Restart drops a pending level change so the next differing sample opens a
// fresh window. The stable level and edge state are kept.
func (c *Conditioner) Restart() {
	c.pending = false
}

// Stable returns the current debounced level.
func (c *Conditioner) Stable() bool {
	return c.stable
}
