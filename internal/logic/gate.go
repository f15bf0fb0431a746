package logic

import "time"

// Gate lets an action through at most once per interval.
// The interval is measured from construction, so the first opening needs a
// full interval too.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate creates a gate whose first interval starts at start.
// An interval <= 0 opens the gate on every call.
func NewGate(interval time.Duration, start time.Time) *Gate {
	return &Gate{
		interval: interval,
		last:     start,
	}
}

// Due reports whether the interval has elapsed since the last opening.
// A true result restarts the interval at now.
func (g *Gate) Due(now time.Time) bool {
	if g.interval > 0 && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}

// Interval returns the configured interval.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// Last returns when the gate last opened (or its start time).
func (g *Gate) Last() time.Time {
	return g.last
}
