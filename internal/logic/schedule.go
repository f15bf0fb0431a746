package logic

import "time"

// FullAccuracy is the engine accuracy level at which its state is worth keeping.
const FullAccuracy = 3

// SaveSchedule decides when the climate engine state should be persisted:
// the first time accuracy reaches FullAccuracy, then every interval after
// the previous save.
type SaveSchedule struct {
	interval time.Duration
	saves    int
	last     time.Time
}

// NewSaveSchedule creates a schedule with the given periodic interval.
func NewSaveSchedule(interval time.Duration) *SaveSchedule {
	return &SaveSchedule{interval: interval}
}

// Due reports whether a save should happen now. A true result counts as a
// save whether or not the caller's write succeeds.
func (s *SaveSchedule) Due(now time.Time, accuracy uint8) bool {
	if s.saves == 0 {
		if accuracy < FullAccuracy {
			return false
		}
	} else if s.interval <= 0 || now.Sub(s.last) < s.interval {
		return false
	}
	s.saves++
	s.last = now
	return true
}

// Saves returns how many saves have been scheduled.
func (s *SaveSchedule) Saves() int {
	return s.saves
}

// Heartbeat tracks the periodic system heartbeat.
type Heartbeat struct {
	interval  time.Duration
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a heartbeat timer. The startTime is used for uptime.
func NewHeartbeat(interval time.Duration, startTime time.Time) *Heartbeat {
	return &Heartbeat{
		interval:  interval,
		startTime: startTime,
		last:      startTime,
	}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or if
// interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time) *HeartbeatData {
	if h.interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < h.interval {
		return nil
	}
	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}
