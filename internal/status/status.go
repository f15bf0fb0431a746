// Package status provides a thread-safe status tracker for the airocat daemon.
// The poll loop writes to it; HTTP handlers and the metrics collector read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/airocat/internal/observable"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing cmd code from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs            int64
	HeartbeatMs       int64
	ClimateIntervalMs int64
	GasIntervalMs     int64
	Broker            string
	BaseTopic         string
	HTTPPort          string
	Discovery         bool
	Persist           bool
}

// Reading is the display form of one observable value.
type Reading struct {
	Topic     string
	Caption   string
	Value     string
	Numeric   float64
	Published bool
}

// ReadingsFrom converts observable values into readings.
func ReadingsFrom(values ...[]observable.Publishable) []Reading {
	var out []Reading
	for _, vs := range values {
		for _, v := range vs {
			out = append(out, Reading{
				Topic:     v.Topic(),
				Caption:   v.Caption(),
				Value:     v.String(),
				Numeric:   v.Float(),
				Published: v.Published(),
			})
		}
	}
	return out
}

// PublishCounts counts transport attempts by outcome.
type PublishCounts struct {
	OK     int
	Failed int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Readings      []Reading
	Stabilized    bool
	Fault         string
	Publishes     PublishCounts
	History       []Publication
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu      sync.RWMutex
	snap    Snapshot
	history *history
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		history: newHistory(HistorySize),
	}
}

// Update sets the readings, stabilization and the last gas fault.
// Called from the poll loop after every cycle.
func (t *Tracker) Update(readings []Reading, stabilized bool, fault string) {
	t.mu.Lock()
	t.snap.Readings = readings
	t.snap.Stabilized = stabilized
	t.snap.Fault = fault
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// RecordPublish counts one transport attempt and adds it to the history.
func (t *Tracker) RecordPublish(p Publication) {
	t.mu.Lock()
	if p.OK {
		t.snap.Publishes.OK++
	} else {
		t.snap.Publishes.Failed++
	}
	t.history.push(p)
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Readings = append([]Reading(nil), t.snap.Readings...)
	s.History = t.history.items()
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
