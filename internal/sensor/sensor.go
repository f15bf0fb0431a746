// Package sensor drives the two sensing subsystems and decides when their
// values reach the broker.
//
// Climate wraps the BME680 fusion engine and Gas wraps the CCS811. Each one
// owns its observable values and its driver handle; the transport is shared.
// Neither type is safe for concurrent use: the poll loop is the only caller.
package sensor

import (
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/observable"
)

// EntityCategory is the Home Assistant category for every announced value.
const EntityCategory = "diagnostic"

// Discoverer publishes one discovery record.
type Discoverer interface {
	Announce(objectID string, cfg mqtt.SensorConfig) bool
}

// Announcer emits discovery records for the values it owns.
type Announcer interface {
	Announce(d Discoverer) int
}

// descriptor is the static metadata of one value.
type descriptor struct {
	id          string // topic suffix and discovery object id
	caption     string
	deviceClass string
	unit        string
}

// entry binds a value to its descriptor.
type entry struct {
	desc  descriptor
	value observable.Publishable
	// gated values wait for stabilization.
	gated bool
}

// announce emits one discovery record per entry and returns how many the
// transport accepted.
func announce(d Discoverer, entries []entry) int {
	n := 0
	for _, e := range entries {
		cfg := mqtt.SensorConfig{
			DeviceClass:       e.desc.deviceClass,
			UnitOfMeasurement: e.desc.unit,
			EntityCategory:    EntityCategory,
			Name:              e.value.Topic(),
			StateTopic:        e.value.Topic(),
			ValueTemplate:     mqtt.ValueTemplate,
		}
		if d.Announce(e.desc.id, cfg) {
			n++
		}
	}
	return n
}

func values(entries []entry) []observable.Publishable {
	out := make([]observable.Publishable, len(entries))
	for i, e := range entries {
		out[i] = e.value
	}
	return out
}

// flush publishes every unpublished entry. Gated entries are skipped unless
// released. It returns the number of successful and failed attempts.
func flush(entries []entry, retain, released bool) (sent, failed int) {
	for _, e := range entries {
		if e.gated && !released {
			continue
		}
		if e.value.Published() {
			continue
		}
		if e.value.Publish(retain) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}
