// Package mqtt provides the message bus transport with abstraction for testing.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultBaseTopic is the topic prefix for all airocat messages.
const DefaultBaseTopic = "airocat"

// Client is the transport boundary shared by both sensors.
type Client interface {
	// Connected reports whether the broker connection is up.
	Connected() bool

	// Connect blocks until the broker accepts the connection or ctx is done,
	// waiting a fixed delay between attempts.
	Connect(ctx context.Context) error

	// Publish hands one message to the broker and reports success.
	// A false result must not crash the process; callers retry later.
	Publish(topic string, payload []byte, retain bool) bool

	// Close disconnects from the broker.
	Close() error
}

// Publisher is the publish-only side of a Client.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) bool
}

// Topics builds topic names under a base prefix.
type Topics struct {
	Base string
}

// Value returns the state topic for a named value, e.g. "airocat/co2".
func (t Topics) Value(name string) string {
	return t.Base + "/" + name
}

// System returns the topic for system lifecycle events.
func (t Topics) System() string {
	return t.Base + "/system"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT", "MQTT_DISCONNECT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// PublishSystem formats and publishes a system event to topic.
func PublishSystem(c Publisher, topic string, event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	if !c.Publish(topic, payload, event.Retained) {
		return fmt.Errorf("publish %s event to %s failed", event.Event, topic)
	}
	return nil
}
