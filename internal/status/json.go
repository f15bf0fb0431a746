package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Stabilized    bool          `json:"stabilized"`
	Fault         string        `json:"fault,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Readings      []ReadingJSON `json:"readings"`
	Publishes     CountsJSON    `json:"publishes"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ReadingJSON is the JSON representation of one reading.
type ReadingJSON struct {
	Topic     string `json:"topic"`
	Caption   string `json:"caption"`
	Value     string `json:"value"`
	Published bool   `json:"published"`
}

// CountsJSON is the JSON representation of publish counts.
type CountsJSON struct {
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs            int64  `json:"poll_ms"`
	HeartbeatMs       int64  `json:"heartbeat_ms"`
	ClimateIntervalMs int64  `json:"climate_interval_ms"`
	GasIntervalMs     int64  `json:"gas_interval_ms"`
	Broker            string `json:"broker"`
	BaseTopic         string `json:"base_topic"`
	HTTPPort          string `json:"http_port"`
	Discovery         bool   `json:"discovery"`
	Persist           bool   `json:"persist"`
}

func buildInner(snap Snapshot) StatusInner {
	readings := make([]ReadingJSON, len(snap.Readings))
	for i, r := range snap.Readings {
		readings[i] = ReadingJSON{
			Topic:     r.Topic,
			Caption:   r.Caption,
			Value:     r.Value,
			Published: r.Published,
		}
	}

	return StatusInner{
		Stabilized:    snap.Stabilized,
		Fault:         snap.Fault,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Readings:      readings,
		Publishes:     CountsJSON{OK: snap.Publishes.OK, Failed: snap.Publishes.Failed},
		Config: ConfigJSON{
			PollMs:            snap.Config.PollMs,
			HeartbeatMs:       snap.Config.HeartbeatMs,
			ClimateIntervalMs: snap.Config.ClimateIntervalMs,
			GasIntervalMs:     snap.Config.GasIntervalMs,
			Broker:            snap.Config.Broker,
			BaseTopic:         snap.Config.BaseTopic,
			HTTPPort:          snap.Config.HTTPPort,
			Discovery:         snap.Config.Discovery,
			Persist:           snap.Config.Persist,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
