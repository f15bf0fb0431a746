package mqtt

import "encoding/json"

// DefaultDiscoveryPrefix is the Home Assistant discovery topic prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// ValueTemplate extracts the value field from a published record.
const ValueTemplate = "{{ value_json.value }}"

// DeviceInfo groups every announced sensor under one Home Assistant device.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// SensorConfig is the retained discovery payload for one sensor entity.
type SensorConfig struct {
	DeviceClass       string      `json:"device_class,omitempty"`
	UnitOfMeasurement string      `json:"unit_of_measurement,omitempty"`
	EntityCategory    string      `json:"entity_category"`
	Name              string      `json:"name"`
	StateTopic        string      `json:"state_topic"`
	ValueTemplate     string      `json:"value_template"`
	UniqueID          string      `json:"unique_id,omitempty"`
	Device            *DeviceInfo `json:"device,omitempty"`
}

// Discovery publishes sensor discovery records under a prefix.
type Discovery struct {
	pub    Publisher
	prefix string
	node   string
	device *DeviceInfo
}

// NewDiscovery creates a discovery publisher. node is the Home Assistant
// node id, e.g. "airocat".
func NewDiscovery(pub Publisher, prefix, node string) *Discovery {
	return &Discovery{
		pub:    pub,
		prefix: prefix,
		node:   node,
		device: &DeviceInfo{
			Identifiers:  []string{node},
			Name:         node,
			Manufacturer: "airocat",
			Model:        "BME680 + CCS811",
		},
	}
}

// Topic returns the discovery topic for an object id.
func (d *Discovery) Topic(objectID string) string {
	return d.prefix + "/sensor/" + d.node + "/" + objectID + "/config"
}

// Announce publishes one retained discovery record. UniqueID and Device are
// filled in when empty.
func (d *Discovery) Announce(objectID string, cfg SensorConfig) bool {
	if cfg.UniqueID == "" {
		cfg.UniqueID = d.node + "_" + objectID
	}
	if cfg.Device == nil {
		cfg.Device = d.device
	}
	if cfg.ValueTemplate == "" {
		cfg.ValueTemplate = ValueTemplate
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return false
	}
	return d.pub.Publish(d.Topic(objectID), payload, true)
}
