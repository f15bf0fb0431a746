package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/airocat/internal/logic"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/observable"
)

var sampleReadings = []Reading{
	{Topic: "airocat/co2", Caption: "CO2, ppm", Value: "412", Numeric: 412, Published: true},
	{Topic: "airocat/tvoc", Caption: "TVOC, ppb", Value: "17", Numeric: 17},
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 2000, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 2000 {
		t.Errorf("Config.PollMs: got %d, want 2000", snap.Config.PollMs)
	}
	if snap.Config.HTTPPort != ":80" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":80")
	}
	if snap.Stabilized {
		t.Error("expected Stabilized=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.History) != 0 {
		t.Error("expected empty history initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(sampleReadings, true, string(logic.FaultHeaterFault))

	snap := tr.Snapshot()
	if len(snap.Readings) != 2 {
		t.Fatalf("Readings: got %d, want 2", len(snap.Readings))
	}
	if snap.Readings[0].Value != "412" {
		t.Errorf("Readings[0].Value: got %q, want 412", snap.Readings[0].Value)
	}
	if !snap.Stabilized {
		t.Error("expected Stabilized=true")
	}
	if snap.Fault != "HeaterFault" {
		t.Errorf("Fault: got %q, want HeaterFault", snap.Fault)
	}
}

func TestReadingsFrom(t *testing.T) {
	client := mqtt.NewFakeClient()
	co2 := observable.New[uint16](client, "CO2, ppm", "airocat/co2", 0)
	co2.Set(412)
	co2.Publish(false)
	phase := observable.New(client, "Initial stabilization", "airocat/initialStabStatus", logic.PhaseFinished)

	got := ReadingsFrom(
		[]observable.Publishable{co2},
		[]observable.Publishable{phase},
	)
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(got))
	}
	if got[0].Numeric != 412 || !got[0].Published || got[0].Caption != "CO2, ppm" {
		t.Errorf("unexpected reading: %+v", got[0])
	}
	if got[1].Value != "Finished" || got[1].Published {
		t.Errorf("unexpected phase reading: %+v", got[1])
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestRecordPublish(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.RecordPublish(Publication{Topic: "airocat/co2", OK: true})
	tr.RecordPublish(Publication{Topic: "airocat/tvoc", OK: false})
	tr.RecordPublish(Publication{Topic: "airocat/tvoc", OK: true})

	snap := tr.Snapshot()
	if snap.Publishes.OK != 2 || snap.Publishes.Failed != 1 {
		t.Errorf("Publishes: got %+v, want 2 ok 1 failed", snap.Publishes)
	}
	if len(snap.History) != 3 || snap.History[0].Topic != "airocat/co2" {
		t.Errorf("unexpected history: %+v", snap.History)
	}
}

func TestRecorder(t *testing.T) {
	client := mqtt.NewFakeClient()
	tr := NewTracker(time.Now(), Config{})
	rec := NewRecorder(client, tr)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	if !rec.Publish("airocat/co2", []byte("abc"), true) {
		t.Fatal("expected success")
	}
	client.Fail = true
	if rec.Publish("airocat/tvoc", []byte("x"), false) {
		t.Fatal("expected failure to pass through")
	}

	snap := tr.Snapshot()
	if snap.Publishes.OK != 1 || snap.Publishes.Failed != 1 {
		t.Errorf("Publishes: got %+v", snap.Publishes)
	}
	first := snap.History[0]
	if first.Bytes != 3 || !first.Retained || !first.Time.Equal(fixed) {
		t.Errorf("unexpected publication: %+v", first)
	}
	if len(client.Messages) != 1 {
		t.Errorf("expected one forwarded message, got %d", len(client.Messages))
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	readings := append([]Reading(nil), sampleReadings...)
	tr.Update(readings, false, "")

	snap1 := tr.Snapshot()

	snap1.Readings[0].Value = "changed"
	tr.Update([]Reading{{Topic: "other"}}, true, "")

	// snap1 should still reflect old state
	if len(snap1.Readings) != 2 {
		t.Error("snapshot should be a copy; readings were replaced")
	}
	if tr.Snapshot().Readings[0].Topic != "other" {
		t.Error("tracker should hold the latest readings")
	}
	if readings[0].Value != "412" {
		t.Error("modifying a snapshot must not touch the tracker's slice")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Readings:      sampleReadings,
		Stabilized:    true,
		Publishes:     PublishCounts{OK: 5, Failed: 2},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 2000, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPPort: ":80", Discovery: true},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if !parsed.Status.Stabilized {
		t.Error("expected Stabilized=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.MQTT.Connected != true {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Publishes.OK != 5 || parsed.Status.Publishes.Failed != 2 {
		t.Errorf("Publishes: got %+v", parsed.Status.Publishes)
	}
	if len(parsed.Status.Readings) != 2 || parsed.Status.Readings[1].Caption != "TVOC, ppb" {
		t.Errorf("Readings: got %+v", parsed.Status.Readings)
	}
	if !parsed.Status.Config.Discovery {
		t.Error("expected Config.Discovery=true")
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONNoReadings(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	readings, ok := status["readings"].([]interface{})
	if !ok || len(readings) != 0 {
		t.Errorf("readings: got %v, want empty array", status["readings"])
	}
	if _, exists := status["fault"]; exists {
		t.Error("fault should be omitted when empty")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Readings:      sampleReadings,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 2000, Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	// Verify "reason" is not in the raw JSON output
	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(sampleReadings, i%2 == 0, "")
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
			tr.RecordPublish(Publication{Topic: "t", OK: true})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
