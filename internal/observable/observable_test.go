package observable

import (
	"encoding/json"
	"testing"

	"github.com/sweeney/airocat/internal/logic"
)

// recordingTransport records publish calls and returns a scripted result.
type recordingTransport struct {
	ok    bool
	calls []call
}

type call struct {
	topic   string
	payload []byte
	retain  bool
}

func (r *recordingTransport) Publish(topic string, payload []byte, retain bool) bool {
	r.calls = append(r.calls, call{topic: topic, payload: payload, retain: retain})
	return r.ok
}

func TestNewStartsUnpublished(t *testing.T) {
	tr := &recordingTransport{ok: true}
	v := New[float32](tr, "Temperature, °C", "airocat/temperature", 0)

	if v.Published() {
		t.Error("new value should not be published")
	}
	if v.Get() != 0 {
		t.Errorf("expected initial 0, got %v", v.Get())
	}
	if v.Caption() != "Temperature, °C" || v.Topic() != "airocat/temperature" {
		t.Errorf("unexpected caption/topic: %q %q", v.Caption(), v.Topic())
	}
	if len(tr.calls) != 0 {
		t.Errorf("construction must not publish, got %d calls", len(tr.calls))
	}
}

func TestSetChangedValueMarksDirty(t *testing.T) {
	tr := &recordingTransport{ok: true}
	v := New[float32](tr, "Humidity, %", "airocat/humidity", 40)
	v.Publish(true)
	if !v.Published() {
		t.Fatal("expected published after successful publish")
	}

	v.Set(41)
	if v.Published() {
		t.Error("changed value should be unpublished")
	}
	if v.Get() != 41 {
		t.Errorf("expected 41, got %v", v.Get())
	}
	if len(tr.calls) != 1 {
		t.Errorf("Set must not publish, got %d calls", len(tr.calls))
	}
}

func TestSetEqualValueIsNoop(t *testing.T) {
	tests := []struct {
		name      string
		published bool
	}{
		{"published stays published", true},
		{"dirty stays dirty", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &recordingTransport{ok: true}
			v := New[uint16](tr, "CO2, ppm", "airocat/co2", 0)
			v.Set(400)
			if tt.published {
				v.Publish(true)
			}
			calls := len(tr.calls)

			v.Set(400)
			if v.Published() != tt.published {
				t.Errorf("published: got %v, want %v", v.Published(), tt.published)
			}
			if len(tr.calls) != calls {
				t.Errorf("equal Set produced transport traffic")
			}
		})
	}
}

func TestPublishSuccess(t *testing.T) {
	tr := &recordingTransport{ok: true}
	v := New[uint16](tr, "TVOC, ppb", "airocat/tvoc", 0)
	v.Set(12)

	if !v.Publish(true) {
		t.Fatal("expected publish to succeed")
	}
	if !v.Published() {
		t.Error("expected published after success")
	}
	if len(tr.calls) != 1 {
		t.Fatalf("expected 1 transport call, got %d", len(tr.calls))
	}
	c := tr.calls[0]
	if c.topic != "airocat/tvoc" {
		t.Errorf("unexpected topic: %s", c.topic)
	}
	if !c.retain {
		t.Error("expected retain flag to be passed through")
	}

	var rec struct {
		Caption string `json:"caption"`
		Value   int    `json:"value"`
	}
	if err := json.Unmarshal(c.payload, &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec.Caption != "TVOC, ppb" || rec.Value != 12 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestPublishFailureLeavesDirtyAndRetries(t *testing.T) {
	tr := &recordingTransport{ok: false}
	v := New[float32](tr, "Pressure, hPa", "airocat/pressure", 0)
	v.Set(1013.25)

	if v.Publish(false) {
		t.Fatal("expected publish to fail")
	}
	if v.Published() {
		t.Error("failed publish must leave value unpublished")
	}
	if len(tr.calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(tr.calls))
	}

	tr.ok = true
	if !v.Publish(false) {
		t.Fatal("expected second publish to succeed")
	}
	if !v.Published() {
		t.Error("expected published after retry")
	}
	if len(tr.calls) != 2 {
		t.Errorf("expected 2 attempts total, got %d", len(tr.calls))
	}
}

func TestPhaseValueEncodesByName(t *testing.T) {
	tr := &recordingTransport{ok: true}
	v := New(tr, "Initial stabilization", "airocat/initialStabStatus", logic.PhaseOngoing)
	v.Set(logic.PhaseFinished)
	v.Publish(true)

	if string(tr.calls[0].payload) != `{"caption":"Initial stabilization","value":"Finished"}` {
		t.Errorf("unexpected payload: %s", tr.calls[0].payload)
	}
	if v.Float() != 1 {
		t.Errorf("expected Float 1, got %v", v.Float())
	}
	if v.String() != "Finished" {
		t.Errorf("expected String Finished, got %q", v.String())
	}
}

func TestPublishableView(t *testing.T) {
	tr := &recordingTransport{ok: true}
	values := []Publishable{
		New[float32](tr, "IAQ", "airocat/iaq", 25.5),
		New[uint16](tr, "CO2, ppm", "airocat/co2", 400),
		New(tr, "Power-on stabilization", "airocat/powerOnStabStatus", logic.PhaseOngoing),
	}
	want := []float64{25.5, 400, 0}
	for i, v := range values {
		if v.Float() != want[i] {
			t.Errorf("%s: Float got %v, want %v", v.Topic(), v.Float(), want[i])
		}
	}
}

func TestEncode(t *testing.T) {
	b, err := Encode[float32]("Humidity, %", 41)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `{"caption":"Humidity, %","value":41}` {
		t.Errorf("unexpected encoding: %s", b)
	}
}
