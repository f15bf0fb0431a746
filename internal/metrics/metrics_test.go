package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sweeney/airocat/internal/status"
)

type fixedSource struct {
	snap status.Snapshot
}

func (f fixedSource) Snapshot() status.Snapshot {
	return f.snap
}

func testSnapshot() status.Snapshot {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return status.Snapshot{
		Readings: []status.Reading{
			{Topic: "airocat/co2", Caption: "CO2, ppm", Numeric: 412, Published: true},
			{Topic: "airocat/tvoc", Caption: "TVOC, ppb", Numeric: 17},
		},
		Stabilized:    true,
		Publishes:     status.PublishCounts{OK: 7, Failed: 2},
		StartTime:     start,
		Now:           start.Add(90 * time.Second),
		MQTTConnected: true,
	}
}

func TestCollectorReadings(t *testing.T) {
	c := NewCollector(fixedSource{testSnapshot()})

	expected := `
# HELP airocat_reading Current value of a sensor reading.
# TYPE airocat_reading gauge
airocat_reading{caption="CO2, ppm",topic="airocat/co2"} 412
airocat_reading{caption="TVOC, ppb",topic="airocat/tvoc"} 17
# HELP airocat_reading_published Whether the current value of a reading reached the broker (1) or not (0).
# TYPE airocat_reading_published gauge
airocat_reading_published{topic="airocat/co2"} 1
airocat_reading_published{topic="airocat/tvoc"} 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "airocat_reading", "airocat_reading_published"); err != nil {
		t.Error(err)
	}
}

func TestCollectorDaemonState(t *testing.T) {
	c := NewCollector(fixedSource{testSnapshot()})

	expected := `
# HELP airocat_mqtt_connected Whether the broker connection is up (1) or down (0).
# TYPE airocat_mqtt_connected gauge
airocat_mqtt_connected 1
# HELP airocat_publish_attempts_total Publish attempts by result.
# TYPE airocat_publish_attempts_total counter
airocat_publish_attempts_total{result="failed"} 2
airocat_publish_attempts_total{result="ok"} 7
# HELP airocat_stabilized Whether the climate sensor finished both warm-up phases (1) or not (0).
# TYPE airocat_stabilized gauge
airocat_stabilized 1
# HELP airocat_uptime_seconds Seconds since the daemon started.
# TYPE airocat_uptime_seconds gauge
airocat_uptime_seconds 90
`
	names := []string{
		"airocat_mqtt_connected",
		"airocat_publish_attempts_total",
		"airocat_stabilized",
		"airocat_uptime_seconds",
	}
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), names...); err != nil {
		t.Error(err)
	}
}

func TestCollectorNoReadings(t *testing.T) {
	c := NewCollector(fixedSource{status.Snapshot{}})
	if n := testutil.CollectAndCount(c, "airocat_reading"); n != 0 {
		t.Errorf("expected no reading series, got %d", n)
	}
}

func TestCollectorLint(t *testing.T) {
	c := NewCollector(fixedSource{testSnapshot()})
	problems, err := testutil.CollectAndLint(c)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	for _, p := range problems {
		t.Errorf("%s: %s", p.Metric, p.Text)
	}
}

func TestHandler(t *testing.T) {
	ts := httptest.NewServer(Handler(NewCollector(fixedSource{testSnapshot()})))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `airocat_reading{caption="CO2, ppm",topic="airocat/co2"} 412`) {
		t.Errorf("reading not exposed:\n%s", body)
	}
	if !strings.Contains(string(body), "go_build_info") {
		t.Error("expected build info")
	}
}
