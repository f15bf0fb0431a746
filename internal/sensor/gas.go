package sensor

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/airocat/internal/ccs811"
	"github.com/sweeney/airocat/internal/logic"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/observable"
)

// DefaultGasPublishInterval is the default minimum time between gas flushes.
const DefaultGasPublishInterval = 60 * time.Second

// GasOptions configures a Gas.
type GasOptions struct {
	Sensor    ccs811.Sensor
	Transport observable.Transport
	Topics    mqtt.Topics

	// PublishInterval is the minimum time between flushes.
	PublishInterval time.Duration

	Retain bool
	Now    func() time.Time
	Log    *log.Entry
}

// Gas orchestrates the CCS811.
type Gas struct {
	sensor ccs811.Sensor
	retain bool
	now    func() time.Time
	logger *log.Entry

	gate  *logic.Gate
	ready bool
	fault logic.Fault

	co2  *observable.Value[uint16]
	tvoc *observable.Value[uint16]

	entries []entry
}

// NewGas creates a gas orchestrator. Call Setup before Read.
func NewGas(opts GasOptions) *Gas {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = log.WithField("sensor", "ccs811")
	}

	g := &Gas{
		sensor: opts.Sensor,
		retain: opts.Retain,
		now:    opts.Now,
		logger: opts.Log,
		gate:   logic.NewGate(opts.PublishInterval, opts.Now()),
	}

	u16 := func(d descriptor) *observable.Value[uint16] {
		v := observable.New[uint16](opts.Transport, d.caption, opts.Topics.Value(d.id), 0)
		g.entries = append(g.entries, entry{desc: d, value: v})
		return v
	}
	g.co2 = u16(descriptor{"co2", "CO2, ppm", "carbon_dioxide", "ppm"})
	g.tvoc = u16(descriptor{"tvoc", "TVOC, ppb", "volatile_organic_compounds_parts", "ppb"})
	return g
}

// Setup starts the sensor.
func (g *Gas) Setup() error {
	return g.sensor.Begin()
}

// Read checks for a new result. When none is ready and the sensor flags an
// error, both values are reset to zero and the fault is decoded for the
// log. A failed result read resets the values without decoding. It reports
// whether a result was read; the result stays in the driver until Publish.
func (g *Gas) Read() bool {
	g.ready = false
	if !g.sensor.DataAvailable() {
		if g.sensor.CheckForStatusError() {
			g.reset()
			g.fault = logic.DecodeFault(g.sensor.ErrorRegister())
			if g.fault == logic.FaultUnreadable {
				g.logger.Warn("sensor error, failed to read error register")
			} else {
				g.logger.WithField("fault", g.fault).Warn("sensor error")
			}
		}
		return false
	}

	if r := g.sensor.ReadAlgorithmResults(); r != ccs811.Success {
		g.logger.WithField("result", r).Warn("reading algorithm results failed")
		g.reset()
		return false
	}
	g.fault = ""
	g.ready = true
	return true
}

func (g *Gas) reset() {
	g.co2.Set(0)
	g.tvoc.Set(0)
}

// Publish moves the last read result into the values and flushes them once
// per publish interval. Nothing happens unless the last Read succeeded. It
// returns the number of values sent.
func (g *Gas) Publish() int {
	if !g.ready {
		return 0
	}
	if !g.gate.Due(g.now()) {
		return 0
	}

	g.co2.Set(g.sensor.CO2())
	g.tvoc.Set(g.sensor.TVOC())
	sent, failed := flush(g.entries, g.retain, true)
	if failed > 0 {
		g.logger.WithField("failed", failed).Debug("publish incomplete, will retry")
	}
	return sent
}

// SetEnvironment passes climate readings to the sensor for compensation.
func (g *Gas) SetEnvironment(humidity, temperature float32) {
	if err := g.sensor.SetEnvironmentalData(humidity, temperature); err != nil {
		g.logger.WithError(err).Warn("set environmental data")
	}
}

// Fault returns the last decoded fault, empty when the last read succeeded.
func (g *Gas) Fault() logic.Fault {
	return g.fault
}

// CO2 returns the current CO2 value, ppm.
func (g *Gas) CO2() uint16 {
	return g.co2.Get()
}

// TVOC returns the current TVOC value, ppb.
func (g *Gas) TVOC() uint16 {
	return g.tvoc.Get()
}

// Values returns every observable value owned by the gas sensor.
func (g *Gas) Values() []observable.Publishable {
	return values(g.entries)
}

// Announce emits a discovery record per value.
func (g *Gas) Announce(d Discoverer) int {
	return announce(d, g.entries)
}
