package bsec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/sweeney/airocat/internal/bme680"
)

// Sensor is the BME680 driver surface used by Passthrough.
type Sensor interface {
	Init() error
	Configure(s bme680.Settings) error
	Measure() (bme680.Measurement, error)
}

// Default warm-up durations.
const (
	DefaultInitialStabilization = 5 * time.Minute
	DefaultPowerOnRunIn         = 30 * time.Minute
)

var stateMagic = []byte("APT1")

// Passthrough is an Engine that publishes the compensated BME680 readings
// directly. It tracks a gas resistance range for the gas percentage and
// derives the warm-up counters from run time. It does not compute IAQ or
// the equivalents; those outputs stay zero.
type Passthrough struct {
	sensor Sensor
	now    func() time.Time
	boot   time.Time

	// InitialStabilization is the accumulated run time after which the
	// stabilization counter reports done. It survives restarts via State.
	InitialStabilization time.Duration

	// PowerOnRunIn is the time since boot after which the run-in counter
	// reports done.
	PowerOnRunIn time.Duration

	rate    SampleRate
	lastRun time.Time
	runTime time.Duration
	gasMin  float64
	gasMax  float64
	out     Outputs

	algorithm Status
	device    Status
}

// NewPassthrough creates an engine over sensor. now is the clock; the first
// call marks power-on.
func NewPassthrough(sensor Sensor, now func() time.Time) *Passthrough {
	return &Passthrough{
		sensor:               sensor,
		now:                  now,
		boot:                 now(),
		InitialStabilization: DefaultInitialStabilization,
		PowerOnRunIn:         DefaultPowerOnRunIn,
		rate:                 SampleRateLP,
	}
}

// Begin initialises and configures the sensor.
func (p *Passthrough) Begin() {
	p.algorithm, p.device = OK, OK
	if err := p.sensor.Init(); err != nil {
		if errors.Is(err, bme680.ErrChipID) {
			p.device = ErrDeviceNotFound
		} else {
			p.device = ErrCommunication
		}
		return
	}
	if err := p.sensor.Configure(bme680.DefaultSettings()); err != nil {
		p.device = ErrCommunication
	}
}

// UpdateSubscription sets the sample rate. Subscribing to the fused air
// quality outputs yields WarnUnsupportedOutput.
func (p *Passthrough) UpdateSubscription(sensors []VirtualSensor, rate SampleRate) {
	p.algorithm, p.device = OK, OK
	if rate != SampleRateLP && rate != SampleRateULP {
		p.algorithm = ErrSampleRate
		return
	}
	p.rate = rate
	for _, s := range sensors {
		switch s {
		case IAQ, StaticIAQ, CO2Equivalent, BreathVOCEquivalent:
			p.algorithm = WarnUnsupportedOutput
		}
	}
}

// Run measures when a sample is due.
func (p *Passthrough) Run() bool {
	p.algorithm, p.device = OK, OK
	now := p.now()
	period := time.Duration(p.rate)
	if !p.lastRun.IsZero() && now.Sub(p.lastRun) < period {
		return false
	}

	m, err := p.sensor.Measure()
	if err != nil {
		p.device = ErrCommunication
		return false
	}

	if !p.lastRun.IsZero() {
		// Gaps longer than two periods mean the loop was stalled.
		p.runTime += min(now.Sub(p.lastRun), 2*period)
	}
	p.lastRun = now

	out := Outputs{
		Temperature:    float32(m.Temperature),
		Humidity:       float32(m.Humidity),
		Pressure:       float32(m.Pressure / 100),
		RawTemperature: float32(m.Temperature),
		RawHumidity:    float32(m.Humidity),
		GasResistance:  p.out.GasResistance,
		GasPercentage:  p.out.GasPercentage,
	}
	if m.GasValid && m.HeaterStable {
		p.trackGas(m.GasResistance)
		out.GasResistance = float32(m.GasResistance)
		out.GasPercentage = float32(p.gasPercentage(m.GasResistance))
	}
	if p.runTime >= p.InitialStabilization {
		out.StabStatus = 1
	}
	if now.Sub(p.boot) >= p.PowerOnRunIn {
		out.RunInStatus = 1
	}
	switch {
	case out.StabStatus != 0 && out.RunInStatus != 0:
		out.IAQAccuracy = 3
	case p.gasMax > p.gasMin:
		out.IAQAccuracy = 1
	}
	p.out = out
	return true
}

func (p *Passthrough) trackGas(r float64) {
	if p.gasMax == 0 {
		p.gasMin, p.gasMax = r, r
		return
	}
	p.gasMin = math.Min(p.gasMin, r)
	p.gasMax = math.Max(p.gasMax, r)
}

// gasPercentage places r in the observed range: 0 is the cleanest air seen
// (highest resistance), 100 the most polluted.
func (p *Passthrough) gasPercentage(r float64) float64 {
	if p.gasMax <= p.gasMin {
		return 0
	}
	return (p.gasMax - r) / (p.gasMax - p.gasMin) * 100
}

// Outputs returns the latest outputs.
func (p *Passthrough) Outputs() Outputs {
	return p.out
}

// Status returns the codes recorded by the last call.
func (p *Passthrough) Status() (algorithm, sensor Status) {
	return p.algorithm, p.device
}

type passthroughState struct {
	RunTimeSeconds uint32
	GasMin         float64
	GasMax         float64
}

// State serializes accumulated run time and the gas range.
func (p *Passthrough) State() []byte {
	p.algorithm, p.device = OK, OK
	var buf bytes.Buffer
	buf.Write(stateMagic)
	binary.Write(&buf, binary.LittleEndian, passthroughState{
		RunTimeSeconds: uint32(p.runTime / time.Second),
		GasMin:         p.gasMin,
		GasMax:         p.gasMax,
	})
	blob := make([]byte, MaxStateBlobSize)
	copy(blob, buf.Bytes())
	return blob
}

// SetState restores a blob produced by State. A blob of the wrong size or
// origin sets ErrInvalidState and leaves the engine untouched.
func (p *Passthrough) SetState(state []byte) {
	p.algorithm, p.device = OK, OK
	if len(state) != MaxStateBlobSize || !bytes.HasPrefix(state, stateMagic) {
		p.algorithm = ErrInvalidState
		return
	}
	var s passthroughState
	r := bytes.NewReader(state[len(stateMagic):])
	if err := binary.Read(r, binary.LittleEndian, &s); err != nil {
		p.algorithm = ErrInvalidState
		return
	}
	p.runTime = time.Duration(s.RunTimeSeconds) * time.Second
	p.gasMin, p.gasMax = s.GasMin, s.GasMax
}
