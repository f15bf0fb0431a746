// Package bsec defines the climate fusion engine boundary: an engine that is
// fed by the BME680 and exposes its latest outputs in one batch.
//
// Status handling follows the vendor convention: every call records an
// algorithm status and a sensor status, negative values are errors and
// positive values are warnings.
package bsec

import (
	"fmt"
	"time"
)

// MaxStateBlobSize is the size of the opaque engine state.
const MaxStateBlobSize = 139

// VirtualSensor is one engine output that can be subscribed to.
type VirtualSensor uint8

const (
	IAQ VirtualSensor = iota + 1
	StaticIAQ
	CO2Equivalent
	BreathVOCEquivalent
	RawTemperature
	RawPressure
	RawHumidity
	RawGas
	StabilizationStatus
	RunInStatus
	HeatCompensatedTemperature
	HeatCompensatedHumidity
	GasPercentage
)

// AllSensors is the subscription list used by the monitor.
var AllSensors = []VirtualSensor{
	IAQ,
	StaticIAQ,
	CO2Equivalent,
	BreathVOCEquivalent,
	RawTemperature,
	RawPressure,
	RawHumidity,
	RawGas,
	StabilizationStatus,
	RunInStatus,
	HeatCompensatedTemperature,
	HeatCompensatedHumidity,
	GasPercentage,
}

// SampleRate is the period between engine samples.
type SampleRate time.Duration

const (
	SampleRateLP  = SampleRate(3 * time.Second)
	SampleRateULP = SampleRate(300 * time.Second)
)

// Status is an engine or sensor status code.
type Status int8

const (
	OK Status = 0

	// WarnUnsupportedOutput means a subscribed output is not produced.
	WarnUnsupportedOutput Status = 10

	ErrCommunication  Status = -2
	ErrDeviceNotFound Status = -3
	ErrSampleRate     Status = -10
	ErrInvalidState   Status = -32
)

// IsError reports whether s is an error code.
func (s Status) IsError() bool { return s < OK }

// IsWarning reports whether s is a warning code.
func (s Status) IsWarning() bool { return s > OK }

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case WarnUnsupportedOutput:
		return "unsupported output"
	case ErrCommunication:
		return "communication failure"
	case ErrDeviceNotFound:
		return "device not found"
	case ErrSampleRate:
		return "invalid sample rate"
	case ErrInvalidState:
		return "invalid state"
	default:
		return fmt.Sprintf("status %d", int8(s))
	}
}

// Outputs is the batch of values produced by one engine run.
type Outputs struct {
	IAQ                 float32
	IAQAccuracy         uint8
	StaticIAQ           float32
	CO2Equivalent       float32
	BreathVOCEquivalent float32
	Temperature         float32 // °C, heat compensated
	Humidity            float32 // %RH, heat compensated
	Pressure            float32 // hPa
	GasResistance       float32 // Ohm
	GasPercentage       float32 // %
	RawTemperature      float32
	RawHumidity         float32
	StabStatus          float32 // nonzero once initial stabilization finished
	RunInStatus         float32 // nonzero once power-on run-in finished
}

// Engine is the fusion engine contract used by the climate sensor.
type Engine interface {
	// Begin initialises the engine and the sensor behind it.
	Begin()

	// UpdateSubscription selects the outputs to compute and the rate.
	UpdateSubscription(sensors []VirtualSensor, rate SampleRate)

	// Run performs a sample if one is due and reports whether new
	// outputs are available.
	Run() bool

	// Outputs returns the outputs of the latest successful Run.
	Outputs() Outputs

	// Status returns the status codes recorded by the last call.
	Status() (algorithm, sensor Status)

	// State serializes the engine state, MaxStateBlobSize bytes.
	State() []byte

	// SetState restores a state produced by State.
	SetState(state []byte)
}
