// Package ccs811 provides a driver for the ams CCS811 eCO2/TVOC gas sensor
// over I2C, with an optional nWAKE line.
//
// https://www.sciosense.com/wp-content/uploads/2020/01/CCS811-Datasheet.pdf
package ccs811

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/airocat/internal/gpio"
	"github.com/sweeney/airocat/internal/i2cbus"
)

// Addresses the sensor answers on, selected by the ADDR pin.
const (
	AddressLow  = 0x5A
	AddressHigh = 0x5B
)

const (
	regStatus    = 0x00
	regMeasMode  = 0x01
	regAlgResult = 0x02
	regEnvData   = 0x05
	regHWID      = 0x20
	regErrorID   = 0xE0
	regAppStart  = 0xF4
	regSWReset   = 0xFF

	hardwareID = 0x81

	statusError     = 1 << 0
	statusDataReady = 1 << 3
	statusAppValid  = 1 << 4
	statusFWMode    = 1 << 7

	// Constant power mode, one measurement per second.
	driveMode1 = 0x10

	// ErrorUnreadable is reported by ErrorRegister when the register read
	// itself failed.
	ErrorUnreadable = 0xFF
)

var resetSequence = []byte{0x11, 0xE5, 0x72, 0x8A}

// ErrHardwareID is returned when the device at the address is not a CCS811.
var ErrHardwareID = errors.New("ccs811: unexpected hardware id")

// Result is the outcome of an algorithm result read.
type Result uint8

const (
	Success Result = iota
	IDError
	BusError
	InternalError
	GenericError
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case IDError:
		return "id error"
	case BusError:
		return "bus error"
	case InternalError:
		return "internal error"
	default:
		return "generic error"
	}
}

// Sensor is the driver surface used by the gas orchestrator.
type Sensor interface {
	Begin() error
	DataAvailable() bool
	CheckForStatusError() bool
	ReadAlgorithmResults() Result
	CO2() uint16
	TVOC() uint16
	ErrorRegister() uint8
	SetEnvironmentalData(humidity, temperature float32) error
}

// Device is a CCS811 on an I2C bus.
type Device struct {
	bus  i2cbus.Bus
	wake gpio.Output

	co2  uint16
	tvoc uint16

	sleep func(time.Duration)
}

// New creates a driver for the sensor on bus. wake may be nil when nWAKE is
// tied to ground.
func New(bus i2cbus.Bus, wake gpio.Output) *Device {
	return &Device{
		bus:   bus,
		wake:  wake,
		sleep: time.Sleep,
	}
}

// Begin wakes and resets the sensor, checks its hardware id, starts the
// application firmware and selects drive mode 1.
func (d *Device) Begin() error {
	if d.wake != nil {
		if err := d.wake.SetValue(0); err != nil {
			return errors.Wrap(err, "assert nWAKE")
		}
		d.sleep(50 * time.Microsecond)
	}

	if err := d.bus.WriteReg(regSWReset, resetSequence); err != nil {
		return errors.Wrap(err, "software reset")
	}
	d.sleep(2 * time.Millisecond)

	id := make([]byte, 1)
	if err := d.bus.ReadReg(regHWID, id); err != nil {
		return errors.Wrap(err, "read hardware id")
	}
	if id[0] != hardwareID {
		return errors.Wrapf(ErrHardwareID, "got %#x", id[0])
	}

	status, err := d.status()
	if err != nil {
		return err
	}
	if status&statusError != 0 {
		return errors.Errorf("ccs811: error flag set after reset (error id %#x)", d.ErrorRegister())
	}
	if status&statusAppValid == 0 {
		return errors.New("ccs811: no valid application firmware")
	}

	if err := d.bus.WriteReg(regAppStart, nil); err != nil {
		return errors.Wrap(err, "start application")
	}
	d.sleep(time.Millisecond)

	if status, err = d.status(); err != nil {
		return err
	}
	if status&statusFWMode == 0 {
		return errors.New("ccs811: still in boot mode after app start")
	}

	if err := d.bus.WriteReg(regMeasMode, []byte{driveMode1}); err != nil {
		return errors.Wrap(err, "write meas_mode")
	}
	return nil
}

func (d *Device) status() (byte, error) {
	b := make([]byte, 1)
	if err := d.bus.ReadReg(regStatus, b); err != nil {
		return 0, errors.Wrap(err, "read status")
	}
	return b[0], nil
}

// DataAvailable reports whether a new result is ready. A bus failure reads
// as no data.
func (d *Device) DataAvailable() bool {
	s, err := d.status()
	return err == nil && s&statusDataReady != 0
}

// CheckForStatusError reports whether the status error flag is set.
// A bus failure counts as an error.
func (d *Device) CheckForStatusError() bool {
	s, err := d.status()
	return err != nil || s&statusError != 0
}

// ReadAlgorithmResults reads eCO2 and TVOC into the driver.
func (d *Device) ReadAlgorithmResults() Result {
	b := make([]byte, 4)
	if err := d.bus.ReadReg(regAlgResult, b); err != nil {
		return BusError
	}
	d.co2 = uint16(b[0])<<8 | uint16(b[1])
	d.tvoc = uint16(b[2])<<8 | uint16(b[3])
	return Success
}

// CO2 returns the eCO2 value of the last successful result read, in ppm.
func (d *Device) CO2() uint16 { return d.co2 }

// TVOC returns the TVOC value of the last successful result read, in ppb.
func (d *Device) TVOC() uint16 { return d.tvoc }

// ErrorRegister returns ERROR_ID, or ErrorUnreadable if the read failed.
func (d *Device) ErrorRegister() uint8 {
	b := make([]byte, 1)
	if err := d.bus.ReadReg(regErrorID, b); err != nil {
		return ErrorUnreadable
	}
	return b[0]
}

// SetEnvironmentalData writes humidity (%RH) and temperature (°C) used by
// the sensor for compensation.
func (d *Device) SetEnvironmentalData(humidity, temperature float32) error {
	if err := d.bus.WriteReg(regEnvData, EncodeEnvironment(humidity, temperature)); err != nil {
		return errors.Wrap(err, "write env_data")
	}
	return nil
}

// Close drives nWAKE high and releases the bus.
func (d *Device) Close() error {
	if d.wake != nil {
		d.wake.SetValue(1)
		d.wake.Close()
	}
	return d.bus.Close()
}

// EncodeEnvironment builds the ENV_DATA payload: humidity and temperature
// + 25 in units of 1/512, big-endian.
func EncodeEnvironment(humidity, temperature float32) []byte {
	h := clampUint16(float64(humidity) * 512)
	t := clampUint16((float64(temperature) + 25) * 512)
	return []byte{byte(h >> 8), byte(h), byte(t >> 8), byte(t)}
}

func clampUint16(v float64) uint16 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
