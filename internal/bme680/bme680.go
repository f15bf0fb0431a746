// Package bme680 provides a driver for the Bosch BME680 gas, pressure,
// temperature and humidity sensor over I2C.
//
// The driver runs the sensor in forced mode: every Measure call triggers one
// TPHG conversion and returns the compensated values.
//
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme680-ds001.pdf
package bme680

import (
	"time"

	"github.com/pkg/errors"

	"github.com/sweeney/airocat/internal/i2cbus"
)

// Addresses the sensor answers on, selected by the SDO pin.
const (
	AddressLow  = 0x76
	AddressHigh = 0x77
)

const (
	chipID = 0x61

	regChipID    = 0xD0
	regReset     = 0xE0
	regCtrlGas0  = 0x70
	regCtrlGas1  = 0x71
	regCtrlHum   = 0x72
	regCtrlMeas  = 0x74
	regConfig    = 0x75
	regResHeat0  = 0x5A
	regGasWait0  = 0x64
	regField0    = 0x1D
	regCoeff1    = 0x89
	regCoeff2    = 0xE1
	regHeatRange = 0x02
	regHeatVal   = 0x00
	regSwErr     = 0x04

	cmdSoftReset = 0xB6

	coeff1Len = 25
	coeff2Len = 16
	field0Len = 15

	modeSleep  = 0x00
	modeForced = 0x01

	statusNewData   = 0x80
	gasValidBit     = 0x20
	heatStableBit   = 0x10
	runGas          = 0x10
	gasRangeMask    = 0x0F
	pollStep        = 10 * time.Millisecond
	resetSettleTime = 10 * time.Millisecond
)

// ErrChipID is returned when the device at the address is not a BME680.
var ErrChipID = errors.New("bme680: unexpected chip id")

// Oversampling is an oversampling setting for T, P or H.
type Oversampling uint8

const (
	OversamplingSkip Oversampling = iota
	Oversampling1x
	Oversampling2x
	Oversampling4x
	Oversampling8x
	Oversampling16x
)

// Filter is the IIR filter coefficient setting.
type Filter uint8

const (
	FilterOff Filter = iota
	Filter1
	Filter3
	Filter7
	Filter15
	Filter31
	Filter63
	Filter127
)

// Settings configures a measurement.
type Settings struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	HeaterTemp  uint16        // target heater temperature, °C (200..400)
	HeaterTime  time.Duration // heater duration, up to 4032 ms
	AmbientTemp float64       // °C, used for the heater resistance calculation
}

// DefaultSettings matches the low-power configuration of the fusion library.
func DefaultSettings() Settings {
	return Settings{
		Temperature: Oversampling2x,
		Pressure:    Oversampling16x,
		Humidity:    Oversampling1x,
		Filter:      Filter3,
		HeaterTemp:  320,
		HeaterTime:  150 * time.Millisecond,
		AmbientTemp: 25,
	}
}

// Measurement is one compensated TPHG reading.
type Measurement struct {
	Temperature   float64 // °C
	Pressure      float64 // Pa
	Humidity      float64 // %RH
	GasResistance float64 // Ohm, zero when GasValid is false
	GasValid      bool
	HeaterStable  bool
}

// Device is a BME680 on an I2C bus.
type Device struct {
	bus      i2cbus.Bus
	calib    calibration
	settings Settings
	ctrlMeas byte

	// sleep is replaceable so tests do not wait for conversions.
	sleep func(time.Duration)
}

// New creates a driver for the sensor on bus. Call Init before measuring.
func New(bus i2cbus.Bus) *Device {
	return &Device{
		bus:   bus,
		sleep: time.Sleep,
	}
}

// Init verifies the chip id, soft-resets the sensor and reads its
// calibration data.
func (d *Device) Init() error {
	id := make([]byte, 1)
	if err := d.bus.ReadReg(regChipID, id); err != nil {
		return errors.Wrap(err, "read chip id")
	}
	if id[0] != chipID {
		return errors.Wrapf(ErrChipID, "got %#x", id[0])
	}

	if err := d.bus.WriteReg(regReset, []byte{cmdSoftReset}); err != nil {
		return errors.Wrap(err, "soft reset")
	}
	d.sleep(resetSettleTime)

	coeff := make([]byte, coeff1Len+coeff2Len)
	if err := d.bus.ReadReg(regCoeff1, coeff[:coeff1Len]); err != nil {
		return errors.Wrap(err, "read calibration block 1")
	}
	if err := d.bus.ReadReg(regCoeff2, coeff[coeff1Len:]); err != nil {
		return errors.Wrap(err, "read calibration block 2")
	}

	extra := make([]byte, 1)
	if err := d.bus.ReadReg(regHeatRange, extra); err != nil {
		return errors.Wrap(err, "read heater range")
	}
	heatRange := (extra[0] & 0x30) >> 4
	if err := d.bus.ReadReg(regHeatVal, extra); err != nil {
		return errors.Wrap(err, "read heater value")
	}
	heatVal := int8(extra[0])
	if err := d.bus.ReadReg(regSwErr, extra); err != nil {
		return errors.Wrap(err, "read range switching error")
	}
	swErr := int8(extra[0]) >> 4

	d.calib = parseCalibration(coeff, heatRange, heatVal, swErr)
	return nil
}

// Configure writes oversampling, filter and heater settings.
func (d *Device) Configure(s Settings) error {
	if err := d.bus.WriteReg(regCtrlHum, []byte{byte(s.Humidity) & 0x07}); err != nil {
		return errors.Wrap(err, "write ctrl_hum")
	}
	if err := d.bus.WriteReg(regConfig, []byte{(byte(s.Filter) & 0x07) << 2}); err != nil {
		return errors.Wrap(err, "write config")
	}
	d.ctrlMeas = (byte(s.Temperature)&0x07)<<5 | (byte(s.Pressure)&0x07)<<2
	if err := d.bus.WriteReg(regCtrlMeas, []byte{d.ctrlMeas | modeSleep}); err != nil {
		return errors.Wrap(err, "write ctrl_meas")
	}

	resHeat := d.calib.heaterResistance(s.HeaterTemp, s.AmbientTemp)
	if err := d.bus.WriteReg(regResHeat0, []byte{resHeat}); err != nil {
		return errors.Wrap(err, "write res_heat_0")
	}
	if err := d.bus.WriteReg(regGasWait0, []byte{encodeGasWait(s.HeaterTime)}); err != nil {
		return errors.Wrap(err, "write gas_wait_0")
	}
	if err := d.bus.WriteReg(regCtrlGas0, []byte{0x00}); err != nil {
		return errors.Wrap(err, "write ctrl_gas_0")
	}
	if err := d.bus.WriteReg(regCtrlGas1, []byte{runGas}); err != nil {
		return errors.Wrap(err, "write ctrl_gas_1")
	}
	d.settings = s
	return nil
}

// Measure triggers a forced-mode conversion, waits for it to finish and
// returns the compensated reading.
func (d *Device) Measure() (Measurement, error) {
	if err := d.bus.WriteReg(regCtrlMeas, []byte{d.ctrlMeas | modeForced}); err != nil {
		return Measurement{}, errors.Wrap(err, "trigger forced mode")
	}

	d.sleep(d.measureDuration())

	field := make([]byte, field0Len)
	deadline := d.settings.HeaterTime + time.Second
	for waited := time.Duration(0); ; waited += pollStep {
		if err := d.bus.ReadReg(regField0, field); err != nil {
			return Measurement{}, errors.Wrap(err, "read field 0")
		}
		if field[0]&statusNewData != 0 {
			break
		}
		if waited >= deadline {
			return Measurement{}, errors.New("bme680: measurement did not complete")
		}
		d.sleep(pollStep)
	}

	return d.calib.compensate(parseField(field)), nil
}

// measureDuration estimates the TPH conversion time plus heater time.
func (d *Device) measureDuration() time.Duration {
	cycles := oversamplingCycles(d.settings.Temperature) +
		oversamplingCycles(d.settings.Pressure) +
		oversamplingCycles(d.settings.Humidity)
	us := cycles*1963 + 477*4 + 477*5 + 500
	return time.Duration(us)*time.Microsecond + d.settings.HeaterTime
}

func oversamplingCycles(o Oversampling) int {
	switch o {
	case Oversampling1x:
		return 1
	case Oversampling2x:
		return 2
	case Oversampling4x:
		return 4
	case Oversampling8x:
		return 8
	case Oversampling16x:
		return 16
	default:
		return 0
	}
}

// encodeGasWait converts a heater duration into the gas_wait register
// format: 6-bit value with a 2-bit multiplier (1, 4, 16, 64).
func encodeGasWait(d time.Duration) byte {
	ms := d.Milliseconds()
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor int64
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms + factor*64)
}

// rawField is the undecoded content of the field 0 data registers.
type rawField struct {
	status     byte
	tempADC    uint32
	presADC    uint32
	humADC     uint16
	gasADC     uint16
	gasRange   uint8
	gasValid   bool
	heatStable bool
}

func parseField(b []byte) rawField {
	return rawField{
		status:     b[0],
		presADC:    uint32(b[2])<<12 | uint32(b[3])<<4 | uint32(b[4])>>4,
		tempADC:    uint32(b[5])<<12 | uint32(b[6])<<4 | uint32(b[7])>>4,
		humADC:     uint16(b[8])<<8 | uint16(b[9]),
		gasADC:     uint16(b[13])<<2 | uint16(b[14])>>6,
		gasRange:   b[14] & gasRangeMask,
		gasValid:   b[14]&gasValidBit != 0,
		heatStable: b[14]&heatStableBit != 0,
	}
}
