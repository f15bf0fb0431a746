// Package i2cbus provides register-level access to I2C devices.
// The real implementation uses the Linux i2c-dev interface.
// The fake implementation allows testing drivers without hardware.
package i2cbus

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

// DefaultDevice is the I2C bus exposed on the Raspberry Pi header.
const DefaultDevice = "/dev/i2c-1"

// Bus reads and writes device registers.
type Bus interface {
	// ReadReg reads len(buf) bytes starting at reg.
	ReadReg(reg byte, buf []byte) error

	// WriteReg writes buf starting at reg. An empty buf sends the
	// register address alone, which some devices treat as a command.
	WriteReg(reg byte, buf []byte) error

	// Close releases the device.
	Close() error
}

// Device is a Bus backed by /dev/i2c-N.
type Device struct {
	dev  *i2c.Device
	addr int
}

// Open opens the device at addr on the given bus file.
func Open(bus string, addr int) (*Device, error) {
	d, err := i2c.Open(&i2c.Devfs{Dev: bus}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s addr %#x", bus, addr)
	}
	return &Device{dev: d, addr: addr}, nil
}

// ReadReg reads len(buf) bytes starting at reg.
func (d *Device) ReadReg(reg byte, buf []byte) error {
	if err := d.dev.ReadReg(reg, buf); err != nil {
		return errors.Wrapf(err, "read reg %#x at %#x", reg, d.addr)
	}
	return nil
}

// WriteReg writes buf starting at reg.
func (d *Device) WriteReg(reg byte, buf []byte) error {
	var err error
	if len(buf) == 0 {
		err = d.dev.Write([]byte{reg})
	} else {
		err = d.dev.WriteReg(reg, buf)
	}
	if err != nil {
		return errors.Wrapf(err, "write reg %#x at %#x", reg, d.addr)
	}
	return nil
}

// Close releases the device.
func (d *Device) Close() error {
	return d.dev.Close()
}
