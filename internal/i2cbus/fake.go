package i2cbus

import "github.com/pkg/errors"

// Write is one WriteReg call recorded by FakeBus.
type Write struct {
	Reg  byte
	Data []byte
}

// FakeBus is a test double backed by a 256-byte register map.
// Reads of consecutive registers auto-increment like most I2C devices.
type FakeBus struct {
	// Regs is the register map returned by ReadReg.
	Regs [256]byte

	// Writes records every WriteReg call in order.
	Writes []Write

	// ReadError, if set, is returned by ReadReg.
	ReadError error

	// WriteError, if set, is returned by WriteReg.
	WriteError error

	// OnWrite, if set, runs after a successful write so tests can model
	// device side effects (e.g. a measurement completing).
	OnWrite func(f *FakeBus, reg byte, data []byte)

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBus creates an empty FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// ReadReg copies register contents into buf.
func (f *FakeBus) ReadReg(reg byte, buf []byte) error {
	if f.ReadError != nil {
		return f.ReadError
	}
	if int(reg)+len(buf) > len(f.Regs) {
		return errors.Errorf("read past register map: reg %#x len %d", reg, len(buf))
	}
	copy(buf, f.Regs[reg:])
	return nil
}

// WriteReg records the write and stores data into the register map.
func (f *FakeBus) WriteReg(reg byte, buf []byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	data := append([]byte(nil), buf...)
	f.Writes = append(f.Writes, Write{Reg: reg, Data: data})
	copy(f.Regs[reg:], data)
	if f.OnWrite != nil {
		f.OnWrite(f, reg, data)
	}
	return nil
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

// WritesTo returns the recorded writes for one register.
func (f *FakeBus) WritesTo(reg byte) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Reg == reg {
			out = append(out, w)
		}
	}
	return out
}
