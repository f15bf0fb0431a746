package bme680

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/airocat/internal/i2cbus"
)

func newTestDevice(bus *i2cbus.FakeBus) (*Device, *[]time.Duration) {
	var slept []time.Duration
	d := New(bus)
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }
	return d, &slept
}

func TestInitRejectsWrongChip(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.Regs[regChipID] = 0x60
	d, _ := newTestDevice(bus)

	err := d.Init()
	if !errors.Is(err, ErrChipID) {
		t.Fatalf("expected ErrChipID, got %v", err)
	}
	if len(bus.Writes) != 0 {
		t.Error("no reset expected for the wrong chip")
	}
}

func TestInitReadsCalibration(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.Regs[regChipID] = chipID
	// T1 lives at coefficient index 33/34, which is the second block.
	bus.Regs[regCoeff2+8] = 0x34
	bus.Regs[regCoeff2+9] = 0x12
	bus.Regs[regHeatRange] = 0x20
	bus.Regs[regHeatVal] = 0xFE
	bus.Regs[regSwErr] = 0xF0
	d, slept := newTestDevice(bus)

	if err := d.Init(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resets := bus.WritesTo(regReset)
	if len(resets) != 1 || resets[0].Data[0] != cmdSoftReset {
		t.Errorf("expected one soft reset, got %+v", resets)
	}
	if len(*slept) != 1 || (*slept)[0] != resetSettleTime {
		t.Errorf("expected settle wait after reset, got %v", *slept)
	}
	if d.calib.t1 != 0x1234 {
		t.Errorf("t1: got %#x", d.calib.t1)
	}
	if d.calib.resHeatRange != 2 {
		t.Errorf("heat range: got %d", d.calib.resHeatRange)
	}
	if d.calib.resHeatVal != -2 {
		t.Errorf("heat val: got %d", d.calib.resHeatVal)
	}
	if d.calib.rangeSwErr != -1 {
		t.Errorf("sw err: got %d", d.calib.rangeSwErr)
	}
}

func TestInitBusError(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.ReadError = errors.New("nack")
	d, _ := newTestDevice(bus)
	if err := d.Init(); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseCalibration(t *testing.T) {
	c := make([]byte, coeff1Len+coeff2Len)
	c[1], c[2] = 0xFE, 0xFF // t2 = -2
	c[25], c[26], c[27] = 0x01, 0xAB, 0x02
	c[33], c[34] = 0x34, 0x12
	c[37] = 0x80

	cal := parseCalibration(c, 1, 3, 0)

	if cal.t2 != -2 {
		t.Errorf("t2: got %d", cal.t2)
	}
	if cal.h2 != 0x1A {
		t.Errorf("h2: got %#x", cal.h2)
	}
	if cal.h1 != 0x2B {
		t.Errorf("h1: got %#x", cal.h1)
	}
	if cal.t1 != 0x1234 {
		t.Errorf("t1: got %#x", cal.t1)
	}
	if cal.gh1 != -128 {
		t.Errorf("gh1: got %d", cal.gh1)
	}
}

func TestConfigureWritesSettings(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	d, _ := newTestDevice(bus)

	if err := d.Configure(DefaultSettings()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		reg  byte
		want byte
	}{
		{regCtrlHum, 0x01},
		{regConfig, 0x08},
		{regCtrlMeas, 0x54},
		{regGasWait0, 101},
		{regCtrlGas1, runGas},
	}
	for _, tt := range tests {
		w := bus.WritesTo(tt.reg)
		if len(w) != 1 {
			t.Errorf("reg %#x: expected one write, got %d", tt.reg, len(w))
			continue
		}
		if w[0].Data[0] != tt.want {
			t.Errorf("reg %#x: got %#x, want %#x", tt.reg, w[0].Data[0], tt.want)
		}
	}
}

func TestEncodeGasWait(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want byte
	}{
		{0, 0},
		{63 * time.Millisecond, 63},
		{100 * time.Millisecond, 0x59},
		{150 * time.Millisecond, 101},
		{time.Second, 190},
		{5 * time.Second, 0xFF},
	}
	for _, tt := range tests {
		if got := encodeGasWait(tt.d); got != tt.want {
			t.Errorf("encodeGasWait(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}

func TestParseField(t *testing.T) {
	b := make([]byte, field0Len)
	b[0] = statusNewData
	b[2], b[3], b[4] = 0x12, 0x34, 0x50
	b[5], b[6], b[7] = 0x28, 0x00, 0x00
	b[8], b[9] = 0x55, 0xAA
	b[13], b[14] = 0x80, 0x33

	f := parseField(b)
	if f.presADC != 0x12345 {
		t.Errorf("pressure adc: got %#x", f.presADC)
	}
	if f.tempADC != 163840 {
		t.Errorf("temperature adc: got %d", f.tempADC)
	}
	if f.humADC != 0x55AA {
		t.Errorf("humidity adc: got %#x", f.humADC)
	}
	if f.gasADC != 512 || f.gasRange != 3 {
		t.Errorf("gas: adc %d range %d", f.gasADC, f.gasRange)
	}
	if !f.gasValid || !f.heatStable {
		t.Error("expected gas valid and heater stable")
	}
}

func TestGasResistance(t *testing.T) {
	var c calibration
	if got := c.gasResistance(512, 0); math.Abs(got-8e6) > 1e-3 {
		t.Errorf("range 0: got %f", got)
	}
	if got := c.gasResistance(512, 1); math.Abs(got-4e6) > 1e-3 {
		t.Errorf("range 1: got %f", got)
	}
}

func TestHumidityIsClamped(t *testing.T) {
	c := calibration{h2: 4095}
	if got := c.humidity(65535, 0); got != 100 {
		t.Errorf("expected clamp to 100, got %f", got)
	}
	c = calibration{h1: 4095, h2: 4095}
	if got := c.humidity(0, 0); got != 0 {
		t.Errorf("expected clamp to 0, got %f", got)
	}
}

func TestMeasure(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.OnWrite = func(f *i2cbus.FakeBus, reg byte, data []byte) {
		if reg != regCtrlMeas || data[0]&0x03 != modeForced {
			return
		}
		f.Regs[regField0] = statusNewData
		f.Regs[regField0+5] = 0x28
		f.Regs[regField0+13] = 0x80
		f.Regs[regField0+14] = gasValidBit | heatStableBit
	}
	d, slept := newTestDevice(bus)
	d.calib = calibration{t2: 12800}
	if err := d.Configure(DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}

	m, err := d.Measure()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Temperature != 25 {
		t.Errorf("temperature: got %f", m.Temperature)
	}
	if !m.GasValid || !m.HeaterStable {
		t.Error("expected valid gas reading")
	}
	if math.Abs(m.GasResistance-8e6) > 1e-3 {
		t.Errorf("gas resistance: got %f", m.GasResistance)
	}
	if len(*slept) != 1 || (*slept)[0] <= DefaultSettings().HeaterTime {
		t.Errorf("expected a single conversion wait longer than the heater time, got %v", *slept)
	}
}

func TestMeasureTimesOut(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	d, _ := newTestDevice(bus)
	if err := d.Configure(DefaultSettings()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := d.Measure(); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestMeasureGasInvalid(t *testing.T) {
	bus := i2cbus.NewFakeBus()
	bus.OnWrite = func(f *i2cbus.FakeBus, reg byte, data []byte) {
		if reg == regCtrlMeas && data[0]&0x03 == modeForced {
			f.Regs[regField0] = statusNewData
			f.Regs[regField0+13] = 0x80
		}
	}
	d, _ := newTestDevice(bus)
	m, err := d.Measure()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.GasValid || m.GasResistance != 0 {
		t.Errorf("expected no gas reading, got %+v", m)
	}
}
