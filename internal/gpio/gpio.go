// Package gpio provides GPIO output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single GPIO line.
type Output interface {
	// SetValue drives the line: 0 is low, anything else is high.
	SetValue(value int) error

	// Close releases GPIO resources.
	Close() error
}

// PinWake is the default CCS811 nWAKE line (BCM numbering).
// The sensor listens on I2C only while nWAKE is low.
const PinWake = 17
