// Package gpio provides digital and analog pin access with hardware abstraction.
// The real implementations use the Linux GPIO character device, periph.io
// host drivers or Raspberry Pi register access, with analog samples read from
// the Linux IIO subsystem.
// The fake implementation allows testing without hardware.
package gpio

// DigitalReader reads the electrical level of a pin (true = high).
type DigitalReader interface {
	DigitalRead(pin uint8) bool
}

// DigitalWriter drives a pin high (true) or low (false).
type DigitalWriter interface {
	DigitalWrite(pin uint8, high bool)
}

// AnalogReader returns a raw ADC sample for a pin.
type AnalogReader interface {
	AnalogRead(pin uint8) uint16
}

// Pins is the full pin backend used by the daemon.
//
// The read and write primitives never fail from the caller's point of view:
// a backend that hits an I/O error returns a low level (or zero sample),
// remembers the first error and reports it through Err.
type Pins interface {
	DigitalReader
	DigitalWriter
	AnalogReader

	// Err returns the first error since the previous call and clears it.
	Err() error

	// Close releases pin resources.
	Close() error
}

// Pull selects the bias applied to an input line.
type Pull string

const (
	PullNone Pull = "none"
	PullUp   Pull = "up"
	PullDown Pull = "down"
)

// InputConfig describes one digital input line.
type InputConfig struct {
	Pin  uint8
	Pull Pull
}

// Setup lists the lines a backend must claim.
type Setup struct {
	Inputs  []InputConfig
	Outputs []uint8
	// Analog pins are read from the IIO device as in_voltage<pin>_raw.
	Analog []uint8
	// IIODevice is the sysfs directory of the ADC, e.g.
	// /sys/bus/iio/devices/iio:device0. Empty disables analog reads.
	IIODevice string
}

// errLatch keeps the first error seen since the last Err call.
type errLatch struct {
	err error
}

func (l *errLatch) set(err error) {
	if l.err == nil {
		l.err = err
	}
}

func (l *errLatch) take() error {
	err := l.err
	l.err = nil
	return err
}
