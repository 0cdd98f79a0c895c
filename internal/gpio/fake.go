package gpio

import "errors"

// FakePins is a test double holding pin levels and analog samples in memory.
type FakePins struct {
	// Levels holds the current level of every pin. Inputs are set by the
	// test; outputs are updated by DigitalWrite.
	Levels map[uint8]bool

	// Analog holds the sample returned by AnalogRead per pin.
	Analog map[uint8]uint16

	// Writes records every DigitalWrite in call order.
	Writes []Write

	// Reads counts DigitalRead calls per pin.
	Reads map[uint8]int

	// ReadError, if set, is reported once by Err after any read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	errs errLatch
}

// Write is one recorded DigitalWrite call.
type Write struct {
	Pin  uint8
	High bool
}

// NewFakePins creates FakePins with all pins low.
func NewFakePins() *FakePins {
	return &FakePins{
		Levels: make(map[uint8]bool),
		Analog: make(map[uint8]uint16),
		Reads:  make(map[uint8]int),
	}
}

// Set sets the level of a pin.
func (f *FakePins) Set(pin uint8, high bool) {
	f.Levels[pin] = high
}

// SetAnalog sets the sample returned for an analog pin.
func (f *FakePins) SetAnalog(pin uint8, v uint16) {
	f.Analog[pin] = v
}

// DigitalRead returns the stored level.
func (f *FakePins) DigitalRead(pin uint8) bool {
	f.Reads[pin]++
	if f.ReadError != nil {
		f.errs.set(f.ReadError)
	}
	return f.Levels[pin]
}

// DigitalWrite stores the level and records the call.
func (f *FakePins) DigitalWrite(pin uint8, high bool) {
	f.Levels[pin] = high
	f.Writes = append(f.Writes, Write{Pin: pin, High: high})
}

// AnalogRead returns the stored sample.
func (f *FakePins) AnalogRead(pin uint8) uint16 {
	if f.ReadError != nil {
		f.errs.set(f.ReadError)
	}
	return f.Analog[pin]
}

// Err returns and clears the first error since the last call.
func (f *FakePins) Err() error {
	return f.errs.take()
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	if f.Closed {
		return errors.New("fake pins already closed")
	}
	f.Closed = true
	return nil
}

// Reset clears levels, samples and recorded calls.
func (f *FakePins) Reset() {
	f.Levels = make(map[uint8]bool)
	f.Analog = make(map[uint8]uint16)
	f.Reads = make(map[uint8]int)
	f.Writes = nil
	f.ReadError = nil
	f.Closed = false
	f.errs = errLatch{}
}
