package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPins drives pins through periph.io host drivers. Pins are addressed
// by their BCM numbers ("GPIO<n>").
type PeriphPins struct {
	pins    map[uint8]pgpio.PinIO
	outputs map[uint8]bool
	analog  iioReader
	errs    errLatch
}

// NewPeriphPins initialises the periph host and configures every pin in setup.
func NewPeriphPins(setup Setup) (*PeriphPins, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return newPeriphPins(setup, lookup)
}

// newPeriphPins configures setup using find to resolve pins. Pins already
// configured are halted if a later one fails.
func newPeriphPins(setup Setup, find func(uint8) (pgpio.PinIO, error)) (*PeriphPins, error) {
	p := &PeriphPins{
		pins:    make(map[uint8]pgpio.PinIO),
		outputs: make(map[uint8]bool),
		analog:  iioReader{dir: setup.IIODevice},
	}
	if err := p.configure(setup, find); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *PeriphPins) configure(setup Setup, find func(uint8) (pgpio.PinIO, error)) error {
	for _, in := range setup.Inputs {
		pin, err := find(in.Pin)
		if err != nil {
			return err
		}
		if err := pin.In(periphPull(in.Pull), pgpio.NoEdge); err != nil {
			return fmt.Errorf("configure input pin %d: %w", in.Pin, err)
		}
		p.pins[in.Pin] = pin
	}

	for _, n := range setup.Outputs {
		pin, err := find(n)
		if err != nil {
			return err
		}
		if err := pin.Out(pgpio.Low); err != nil {
			return fmt.Errorf("configure output pin %d: %w", n, err)
		}
		p.pins[n] = pin
		p.outputs[n] = true
	}
	return nil
}

func lookup(n uint8) (pgpio.PinIO, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	if pin == nil {
		return nil, fmt.Errorf("pin GPIO%d not found", n)
	}
	return pin, nil
}

func periphPull(pull Pull) pgpio.Pull {
	switch pull {
	case PullUp:
		return pgpio.PullUp
	case PullDown:
		return pgpio.PullDown
	default:
		return pgpio.Float
	}
}

// DigitalRead returns the pin level. Unknown pins read low.
func (p *PeriphPins) DigitalRead(pin uint8) bool {
	io, ok := p.pins[pin]
	if !ok {
		p.errs.set(fmt.Errorf("read pin %d: not configured", pin))
		return false
	}
	return io.Read() == pgpio.High
}

// DigitalWrite sets an output pin.
func (p *PeriphPins) DigitalWrite(pin uint8, high bool) {
	io, ok := p.pins[pin]
	if !ok || !p.outputs[pin] {
		p.errs.set(fmt.Errorf("write pin %d: not an output", pin))
		return
	}
	if err := io.Out(pgpio.Level(high)); err != nil {
		p.errs.set(fmt.Errorf("write pin %d: %w", pin, err))
	}
}

// AnalogRead returns the raw IIO sample, or 0 on error.
func (p *PeriphPins) AnalogRead(pin uint8) uint16 {
	v, err := p.analog.read(pin)
	if err != nil {
		p.errs.set(err)
		return 0
	}
	return v
}

// Err returns and clears the first error since the last call.
func (p *PeriphPins) Err() error {
	return p.errs.take()
}

// Close drives outputs low and halts every configured pin.
func (p *PeriphPins) Close() error {
	var errs []error
	for n, io := range p.pins {
		if p.outputs[n] {
			if err := io.Out(pgpio.Low); err != nil {
				errs = append(errs, fmt.Errorf("reset pin %d: %w", n, err))
			}
		}
		if err := io.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt pin %d: %w", n, err))
		}
	}
	p.pins = map[uint8]pgpio.PinIO{}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
