package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// RpioPins drives Raspberry Pi pins through /dev/gpiomem register access.
// Pins are BCM numbers.
type RpioPins struct {
	inputs  map[uint8]bool
	outputs map[uint8]bool
	analog  iioReader
	errs    errLatch
}

// NewRpioPins maps the GPIO registers and configures every pin in setup.
func NewRpioPins(setup Setup) (*RpioPins, error) {
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "open gpiomem")
	}

	p := &RpioPins{
		inputs:  make(map[uint8]bool),
		outputs: make(map[uint8]bool),
		analog:  iioReader{dir: setup.IIODevice},
	}

	for _, in := range setup.Inputs {
		pin := rpio.Pin(in.Pin)
		pin.Input()
		switch in.Pull {
		case PullUp:
			pin.PullUp()
		case PullDown:
			pin.PullDown()
		default:
			pin.PullOff()
		}
		p.inputs[in.Pin] = true
	}

	for _, n := range setup.Outputs {
		pin := rpio.Pin(n)
		pin.Output()
		pin.Low()
		p.outputs[n] = true
	}

	return p, nil
}

// DigitalRead returns the pin level. Pins not in the setup read low.
func (p *RpioPins) DigitalRead(pin uint8) bool {
	if !p.inputs[pin] && !p.outputs[pin] {
		p.errs.set(errors.Errorf("read pin %d: not configured", pin))
		return false
	}
	return rpio.Pin(pin).Read() == rpio.High
}

// DigitalWrite sets an output pin.
func (p *RpioPins) DigitalWrite(pin uint8, high bool) {
	if !p.outputs[pin] {
		p.errs.set(errors.Errorf("write pin %d: not an output", pin))
		return
	}
	if high {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

// AnalogRead returns the raw IIO sample, or 0 on error.
func (p *RpioPins) AnalogRead(pin uint8) uint16 {
	v, err := p.analog.read(pin)
	if err != nil {
		p.errs.set(err)
		return 0
	}
	return v
}

// Err returns and clears the first error since the last call.
func (p *RpioPins) Err() error {
	return p.errs.take()
}

// Close drives outputs low, returns inputs to no pull and unmaps the registers.
func (p *RpioPins) Close() error {
	for n := range p.outputs {
		rpio.Pin(n).Low()
	}
	for n := range p.inputs {
		rpio.Pin(n).PullOff()
	}
	p.inputs = map[uint8]bool{}
	p.outputs = map[uint8]bool{}
	return errors.Wrap(rpio.Close(), "close gpiomem")
}
