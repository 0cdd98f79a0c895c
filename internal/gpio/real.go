//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins drives lines through the Linux GPIO character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	lines   map[uint8]*gpiocdev.Line
	outputs map[uint8]bool
	analog  iioReader
	errs    errLatch
}

// NewRealPins opens the named chip (e.g. "gpiochip0") and requests every
// line listed in setup.
func NewRealPins(chipName string, setup Setup) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	p := &RealPins{
		chip:    chip,
		lines:   make(map[uint8]*gpiocdev.Line),
		outputs: make(map[uint8]bool),
		analog:  iioReader{dir: setup.IIODevice},
	}

	for _, in := range setup.Inputs {
		line, err := chip.RequestLine(int(in.Pin), gpiocdev.AsInput, biasOption(in.Pull))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request input pin %d: %w", in.Pin, err)
		}
		p.lines[in.Pin] = line
	}

	for _, pin := range setup.Outputs {
		line, err := chip.RequestLine(int(pin), gpiocdev.AsOutput(0))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		p.lines[pin] = line
		p.outputs[pin] = true
	}

	return p, nil
}

func biasOption(pull Pull) gpiocdev.LineReqOption {
	switch pull {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	default:
		return gpiocdev.WithBiasDisabled
	}
}

// DigitalRead returns the line level. Unknown lines and read errors read low.
func (p *RealPins) DigitalRead(pin uint8) bool {
	line, ok := p.lines[pin]
	if !ok {
		p.errs.set(fmt.Errorf("read pin %d: line not requested", pin))
		return false
	}
	v, err := line.Value()
	if err != nil {
		p.errs.set(fmt.Errorf("read pin %d: %w", pin, err))
		return false
	}
	return v != 0
}

// DigitalWrite sets an output line.
func (p *RealPins) DigitalWrite(pin uint8, high bool) {
	line, ok := p.lines[pin]
	if !ok || !p.outputs[pin] {
		p.errs.set(fmt.Errorf("write pin %d: not an output", pin))
		return
	}
	v := 0
	if high {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		p.errs.set(fmt.Errorf("write pin %d: %w", pin, err))
	}
}

// AnalogRead returns the raw IIO sample, or 0 on error.
func (p *RealPins) AnalogRead(pin uint8) uint16 {
	v, err := p.analog.read(pin)
	if err != nil {
		p.errs.set(err)
		return 0
	}
	return v
}

// Err returns and clears the first error since the last call.
func (p *RealPins) Err() error {
	return p.errs.take()
}

// Close releases GPIO resources.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so outputs do not keep driving loads after shutdown.
func (p *RealPins) Close() error {
	var errs []error

	for pin, line := range p.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	p.lines = map[uint8]*gpiocdev.Line{}

	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		p.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
