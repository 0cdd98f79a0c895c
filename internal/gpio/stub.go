//go:build !linux

package gpio

import "errors"

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(chipName string, setup Setup) (*RealPins, error) {
	return nil, errors.New("gpio: character device not supported on this platform (requires Linux)")
}

func (p *RealPins) DigitalRead(pin uint8) bool        { return false }
func (p *RealPins) DigitalWrite(pin uint8, high bool) {}
func (p *RealPins) AnalogRead(pin uint8) uint16       { return 0 }
func (p *RealPins) Err() error                        { return errors.New("gpio: not supported") }
func (p *RealPins) Close() error                      { return nil }
