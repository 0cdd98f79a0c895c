// Package localio binds physical pins to a node's memory map.
//
// Input bindings read a pin, advance that pin's debounce state and write the
// result into the input region. Output bindings read the output region and
// drive a pin. All calls are synchronous and meant to be made from a single
// polling goroutine; nothing here locks.
package localio

import (
	"time"

	"github.com/sweeney/localio/internal/gpio"
)

// Pins is the set of pin primitives the bindings need.
type Pins interface {
	gpio.DigitalReader
	gpio.DigitalWriter
	gpio.AnalogReader
}

// Defaults for HAL configuration.
const (
	DefaultTwoButtonTop    uint16 = 900
	DefaultTwoButtonBottom uint16 = 100
	DefaultHoldTime               = 1500 * time.Millisecond
)

// Config holds the HAL-wide settings.
type Config struct {
	// TwoButtonTop is the lowest sample classified as button 1.
	TwoButtonTop uint16
	// TwoButtonBottom is the highest sample classified as button 2.
	TwoButtonBottom uint16
	// SharedHoldTimer makes all hold bindings share one press timestamp.
	SharedHoldTimer bool
	// Now is the clock used by hold bindings. Defaults to time.Now.
	Now func() time.Time
}

// HAL owns the per-pin state for one node. Separate HAL values share nothing.
type HAL struct {
	pins    Pins
	tracker *Tracker
	top     uint16
	bottom  uint16
	now     func() time.Time
	at      time.Time
}

// New creates a HAL over pins. Zero thresholds take their defaults.
func New(pins Pins, cfg Config) *HAL {
	h := &HAL{
		pins:    pins,
		tracker: NewTracker(cfg.SharedHoldTimer),
		top:     cfg.TwoButtonTop,
		bottom:  cfg.TwoButtonBottom,
		now:     cfg.Now,
	}
	if h.top == 0 {
		h.top = DefaultTwoButtonTop
	}
	if h.bottom == 0 {
		h.bottom = DefaultTwoButtonBottom
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// SetTime fixes the time hold bindings see until the next call. A zero t
// returns them to the configured clock.
func (h *HAL) SetTime(t time.Time) {
	h.at = t
}

func (h *HAL) clock() time.Time {
	if !h.at.IsZero() {
		return h.at
	}
	return h.now()
}

// Tracker exposes the pin state table for inspection.
func (h *HAL) Tracker() *Tracker {
	return h.tracker
}

// Thresholds returns the two-button classification thresholds.
func (h *HAL) Thresholds() (top, bottom uint16) {
	return h.top, h.bottom
}
