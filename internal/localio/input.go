package localio

import (
	"time"

	"github.com/sweeney/localio/internal/memmap"
)

// EdgeOptions configures DigIn and LowDigIn.
type EdgeOptions struct {
	// FilterActive requires the active level on two consecutive polls before
	// the value is written.
	FilterActive bool
}

// HoldOptions configures DigInHold and LowDigInHold.
type HoldOptions struct {
	// HoldTime is how long the pin must stay active before the hold value is
	// written. Zero means DefaultHoldTime.
	HoldTime time.Duration
}

// AnalogScale is the affine transform applied by AnalogIn: bias + scaling*raw.
type AnalogScale struct {
	Scaling float32
	Bias    float32
}

// DigIn writes value into input slot on the rising edge of pin.
//
// It returns the written value, or memmap.NoDataChanged. A nil map advances
// the pin state without writing anything.
func (h *HAL) DigIn(pin uint8, value byte, m *memmap.Map, slot uint8, opt EdgeOptions) byte {
	return h.edge(pin, h.pins.DigitalRead(pin), value, m, slot, opt.FilterActive)
}

// LowDigIn is DigIn for an active-low pin (falling edge).
func (h *HAL) LowDigIn(pin uint8, value byte, m *memmap.Map, slot uint8, opt EdgeOptions) byte {
	return h.edge(pin, !h.pins.DigitalRead(pin), value, m, slot, opt.FilterActive)
}

func (h *HAL) edge(pin uint8, active bool, value byte, m *memmap.Map, slot uint8, filter bool) byte {
	switch st := h.tracker.State(pin); {
	case active && st == StateReset:
		h.tracker.set(pin, StateSet)
		if !filter && m != nil {
			m.SetIn(slot, value)
			return value
		}
	case active && st == StateSet && filter:
		// Level survived a second poll: confirmed.
		h.tracker.set(pin, StateActive)
		if m != nil {
			m.SetIn(slot, value)
			return value
		}
	case !active && st == StateActive && filter:
		h.tracker.set(pin, StateReleased)
	case !active:
		// RELEASED confirmed, or released before confirmation, or no filter.
		h.tracker.set(pin, StateReset)
	}
	return memmap.NoDataChanged
}

// DigIn2State follows a latched two-state switch: onValue is written when the
// pin goes high, offValue when it goes low. The written value is returned even
// when m is nil.
func (h *HAL) DigIn2State(pin uint8, onValue, offValue byte, m *memmap.Map, slot uint8) byte {
	return h.twoState(pin, h.pins.DigitalRead(pin), onValue, offValue, m, slot)
}

// LowDigIn2State is DigIn2State for an active-low switch.
func (h *HAL) LowDigIn2State(pin uint8, onValue, offValue byte, m *memmap.Map, slot uint8) byte {
	return h.twoState(pin, !h.pins.DigitalRead(pin), onValue, offValue, m, slot)
}

func (h *HAL) twoState(pin uint8, active bool, onValue, offValue byte, m *memmap.Map, slot uint8) byte {
	st := h.tracker.State(pin)
	switch {
	case active && st == StateReset:
		h.tracker.set(pin, StateSet)
		writeIn(m, slot, onValue)
		return onValue
	case !active && st != StateReset:
		h.tracker.set(pin, StateReset)
		writeIn(m, slot, offValue)
		return offValue
	}
	return memmap.NoDataChanged
}

// AnalogIn2Buttons decodes two pushbuttons wired to one analog pin through
// different pull-up ladders. A sample at or above the top threshold is button
// 1, at or below the bottom threshold button 2. Anything in between means no
// button and re-arms the pin.
func (h *HAL) AnalogIn2Buttons(pin uint8, button1, button2 byte, m *memmap.Map, slot uint8) byte {
	sample := h.pins.AnalogRead(pin)

	var v byte
	switch {
	case sample >= h.top:
		v = button1
	case sample <= h.bottom:
		v = button2
	default:
		h.tracker.set(pin, StateReset)
		return memmap.NoDataChanged
	}

	if h.tracker.State(pin) != StateReset {
		return memmap.NoDataChanged
	}
	h.tracker.set(pin, StateSet)
	writeIn(m, slot, v)
	return v
}

// DigInHold distinguishes a short press from a press held longer than the
// hold time. A short press writes value on release; a long press writes
// holdValue once, while still held, and nothing on release.
func (h *HAL) DigInHold(pin uint8, value, holdValue byte, m *memmap.Map, slot uint8, opt HoldOptions) byte {
	return h.hold(pin, h.pins.DigitalRead(pin), value, holdValue, m, slot, opt)
}

// LowDigInHold is DigInHold for an active-low pin.
func (h *HAL) LowDigInHold(pin uint8, value, holdValue byte, m *memmap.Map, slot uint8, opt HoldOptions) byte {
	return h.hold(pin, !h.pins.DigitalRead(pin), value, holdValue, m, slot, opt)
}

func (h *HAL) hold(pin uint8, active bool, value, holdValue byte, m *memmap.Map, slot uint8, opt HoldOptions) byte {
	holdTime := opt.HoldTime
	if holdTime <= 0 {
		holdTime = DefaultHoldTime
	}

	switch st := h.tracker.State(pin); {
	case active && st == StateReset:
		h.tracker.markPressed(pin, h.clock())
		h.tracker.set(pin, StateSet)
	case active && st == StateSet && h.clock().Sub(h.tracker.pressedAt(pin)) > holdTime:
		h.tracker.set(pin, StateActive)
		writeIn(m, slot, holdValue)
		return holdValue
	case !active && st == StateSet:
		h.tracker.set(pin, StateReset)
		writeIn(m, slot, value)
		return value
	case !active && st == StateActive:
		h.tracker.set(pin, StateReset)
	}
	return memmap.NoDataChanged
}

// ImportAnalog stores an already-sampled value as float16 in the input slot
// pair starting at slot.
func ImportAnalog(m *memmap.Map, slot uint8, value float32) {
	if m == nil {
		return
	}
	m.SetFloat16In(slot, value)
}

// AnalogIn samples pin, scales the raw value and stores it as float16 in the
// input slot pair starting at slot.
func (h *HAL) AnalogIn(pin uint8, m *memmap.Map, slot uint8, scale AnalogScale) {
	raw := float32(h.pins.AnalogRead(pin))
	ImportAnalog(m, slot, scale.Bias+scale.Scaling*raw)
}

func writeIn(m *memmap.Map, slot uint8, v byte) {
	if m != nil {
		m.SetIn(slot, v)
	}
}
