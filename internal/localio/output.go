package localio

import "github.com/sweeney/localio/internal/memmap"

// DigOut drives pin high while output slot equals value, low otherwise.
func (h *HAL) DigOut(pin uint8, value byte, m *memmap.Map, slot uint8) {
	h.drive(pin, m.Out(slot) == value, false)
}

// LowDigOut is DigOut for an active-low load.
func (h *HAL) LowDigOut(pin uint8, value byte, m *memmap.Map, slot uint8) {
	h.drive(pin, m.Out(slot) == value, true)
}

// NDigOut drives pin high while output slot shares any bit with mask.
func (h *HAL) NDigOut(pin uint8, mask byte, m *memmap.Map, slot uint8) {
	h.drive(pin, m.Out(slot)&mask != 0, false)
}

// NLowDigOut is NDigOut for an active-low load.
func (h *HAL) NLowDigOut(pin uint8, mask byte, m *memmap.Map, slot uint8) {
	h.drive(pin, m.Out(slot)&mask != 0, true)
}

// DigOutToggle flips pin on every call while output slot equals value and
// holds it low otherwise.
func (h *HAL) DigOutToggle(pin uint8, value byte, m *memmap.Map, slot uint8) {
	h.toggle(pin, value, m, slot, false)
}

// LowDigOutToggle is DigOutToggle for an active-low load.
func (h *HAL) LowDigOutToggle(pin uint8, value byte, m *memmap.Map, slot uint8) {
	h.toggle(pin, value, m, slot, true)
}

func (h *HAL) toggle(pin uint8, value byte, m *memmap.Map, slot uint8, inverted bool) {
	if m.Out(slot) != value {
		h.drive(pin, false, inverted)
		return
	}
	h.pins.DigitalWrite(pin, !h.pins.DigitalRead(pin))
}

// DigOutLessThan drives pin high when output slot drops below
// value-deadband and low when it rises above value+deadband. Inside the band,
// boundaries included, the pin is left alone.
func (h *HAL) DigOutLessThan(pin uint8, value, deadband byte, m *memmap.Map, slot uint8) {
	h.threshold(pin, value, deadband, m, slot, true, false)
}

// LowDigOutLessThan is DigOutLessThan for an active-low load.
func (h *HAL) LowDigOutLessThan(pin uint8, value, deadband byte, m *memmap.Map, slot uint8) {
	h.threshold(pin, value, deadband, m, slot, true, true)
}

// DigOutGreaterThan drives pin high when output slot rises above
// value+deadband and low when it drops below value-deadband. Inside the band,
// boundaries included, the pin is left alone.
func (h *HAL) DigOutGreaterThan(pin uint8, value, deadband byte, m *memmap.Map, slot uint8) {
	h.threshold(pin, value, deadband, m, slot, false, false)
}

// LowDigOutGreaterThan is DigOutGreaterThan for an active-low load.
func (h *HAL) LowDigOutGreaterThan(pin uint8, value, deadband byte, m *memmap.Map, slot uint8) {
	h.threshold(pin, value, deadband, m, slot, false, true)
}

func (h *HAL) threshold(pin uint8, value, deadband byte, m *memmap.Map, slot uint8, below, inverted bool) {
	v := int(m.Out(slot))
	lo := int(value) - int(deadband)
	hi := int(value) + int(deadband)

	switch {
	case v < lo:
		h.drive(pin, below, inverted)
	case v > hi:
		h.drive(pin, !below, inverted)
	}
}

// DigOutPulse drives pin high for exactly one poll each time the auxiliary
// slot is triggered, for loads that need a one-shot command.
func (h *HAL) DigOutPulse(pin uint8, m *memmap.Map, auxSlot uint8) {
	h.drive(pin, IsTriggered(m, auxSlot), false)
}

// LowDigOutPulse is DigOutPulse for an active-low load.
func (h *HAL) LowDigOutPulse(pin uint8, m *memmap.Map, auxSlot uint8) {
	h.drive(pin, IsTriggered(m, auxSlot), true)
}

// drive sets the logical state of pin; inverted loads are on when low.
func (h *HAL) drive(pin uint8, on, inverted bool) {
	h.pins.DigitalWrite(pin, on != inverted)
}
