package localio

import "github.com/sweeney/localio/internal/memmap"

// IsTriggered consumes a one-shot trigger from the auxiliary slot. It returns
// true at most once per memmap.Triggered written there.
func IsTriggered(m *memmap.Map, slot uint8) bool {
	if m.AuxIn(slot) != memmap.Triggered {
		return false
	}
	m.SetAuxIn(slot, memmap.NotTriggered)
	return true
}

// LinkIO relays a non-zero input slot into an output slot so that nodes
// subscribed to this node's outputs receive it. The input slot is reset and
// *trigger, if not nil, is set to memmap.Triggered. It reports whether a
// value was relayed.
func LinkIO(m *memmap.Map, inSlot, outSlot uint8, trigger *byte) bool {
	v := m.In(inSlot)
	if v == 0 {
		return false
	}
	m.SetOut(outSlot, v)
	m.SetIn(inSlot, memmap.ResetCommand)
	if trigger != nil {
		*trigger = memmap.Triggered
	}
	return true
}

// LinkOI copies a non-zero output slot into an input slot.
func LinkOI(m *memmap.Map, inSlot, outSlot uint8) bool {
	v := m.Out(outSlot)
	if v == 0 {
		return false
	}
	m.SetIn(inSlot, v)
	return true
}

// ResetInput clears an input slot.
func ResetInput(m *memmap.Map, slot uint8) {
	m.SetIn(slot, 0)
}

// ResetOutput clears an output slot, typically after a LinkIO value was
// consumed.
func ResetOutput(m *memmap.Map, slot uint8) {
	m.SetOut(slot, 0)
}
