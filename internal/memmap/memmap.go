// Package memmap provides a typed view over a node's memory map: a flat byte
// buffer split into an input region, an output region and an auxiliary-input
// (trigger) region. Values are addressed by region and slot; the byte layout
// is preserved exactly so the buffer can be shared with other components.
package memmap

import "fmt"

// Reserved byte values.
const (
	// NoDataChanged is returned by input bindings when nothing was written.
	NoDataChanged byte = 0xF0

	// Triggered marks a pending one-shot action in the auxiliary region.
	Triggered byte = 0x01

	// NotTriggered is written back once a trigger has been consumed.
	NotTriggered byte = 0x00

	// ResetCommand is written into an input slot after it has been relayed.
	ResetCommand byte = 0x00
)

// Region identifies one of the three memory map regions.
type Region string

const (
	RegionIn    Region = "in"
	RegionOut   Region = "out"
	RegionAuxIn Region = "auxin"
)

// Layout describes where each region starts and how many slots it holds.
type Layout struct {
	Slots     int
	InBase    int
	OutBase   int
	AuxInBase int
}

// DefaultLayout places the input, output and auxiliary regions back to back.
func DefaultLayout(slots int) Layout {
	return Layout{
		Slots:     slots,
		InBase:    0,
		OutBase:   slots,
		AuxInBase: 2 * slots,
	}
}

// Size returns the minimum buffer length needed for the layout.
func (l Layout) Size() int {
	end := l.InBase
	for _, base := range []int{l.OutBase, l.AuxInBase} {
		if base > end {
			end = base
		}
	}
	return end + l.Slots
}

// Validate checks that the regions are non-empty and do not overlap.
func (l Layout) Validate() error {
	if l.Slots <= 0 || l.Slots > 256 {
		return fmt.Errorf("slots must be in 1..256, got %d", l.Slots)
	}
	bases := map[Region]int{RegionIn: l.InBase, RegionOut: l.OutBase, RegionAuxIn: l.AuxInBase}
	for r, b := range bases {
		if b < 0 {
			return fmt.Errorf("%s region base is negative: %d", r, b)
		}
	}
	for r1, b1 := range bases {
		for r2, b2 := range bases {
			if r1 < r2 && b1 < b2+l.Slots && b2 < b1+l.Slots {
				return fmt.Errorf("%s and %s regions overlap", r1, r2)
			}
		}
	}
	return nil
}

// Map is a region/slot accessor over a contiguous buffer.
// Not safe for concurrent use.
type Map struct {
	layout Layout
	buf    []byte
}

// New allocates a zeroed buffer for the layout.
func New(layout Layout) (*Map, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("memmap: %w", err)
	}
	return &Map{layout: layout, buf: make([]byte, layout.Size())}, nil
}

// Wrap builds a view over a caller-owned buffer. The buffer is neither copied
// nor resized.
func Wrap(layout Layout, buf []byte) (*Map, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("memmap: %w", err)
	}
	if len(buf) < layout.Size() {
		return nil, fmt.Errorf("memmap: buffer too small: need %d bytes, have %d", layout.Size(), len(buf))
	}
	return &Map{layout: layout, buf: buf}, nil
}

// Layout returns the layout the map was built with.
func (m *Map) Layout() Layout {
	return m.layout
}

// Bytes returns the underlying buffer.
func (m *Map) Bytes() []byte {
	return m.buf
}

// Region returns a copy of the given region.
func (m *Map) Region(r Region) []byte {
	base := m.base(r)
	out := make([]byte, m.layout.Slots)
	copy(out, m.buf[base:base+m.layout.Slots])
	return out
}

// Get reads a slot from the given region.
func (m *Map) Get(r Region, slot uint8) byte {
	return m.buf[m.offset(r, slot)]
}

// Set writes a slot in the given region.
func (m *Map) Set(r Region, slot uint8, v byte) {
	m.buf[m.offset(r, slot)] = v
}

func (m *Map) In(slot uint8) byte          { return m.Get(RegionIn, slot) }
func (m *Map) SetIn(slot uint8, v byte)    { m.Set(RegionIn, slot, v) }
func (m *Map) Out(slot uint8) byte         { return m.Get(RegionOut, slot) }
func (m *Map) SetOut(slot uint8, v byte)   { m.Set(RegionOut, slot, v) }
func (m *Map) AuxIn(slot uint8) byte       { return m.Get(RegionAuxIn, slot) }
func (m *Map) SetAuxIn(slot uint8, v byte) { m.Set(RegionAuxIn, slot, v) }

// AuxInRef returns a pointer to an auxiliary slot, for helpers that raise a
// trigger flag owned by someone else.
func (m *Map) AuxInRef(slot uint8) *byte {
	return &m.buf[m.offset(RegionAuxIn, slot)]
}

// ParseRegion maps a region name to a Region.
func ParseRegion(s string) (Region, error) {
	switch Region(s) {
	case RegionIn, RegionOut, RegionAuxIn:
		return Region(s), nil
	}
	return "", fmt.Errorf("unknown region %q", s)
}

func (m *Map) base(r Region) int {
	switch r {
	case RegionIn:
		return m.layout.InBase
	case RegionOut:
		return m.layout.OutBase
	case RegionAuxIn:
		return m.layout.AuxInBase
	}
	panic(fmt.Sprintf("memmap: unknown region %q", r))
}

// offset panics when slot lies outside the layout; callers must validate
// slots up front.
func (m *Map) offset(r Region, slot uint8) int {
	if int(slot) >= m.layout.Slots {
		panic(fmt.Sprintf("memmap: slot %d out of range (%d slots)", slot, m.layout.Slots))
	}
	return m.base(r) + int(slot)
}
