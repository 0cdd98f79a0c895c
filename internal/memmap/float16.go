package memmap

import (
	"encoding/binary"
	"fmt"

	"github.com/x448/float16"
)

// SetFloat16In stores v as a little-endian binary16 value in the input slot
// and the slot after it.
func (m *Map) SetFloat16In(slot uint8, v float32) {
	off := m.pairOffset(RegionIn, slot)
	binary.LittleEndian.PutUint16(m.buf[off:off+2], float16.Fromfloat32(v).Bits())
}

// Float16In decodes the binary16 value stored at the input slot pair.
func (m *Map) Float16In(slot uint8) float32 {
	off := m.pairOffset(RegionIn, slot)
	return float16.Frombits(binary.LittleEndian.Uint16(m.buf[off : off+2])).Float32()
}

// Float16Out decodes the binary16 value stored at the output slot pair.
func (m *Map) Float16Out(slot uint8) float32 {
	off := m.pairOffset(RegionOut, slot)
	return float16.Frombits(binary.LittleEndian.Uint16(m.buf[off : off+2])).Float32()
}

func (m *Map) pairOffset(r Region, slot uint8) int {
	if int(slot)+1 >= m.layout.Slots {
		panic(fmt.Sprintf("memmap: float16 at slot %d does not fit (%d slots)", slot, m.layout.Slots))
	}
	return m.base(r) + int(slot)
}
