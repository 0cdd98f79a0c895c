package node

import (
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/localio/internal/localio"
	"github.com/sweeney/localio/internal/memmap"
)

// Node polls bindings against a memory map and reports what changed.
// Not safe for concurrent use; call everything from the poll loop.
type Node struct {
	hal      *localio.HAL
	mem      *memmap.Map
	bindings []Binding

	// lastOut remembers watched output slots to detect changes.
	lastOut map[uint8]byte

	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// New validates bindings and orders them by phase (inputs, links, outputs),
// keeping configuration order within a phase.
func New(hal *localio.HAL, mem *memmap.Map, bindings []Binding, startTime time.Time) (*Node, error) {
	if err := Validate(bindings, mem.Layout()); err != nil {
		return nil, err
	}

	ordered := make([]Binding, len(bindings))
	copy(ordered, bindings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return PhaseOf(ordered[i].Kind) < PhaseOf(ordered[j].Kind)
	})

	n := &Node{
		hal:           hal,
		mem:           mem,
		bindings:      ordered,
		lastOut:       make(map[uint8]byte),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	for _, b := range ordered {
		if IsOutput(b.Kind) && b.Kind != KindPulse && b.Kind != KindLowPulse {
			n.lastOut[b.Slot] = mem.Out(b.Slot)
		}
	}
	return n, nil
}

// Validate checks kinds, pin numbers and slots against the layout, and that
// no two digital inputs share a pin.
func Validate(bindings []Binding, layout memmap.Layout) error {
	inputPins := make(map[uint8]int)
	for i, b := range bindings {
		info, ok := kinds[b.Kind]
		if !ok {
			return fmt.Errorf("binding %d (%s): unknown kind %q", i, b.Name, b.Kind)
		}
		if info.usesPin && int(b.Pin) >= localio.MaxPins {
			return fmt.Errorf("binding %d (%s): pin %d out of range (max %d)", i, b.Name, b.Pin, localio.MaxPins-1)
		}
		if int(b.Slot) >= layout.Slots {
			return fmt.Errorf("binding %d (%s): slot %d out of range (%d slots)", i, b.Name, b.Slot, layout.Slots)
		}
		if info.float16 && int(b.Slot)+1 >= layout.Slots {
			return fmt.Errorf("binding %d (%s): float16 needs slots %d and %d", i, b.Name, b.Slot, b.Slot+1)
		}
		if info.phase == PhaseLink && int(b.OutSlot) >= layout.Slots {
			return fmt.Errorf("binding %d (%s): out slot %d out of range (%d slots)", i, b.Name, b.OutSlot, layout.Slots)
		}
		if info.digitalIn {
			if prev, dup := inputPins[b.Pin]; dup {
				return fmt.Errorf("binding %d (%s): pin %d already used by binding %d", i, b.Name, b.Pin, prev)
			}
			inputPins[b.Pin] = i
		}
	}
	return nil
}

// Poll runs one cycle and returns the events it produced.
func (n *Node) Poll(now time.Time) []Event {
	var events []Event
	n.hal.SetTime(now)

	for _, b := range n.bindings {
		switch PhaseOf(b.Kind) {
		case PhaseInput:
			if v := n.pollInput(b); v != memmap.NoDataChanged {
				events = append(events, Event{
					Timestamp: now,
					Type:      EventInput,
					Binding:   b.Name,
					Kind:      b.Kind,
					Pin:       b.Pin,
					Region:    memmap.RegionIn,
					Slot:      b.Slot,
					Value:     v,
				})
			}
		case PhaseLink:
			if b.Kind == KindLinkIO {
				if localio.LinkIO(n.mem, b.Slot, b.OutSlot, n.mem.AuxInRef(b.OutSlot)) {
					events = append(events, Event{
						Timestamp: now,
						Type:      EventLink,
						Binding:   b.Name,
						Kind:      b.Kind,
						Region:    memmap.RegionOut,
						Slot:      b.OutSlot,
						Value:     n.mem.Out(b.OutSlot),
					})
				}
			} else {
				localio.LinkOI(n.mem, b.Slot, b.OutSlot)
			}
		case PhaseOutput:
			n.pollOutput(b)
		}
	}

	events = append(events, n.outputChanges(now)...)

	for _, e := range events {
		switch e.Type {
		case EventInput:
			n.eventCounts.Input++
		case EventLink:
			n.eventCounts.Link++
		case EventOutput:
			n.eventCounts.Output++
		}
	}

	return events
}

func (n *Node) pollInput(b Binding) byte {
	h, m := n.hal, n.mem
	switch b.Kind {
	case KindDigIn:
		return h.DigIn(b.Pin, b.Value, m, b.Slot, localio.EdgeOptions{FilterActive: b.Filter})
	case KindLowDigIn:
		return h.LowDigIn(b.Pin, b.Value, m, b.Slot, localio.EdgeOptions{FilterActive: b.Filter})
	case KindDigIn2State:
		return h.DigIn2State(b.Pin, b.Value, b.Alt, m, b.Slot)
	case KindLowDigIn2State:
		return h.LowDigIn2State(b.Pin, b.Value, b.Alt, m, b.Slot)
	case KindAnalogIn2Buttons:
		return h.AnalogIn2Buttons(b.Pin, b.Value, b.Alt, m, b.Slot)
	case KindDigInHold:
		return h.DigInHold(b.Pin, b.Value, b.Alt, m, b.Slot, localio.HoldOptions{HoldTime: b.Hold})
	case KindLowDigInHold:
		return h.LowDigInHold(b.Pin, b.Value, b.Alt, m, b.Slot, localio.HoldOptions{HoldTime: b.Hold})
	case KindAnalogIn:
		h.AnalogIn(b.Pin, m, b.Slot, localio.AnalogScale{Scaling: b.Scaling, Bias: b.Bias})
	}
	return memmap.NoDataChanged
}

func (n *Node) pollOutput(b Binding) {
	h, m := n.hal, n.mem
	switch b.Kind {
	case KindDigOut:
		h.DigOut(b.Pin, b.Value, m, b.Slot)
	case KindLowDigOut:
		h.LowDigOut(b.Pin, b.Value, m, b.Slot)
	case KindNDigOut:
		h.NDigOut(b.Pin, b.Value, m, b.Slot)
	case KindNLowDigOut:
		h.NLowDigOut(b.Pin, b.Value, m, b.Slot)
	case KindDigOutToggle:
		h.DigOutToggle(b.Pin, b.Value, m, b.Slot)
	case KindLowDigOutToggle:
		h.LowDigOutToggle(b.Pin, b.Value, m, b.Slot)
	case KindDigOutLessThan:
		h.DigOutLessThan(b.Pin, b.Value, b.Deadband, m, b.Slot)
	case KindLowDigOutLessThan:
		h.LowDigOutLessThan(b.Pin, b.Value, b.Deadband, m, b.Slot)
	case KindDigOutGreaterThan:
		h.DigOutGreaterThan(b.Pin, b.Value, b.Deadband, m, b.Slot)
	case KindLowDigOutGreaterThan:
		h.LowDigOutGreaterThan(b.Pin, b.Value, b.Deadband, m, b.Slot)
	case KindPulse:
		h.DigOutPulse(b.Pin, m, b.Slot)
	case KindLowPulse:
		h.LowDigOutPulse(b.Pin, m, b.Slot)
	}
}

// outputChanges reports watched output slots whose value differs from the
// previous poll, in slot order.
func (n *Node) outputChanges(now time.Time) []Event {
	var slots []int
	for slot, prev := range n.lastOut {
		if n.mem.Out(slot) != prev {
			slots = append(slots, int(slot))
		}
	}
	sort.Ints(slots)

	var events []Event
	for _, s := range slots {
		slot := uint8(s)
		v := n.mem.Out(slot)
		n.lastOut[slot] = v
		events = append(events, Event{
			Timestamp: now,
			Type:      EventOutput,
			Region:    memmap.RegionOut,
			Slot:      slot,
			Value:     v,
		})
	}
	return events
}

// Apply writes a command into the memory map. Call it between polls.
func (n *Node) Apply(cmd Command) error {
	if int(cmd.Slot) >= n.mem.Layout().Slots {
		return fmt.Errorf("slot %d out of range (%d slots)", cmd.Slot, n.mem.Layout().Slots)
	}
	if _, err := memmap.ParseRegion(string(cmd.Region)); err != nil {
		return err
	}
	n.mem.Set(cmd.Region, cmd.Slot, cmd.Value)
	return nil
}

// Memory returns the node's memory map.
func (n *Node) Memory() *memmap.Map {
	return n.mem
}

// Bindings returns the bindings in poll order.
func (n *Node) Bindings() []Binding {
	out := make([]Binding, len(n.bindings))
	copy(out, n.bindings)
	return out
}

// PinStates returns the debounce state of every digital input pin, keyed by
// pin number.
func (n *Node) PinStates() map[uint8]localio.PinState {
	states := make(map[uint8]localio.PinState)
	for _, b := range n.bindings {
		if IsDigitalInput(b.Kind) {
			states[b.Pin] = n.hal.Tracker().State(b.Pin)
		}
	}
	return states
}

// EventCountsSnapshot returns a copy of the event counters.
func (n *Node) EventCountsSnapshot() EventCounts {
	return n.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (n *Node) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(n.lastHeartbeat) < interval {
		return nil
	}

	n.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(n.startTime),
		Counts:    n.eventCounts,
	}
}
