// Package node runs a configured set of local-IO bindings against one memory
// map, one poll cycle at a time.
// Time is always injectable via time.Time parameters.
package node

import (
	"time"

	"github.com/sweeney/localio/internal/memmap"
)

// Kind names a binding type.
type Kind string

const (
	KindDigIn                Kind = "digin"
	KindLowDigIn             Kind = "lowdigin"
	KindDigIn2State          Kind = "digin2state"
	KindLowDigIn2State       Kind = "lowdigin2state"
	KindAnalogIn2Buttons     Kind = "analogin2buttons"
	KindDigInHold            Kind = "diginhold"
	KindLowDigInHold         Kind = "lowdiginhold"
	KindAnalogIn             Kind = "analogin"
	KindDigOut               Kind = "digout"
	KindLowDigOut            Kind = "lowdigout"
	KindNDigOut              Kind = "ndigout"
	KindNLowDigOut           Kind = "nlowdigout"
	KindDigOutToggle         Kind = "digouttoggle"
	KindLowDigOutToggle      Kind = "lowdigouttoggle"
	KindDigOutLessThan       Kind = "digoutlessthan"
	KindLowDigOutLessThan    Kind = "lowdigoutlessthan"
	KindDigOutGreaterThan    Kind = "digoutgreaterthan"
	KindLowDigOutGreaterThan Kind = "lowdigoutgreaterthan"
	KindPulse                Kind = "pulse"
	KindLowPulse             Kind = "lowpulse"
	KindLinkIO               Kind = "linkio"
	KindLinkOI               Kind = "linkoi"
)

// Phase orders bindings within a poll cycle.
type Phase int

const (
	PhaseInput Phase = iota
	PhaseLink
	PhaseOutput
)

type kindInfo struct {
	phase Phase
	// usesPin is false for the link helpers.
	usesPin bool
	// digitalIn marks bindings that own a slot in the pin state table.
	digitalIn bool
	// float16 bindings occupy Slot and Slot+1.
	float16 bool
}

var kinds = map[Kind]kindInfo{
	KindDigIn:                {PhaseInput, true, true, false},
	KindLowDigIn:             {PhaseInput, true, true, false},
	KindDigIn2State:          {PhaseInput, true, true, false},
	KindLowDigIn2State:       {PhaseInput, true, true, false},
	KindAnalogIn2Buttons:     {PhaseInput, true, true, false},
	KindDigInHold:            {PhaseInput, true, true, false},
	KindLowDigInHold:         {PhaseInput, true, true, false},
	KindAnalogIn:             {PhaseInput, true, false, true},
	KindLinkIO:               {PhaseLink, false, false, false},
	KindLinkOI:               {PhaseLink, false, false, false},
	KindDigOut:               {PhaseOutput, true, false, false},
	KindLowDigOut:            {PhaseOutput, true, false, false},
	KindNDigOut:              {PhaseOutput, true, false, false},
	KindNLowDigOut:           {PhaseOutput, true, false, false},
	KindDigOutToggle:         {PhaseOutput, true, false, false},
	KindLowDigOutToggle:      {PhaseOutput, true, false, false},
	KindDigOutLessThan:       {PhaseOutput, true, false, false},
	KindLowDigOutLessThan:    {PhaseOutput, true, false, false},
	KindDigOutGreaterThan:    {PhaseOutput, true, false, false},
	KindLowDigOutGreaterThan: {PhaseOutput, true, false, false},
	KindPulse:                {PhaseOutput, true, false, false},
	KindLowPulse:             {PhaseOutput, true, false, false},
}

// Known reports whether k is a supported binding kind.
func Known(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

// PhaseOf returns the poll phase of a known kind.
func PhaseOf(k Kind) Phase {
	return kinds[k].phase
}

// IsDigitalInput reports whether k keeps per-pin debounce state.
func IsDigitalInput(k Kind) bool {
	return kinds[k].digitalIn
}

// IsOutput reports whether k drives a pin from the output region.
func IsOutput(k Kind) bool {
	return kinds[k].phase == PhaseOutput
}

// Binding is one configured call site.
//
// Field use depends on Kind:
//   - Value: written value (inputs), match value or mask (outputs), short-press
//     value (hold), on value (2-state), button 1 (two-button).
//   - Alt: hold value (hold), off value (2-state), button 2 (two-button).
//   - Slot: input slot for inputs and links, output slot for outputs, aux slot
//     for pulses.
//   - OutSlot: output slot for links.
type Binding struct {
	Name     string
	Kind     Kind
	Pin      uint8
	Slot     uint8
	OutSlot  uint8
	Value    byte
	Alt      byte
	Deadband byte
	Filter   bool
	Hold     time.Duration
	Scaling  float32
	Bias     float32
}

// EventType identifies what changed in a poll.
type EventType string

const (
	EventInput  EventType = "INPUT"
	EventLink   EventType = "LINK"
	EventOutput EventType = "OUTPUT"
)

// Event is one memory map change produced by a poll.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Binding   string
	Kind      Kind
	Pin       uint8
	Region    memmap.Region
	Slot      uint8
	Value     byte
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Input  int
	Link   int
	Output int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// Command sets one memory map slot from outside the poll loop.
type Command struct {
	Region memmap.Region
	Slot   uint8
	Value  byte
}
