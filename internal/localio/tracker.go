package localio

import (
	"fmt"
	"time"
)

// MaxPins is the size of the per-pin state table.
const MaxPins = 64

// PinState is the debounce state of one input pin.
type PinState uint8

const (
	StateReset PinState = iota
	StateSet
	StateActive
	StateReleased
)

func (s PinState) String() string {
	switch s {
	case StateReset:
		return "RESET"
	case StateSet:
		return "SET"
	case StateActive:
		return "ACTIVE"
	case StateReleased:
		return "RELEASED"
	}
	return fmt.Sprintf("PinState(%d)", uint8(s))
}

// Tracker records the state of every input pin and the time each hold-style
// binding saw its pin pressed.
//
// With shared set, every hold binding uses a single press timestamp, so two
// pins held at the same time overwrite each other's timer. That mode exists
// only for compatibility testing against nodes that behave that way.
type Tracker struct {
	states  [MaxPins]PinState
	pressed [MaxPins]time.Time
	shared  bool
	lastAll time.Time
}

// NewTracker returns a tracker with every pin in StateReset.
func NewTracker(sharedHoldTimer bool) *Tracker {
	return &Tracker{shared: sharedHoldTimer}
}

// State returns the current state of pin. It panics if pin >= MaxPins.
func (t *Tracker) State(pin uint8) PinState {
	checkPin(pin)
	return t.states[pin]
}

// SharedHoldTimer reports whether hold bindings share one timestamp.
func (t *Tracker) SharedHoldTimer() bool {
	return t.shared
}

func (t *Tracker) set(pin uint8, s PinState) {
	checkPin(pin)
	t.states[pin] = s
}

func (t *Tracker) markPressed(pin uint8, now time.Time) {
	checkPin(pin)
	if t.shared {
		t.lastAll = now
		return
	}
	t.pressed[pin] = now
}

func (t *Tracker) pressedAt(pin uint8) time.Time {
	checkPin(pin)
	if t.shared {
		return t.lastAll
	}
	return t.pressed[pin]
}

func checkPin(pin uint8) {
	if int(pin) >= MaxPins {
		panic(fmt.Sprintf("localio: pin %d out of range (max %d)", pin, MaxPins-1))
	}
}
