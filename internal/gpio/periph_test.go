package gpio

import (
	"errors"
	"fmt"
	"testing"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// trackedPin records Halt and can refuse to become an output.
type trackedPin struct {
	*gpiotest.Pin
	refuseOut bool
	halted    bool
}

func (p *trackedPin) Out(l pgpio.Level) error {
	if p.refuseOut {
		return errors.New("line busy")
	}
	return p.Pin.Out(l)
}

func (p *trackedPin) Halt() error {
	p.halted = true
	return nil
}

func testPins(nums ...uint8) (map[uint8]*trackedPin, func(uint8) (pgpio.PinIO, error)) {
	pins := make(map[uint8]*trackedPin)
	for _, n := range nums {
		pins[n] = &trackedPin{Pin: &gpiotest.Pin{N: fmt.Sprintf("GPIO%d", n), Num: int(n)}}
	}
	return pins, func(n uint8) (pgpio.PinIO, error) {
		p, ok := pins[n]
		if !ok {
			return nil, fmt.Errorf("pin GPIO%d not found", n)
		}
		return p, nil
	}
}

func TestPeriphPinsReadWrite(t *testing.T) {
	pins, find := testPins(4, 5)
	p, err := newPeriphPins(Setup{Inputs: []InputConfig{{Pin: 4, Pull: PullUp}}, Outputs: []uint8{5}}, find)
	if err != nil {
		t.Fatalf("newPeriphPins: %v", err)
	}

	pins[4].L = pgpio.High
	if !p.DigitalRead(4) {
		t.Error("expected pin 4 high")
	}
	p.DigitalWrite(5, true)
	if pins[5].L != pgpio.High {
		t.Error("expected pin 5 driven high")
	}
	p.DigitalWrite(4, true)
	if err := p.Err(); err == nil {
		t.Error("writing an input should latch an error")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if pins[5].L != pgpio.Low {
		t.Error("Close should drive outputs low")
	}
	if !pins[4].halted || !pins[5].halted {
		t.Error("Close should halt every pin")
	}
}

func TestPeriphPinsSetupFailureHaltsConfigured(t *testing.T) {
	pins, find := testPins(4, 5, 6)
	pins[6].refuseOut = true

	_, err := newPeriphPins(Setup{Inputs: []InputConfig{{Pin: 4}}, Outputs: []uint8{5, 6}}, find)
	if err == nil {
		t.Fatal("expected setup error")
	}
	if !pins[4].halted || !pins[5].halted {
		t.Errorf("configured pins should be halted: 4=%v 5=%v", pins[4].halted, pins[5].halted)
	}
}

func TestPeriphPinsMissingPin(t *testing.T) {
	pins, find := testPins(4)
	if _, err := newPeriphPins(Setup{Inputs: []InputConfig{{Pin: 4}, {Pin: 9}}}, find); err == nil {
		t.Fatal("expected error for missing pin")
	}
	if !pins[4].halted {
		t.Error("pin 4 should be halted after failed setup")
	}
}
