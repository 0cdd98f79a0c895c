// Package config loads the node description file: memory map size, HAL
// settings and the list of pin bindings.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sweeney/localio/internal/gpio"
	"github.com/sweeney/localio/internal/localio"
	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/node"
)

// DefaultSlots is the number of slots per region when the file omits it.
const DefaultSlots = 24

// File is the JSON node description.
type File struct {
	Node            string       `json:"node"`
	Slots           int          `json:"slots"`
	SharedHoldTimer bool         `json:"shared_hold_timer"`
	TwoButton       TwoButton    `json:"two_button"`
	AnalogDevice    string       `json:"analog_device"`
	Bindings        []BindingDef `json:"bindings"`
}

// TwoButton holds the analog two-button thresholds.
type TwoButton struct {
	Top    uint16 `json:"top"`
	Bottom uint16 `json:"bottom"`
}

// BindingDef is one binding as written in the file.
type BindingDef struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Pin      uint8   `json:"pin"`
	Slot     uint8   `json:"slot"`
	OutSlot  uint8   `json:"out_slot"`
	Value    byte    `json:"value"`
	Alt      byte    `json:"alt"`
	Deadband byte    `json:"deadband"`
	Filter   bool    `json:"filter"`
	HoldMs   int64   `json:"hold_ms"`
	Scaling  float32 `json:"scaling"`
	Bias     float32 `json:"bias"`
	Pull     string  `json:"pull"`
}

// Config is a validated node description.
type Config struct {
	Node     string
	Layout   memmap.Layout
	HAL      localio.Config
	Bindings []node.Binding
	Setup    gpio.Setup
}

// Load reads and validates a node file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a node description.
func Parse(r io.Reader) (*Config, error) {
	var file File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return file.Build()
}

// Build applies defaults and validates the file.
func (f File) Build() (*Config, error) {
	if f.Node == "" {
		return nil, fmt.Errorf("node name is required")
	}
	if f.Slots == 0 {
		f.Slots = DefaultSlots
	}
	layout := memmap.DefaultLayout(f.Slots)
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	top, bottom := f.TwoButton.Top, f.TwoButton.Bottom
	if top == 0 {
		top = localio.DefaultTwoButtonTop
	}
	if bottom == 0 {
		bottom = localio.DefaultTwoButtonBottom
	}
	if bottom >= top {
		return nil, fmt.Errorf("two_button: bottom %d must be below top %d", bottom, top)
	}

	cfg := &Config{
		Node:   f.Node,
		Layout: layout,
		HAL: localio.Config{
			TwoButtonTop:    f.TwoButton.Top,
			TwoButtonBottom: f.TwoButton.Bottom,
			SharedHoldTimer: f.SharedHoldTimer,
		},
		Setup: gpio.Setup{IIODevice: f.AnalogDevice},
	}

	claimed := make(map[uint8]string)
	for i, d := range f.Bindings {
		b, err := d.binding(i)
		if err != nil {
			return nil, err
		}
		cfg.Bindings = append(cfg.Bindings, b)

		if !node.Known(b.Kind) {
			continue // reported by node.Validate below
		}
		if err := claim(claimed, b, &cfg.Setup, d.Pull); err != nil {
			return nil, fmt.Errorf("binding %d (%s): %w", i, b.Name, err)
		}
	}

	if err := node.Validate(cfg.Bindings, layout); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (d BindingDef) binding(i int) (node.Binding, error) {
	if d.HoldMs < 0 {
		return node.Binding{}, fmt.Errorf("binding %d (%s): hold_ms must not be negative", i, d.Name)
	}
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d", d.Kind, i)
	}
	b := node.Binding{
		Name:     name,
		Kind:     node.Kind(d.Kind),
		Pin:      d.Pin,
		Slot:     d.Slot,
		OutSlot:  d.OutSlot,
		Value:    d.Value,
		Alt:      d.Alt,
		Deadband: d.Deadband,
		Filter:   d.Filter,
		Hold:     time.Duration(d.HoldMs) * time.Millisecond,
		Scaling:  d.Scaling,
		Bias:     d.Bias,
	}
	if b.Kind == node.KindAnalogIn && b.Scaling == 0 {
		b.Scaling = 1
	}
	return b, nil
}

// claim records the pin a binding needs in the backend setup. A pin may be
// claimed several times for the same direction but not for both.
func claim(claimed map[uint8]string, b node.Binding, setup *gpio.Setup, pull string) error {
	var dir string
	switch {
	case b.Kind == node.KindAnalogIn || b.Kind == node.KindAnalogIn2Buttons:
		dir = "analog"
	case node.IsDigitalInput(b.Kind):
		dir = "input"
	case node.IsOutput(b.Kind):
		dir = "output"
	default:
		return nil
	}

	if prev, ok := claimed[b.Pin]; ok {
		if prev != dir {
			return fmt.Errorf("pin %d used as both %s and %s", b.Pin, prev, dir)
		}
		return nil
	}
	claimed[b.Pin] = dir

	switch dir {
	case "analog":
		setup.Analog = append(setup.Analog, b.Pin)
	case "input":
		p, err := parsePull(pull)
		if err != nil {
			return err
		}
		setup.Inputs = append(setup.Inputs, gpio.InputConfig{Pin: b.Pin, Pull: p})
	case "output":
		setup.Outputs = append(setup.Outputs, b.Pin)
	}
	return nil
}

func parsePull(s string) (gpio.Pull, error) {
	switch gpio.Pull(s) {
	case "", gpio.PullNone:
		return gpio.PullNone, nil
	case gpio.PullUp, gpio.PullDown:
		return gpio.Pull(s), nil
	}
	return "", fmt.Errorf("unknown pull %q", s)
}
