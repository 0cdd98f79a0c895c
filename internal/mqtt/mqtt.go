// Package mqtt provides MQTT publishing and command intake with abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/node"
)

// TopicPrefix is the root of every topic this daemon uses.
const TopicPrefix = "localio"

// Topics holds the per-node topic names.
type Topics struct {
	Events  string
	System  string
	Command string
}

// TopicsFor returns the topics of the named node.
func TopicsFor(nodeName string) Topics {
	base := TopicPrefix + "/" + nodeName
	return Topics{
		Events:  base + "/events",
		System:  base + "/system",
		Command: base + "/command",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a memory map event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event node.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active and what is
// waiting to be sent.
type ConnectionStatus interface {
	IsConnected() bool
	Backlog() BacklogStats
}

// CommandSource delivers memory map commands received from the broker.
type CommandSource interface {
	Commands() <-chan node.Command
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	IO IOPayload `json:"io"`
}

// IOPayload contains the event details.
type IOPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Binding   string `json:"binding,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Pin       *uint8 `json:"pin,omitempty"`
	Region    string `json:"region"`
	Slot      uint8  `json:"slot"`
	Value     uint8  `json:"value"`
}

// FormatPayload creates the JSON payload for a memory map event.
func FormatPayload(event node.Event) ([]byte, error) {
	payload := Payload{
		IO: IOPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Binding:   event.Binding,
			Kind:      string(event.Kind),
			Region:    string(event.Region),
			Slot:      event.Slot,
			Value:     event.Value,
		},
	}
	if event.Type == node.EventInput {
		pin := event.Pin
		payload.IO.Pin = &pin
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// commandPayload is the JSON accepted on the command topic.
type commandPayload struct {
	Region string `json:"region"`
	Slot   *int   `json:"slot"`
	Value  *int   `json:"value"`
}

// ParseCommand decodes a command topic payload such as
// {"region":"out","slot":3,"value":1}.
func ParseCommand(data []byte) (node.Command, error) {
	var p commandPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return node.Command{}, fmt.Errorf("decode command: %w", err)
	}
	region, err := memmap.ParseRegion(p.Region)
	if err != nil {
		return node.Command{}, fmt.Errorf("command: %w", err)
	}
	if p.Slot == nil || *p.Slot < 0 || *p.Slot > 255 {
		return node.Command{}, fmt.Errorf("command: slot missing or out of range")
	}
	if p.Value == nil || *p.Value < 0 || *p.Value > 255 {
		return node.Command{}, fmt.Errorf("command: value missing or out of range")
	}
	return node.Command{Region: region, Slot: uint8(*p.Slot), Value: byte(*p.Value)}, nil
}
