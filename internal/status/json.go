package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Node          string       `json:"node"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Memory        MemoryJSON   `json:"memory"`
	Pins          []PinJSON    `json:"pins"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MemoryJSON holds the three memory map regions as integer arrays.
type MemoryJSON struct {
	In    []int `json:"in"`
	Out   []int `json:"out"`
	AuxIn []int `json:"auxin"`
}

// PinJSON is the debounce state of a digital input pin.
type PinJSON struct {
	Pin   uint8  `json:"pin"`
	State string `json:"state"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Backlog   int    `json:"backlog"`
	Dropped   uint64 `json:"dropped"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Input  int `json:"input"`
	Link   int `json:"link"`
	Output int `json:"output"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend     string `json:"backend"`
	Slots       int    `json:"slots"`
	Bindings    int    `json:"bindings"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

// ints widens bytes so encoding/json renders an array rather than base64.
func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	pins := make([]PinJSON, 0, len(snap.Pins))
	for _, p := range snap.Pins {
		pins = append(pins, PinJSON{Pin: p.Pin, State: p.State.String()})
	}

	return StatusInner{
		Node:          snap.Config.Node,
		Ready:         snap.Polled,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Memory: MemoryJSON{
			In:    ints(snap.In),
			Out:   ints(snap.Out),
			AuxIn: ints(snap.AuxIn),
		},
		Pins: pins,
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Backlog:   snap.MQTTBacklog,
			Dropped:   snap.MQTTDropped,
		},
		Counts: CountsJSON{
			Input:  snap.Counts.Input,
			Link:   snap.Counts.Link,
			Output: snap.Counts.Output,
		},
		Config: ConfigJSON{
			Backend:     snap.Config.Backend,
			Slots:       snap.Config.Slots,
			Bindings:    snap.Config.Bindings,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			WSBroker:    snap.Config.WSBroker,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
