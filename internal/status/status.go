// Package status provides a thread-safe status tracker for the localio daemon.
// It is read by HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/localio/internal/localio"
	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/node"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Node        string
	Backend     string
	Slots       int
	Bindings    int
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// PinStatus is the debounce state of one digital input pin.
type PinStatus struct {
	Pin   uint8
	State localio.PinState
}

// Snapshot is a point-in-time view of daemon state.
// The region slices are replaced, never mutated, so a Snapshot is safe to
// keep after the lock is released.
type Snapshot struct {
	In            []byte
	Out           []byte
	AuxIn         []byte
	Pins          []PinStatus
	Polled        bool
	Counts        node.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTBacklog   int
	MQTTDropped   uint64
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the memory map regions, pin states and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(mem *memmap.Map, pins map[uint8]localio.PinState, counts node.EventCounts) {
	in := mem.Region(memmap.RegionIn)
	out := mem.Region(memmap.RegionOut)
	aux := mem.Region(memmap.RegionAuxIn)

	ps := make([]PinStatus, 0, len(pins))
	for pin, st := range pins {
		ps = append(ps, PinStatus{Pin: pin, State: st})
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Pin < ps[j].Pin })

	t.mu.Lock()
	t.snap.In = in
	t.snap.Out = out
	t.snap.AuxIn = aux
	t.snap.Pins = ps
	t.snap.Polled = true
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBacklog records how many messages wait for the broker and how many
// were dropped while it was unreachable.
func (t *Tracker) SetMQTTBacklog(pending int, dropped uint64) {
	t.mu.Lock()
	t.snap.MQTTBacklog = pending
	t.snap.MQTTDropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
