package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/node"
)

func inputEvent() node.Event {
	return node.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      node.EventInput,
		Binding:   "door",
		Kind:      node.KindDigIn,
		Pin:       17,
		Region:    memmap.RegionIn,
		Slot:      5,
		Value:     10,
	}
}

func TestTopicsFor(t *testing.T) {
	topics := TopicsFor("garage")
	if topics.Events != "localio/garage/events" {
		t.Errorf("unexpected events topic: %s", topics.Events)
	}
	if topics.System != "localio/garage/system" {
		t.Errorf("unexpected system topic: %s", topics.System)
	}
	if topics.Command != "localio/garage/command" {
		t.Errorf("unexpected command topic: %s", topics.Command)
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(inputEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"io":{"timestamp":"2026-02-02T22:18:12Z","event":"INPUT","binding":"door","kind":"digin","pin":17,"region":"in","slot":5,"value":10}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadOutputOmitsPin(t *testing.T) {
	event := node.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      node.EventOutput,
		Region:    memmap.RegionOut,
		Slot:      2,
		Value:     1,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	io := parsed["io"]
	if _, exists := io["pin"]; exists {
		t.Error("OUTPUT event should not carry a pin")
	}
	if io["region"] != "out" {
		t.Errorf("unexpected region: %v", io["region"])
	}
	if io["value"] != float64(1) {
		t.Errorf("unexpected value: %v", io["value"])
	}
}

func TestFormatPayloadPinZero(t *testing.T) {
	event := inputEvent()
	event.Pin = 0

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(payload), `"pin":0`) {
		t.Errorf("pin 0 should still be reported: %s", payload)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := inputEvent()
	event.Timestamp = time.Date(2026, 2, 3, 0, 18, 12, 0, loc)

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.IO.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp should be converted to UTC, got %s", parsed.IO.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 15, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:15:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"region":"out","slot":3,"value":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := node.Command{Region: memmap.RegionOut, Slot: 3, Value: 1}
	if cmd != want {
		t.Errorf("got %+v, want %+v", cmd, want)
	}
}

func TestParseCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"not json", `ON`, "decode command"},
		{"unknown region", `{"region":"typ","slot":0,"value":1}`, "unknown region"},
		{"missing slot", `{"region":"in","value":1}`, "slot"},
		{"negative slot", `{"region":"in","slot":-1,"value":1}`, "slot"},
		{"slot too large", `{"region":"in","slot":256,"value":1}`, "slot"},
		{"missing value", `{"region":"in","slot":1}`, "value"},
		{"value too large", `{"region":"auxin","slot":1,"value":300}`, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand([]byte(tt.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestHandleCommandQueues(t *testing.T) {
	p := newPublisher(TopicsFor("test"))
	p.handleCommand([]byte(`{"region":"in","slot":2,"value":7}`))
	p.handleCommand([]byte(`garbage`))

	select {
	case cmd := <-p.Commands():
		if cmd.Region != memmap.RegionIn || cmd.Slot != 2 || cmd.Value != 7 {
			t.Errorf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected a queued command")
	}

	select {
	case cmd := <-p.Commands():
		t.Errorf("invalid payload should not be queued, got %+v", cmd)
	default:
	}
}

func TestHandleCommandDropsWhenFull(t *testing.T) {
	p := newPublisher(TopicsFor("test"))
	for i := 0; i < commandQueue+5; i++ {
		p.handleCommand([]byte(`{"region":"out","slot":1,"value":1}`))
	}
	if len(p.commands) != commandQueue {
		t.Errorf("expected queue capped at %d, got %d", commandQueue, len(p.commands))
	}
}

func TestEnqueueWhileDisconnected(t *testing.T) {
	p := newPublisher(TopicsFor("test"))

	if !p.enqueue("localio/test/events", 0, false, []byte("a")) {
		t.Fatal("expected message to be buffered while disconnected")
	}
	if got := p.Backlog().Pending; got != 1 {
		t.Errorf("expected 1 buffered message, got %d", got)
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	if p.enqueue("localio/test/events", 0, false, []byte("b")) {
		t.Error("connected publisher should not buffer")
	}
	if got := p.Backlog().Pending; got != 1 {
		t.Errorf("expected buffer unchanged, got %d", got)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(inputEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(f.Events))
	}
	if f.Events[0].Binding != "door" {
		t.Errorf("unexpected binding: %s", f.Events[0].Binding)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("connection lost")

	if err := f.Publish(inputEvent()); err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 0 {
		t.Errorf("expected 0 events on error, got %d", len(f.Events))
	}

	f.PublishSystemError = errors.New("connection lost")
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected system error")
	}
}

func TestFakePublisherInject(t *testing.T) {
	f := NewFakePublisher()
	f.Inject(node.Command{Region: memmap.RegionOut, Slot: 4, Value: 1})

	select {
	case cmd := <-f.Commands():
		if cmd.Slot != 4 {
			t.Errorf("unexpected command: %+v", cmd)
		}
	default:
		t.Fatal("expected injected command")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(inputEvent())
	f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("x")

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 {
		t.Error("expected events cleared")
	}
	if len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected system events cleared")
	}
	if f.Closed || f.Connected || f.PublishError != nil {
		t.Error("expected flags cleared")
	}
}

func TestFakePublisherRecordsRetainedFlag(t *testing.T) {
	f := NewFakePublisher()

	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	if len(f.SystemEvents) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(f.SystemEvents))
	}
	if !f.SystemEvents[0].Retained {
		t.Error("first event should have Retained=true")
	}
	if f.SystemEvents[1].Retained {
		t.Error("second event should have Retained=false")
	}
}

func TestInterfacesSatisfied(t *testing.T) {
	var _ Publisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
	var _ CommandSource = (*RealPublisher)(nil)
	var _ Publisher = (*FakePublisher)(nil)
	var _ ConnectionStatus = (*FakePublisher)(nil)
	var _ CommandSource = (*FakePublisher)(nil)
}
