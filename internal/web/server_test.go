package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/localio/internal/localio"
	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/node"
	"github.com/sweeney/localio/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Node:        "garage",
		Backend:     "fake",
		Slots:       4,
		Bindings:    3,
		PollMs:      50,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func newMem(t *testing.T) *memmap.Map {
	t.Helper()
	m, err := memmap.New(memmap.DefaultLayout(4))
	if err != nil {
		t.Fatalf("memmap.New: %v", err)
	}
	return m
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	m := newMem(t)
	m.SetIn(1, 10)
	m.SetOut(1, 1)
	tr.Update(m, map[uint8]localio.PinState{17: localio.StateSet}, node.EventCounts{Input: 5, Output: 2})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Node != "garage" {
		t.Errorf("Node: got %q, want garage", sj.Status.Node)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if sj.Status.Memory.In[1] != 10 || sj.Status.Memory.Out[1] != 1 {
		t.Errorf("unexpected memory: %+v", sj.Status.Memory)
	}
	if len(sj.Status.Pins) != 1 || sj.Status.Pins[0].State != "SET" {
		t.Errorf("unexpected pins: %+v", sj.Status.Pins)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Input != 5 || sj.Status.Counts.Output != 2 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.Config.PollMs != 50 {
		t.Errorf("Config.PollMs: got %d, want 50", sj.Status.Config.PollMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	m := newMem(t)
	m.SetOut(2, 1)
	tr.Update(m, map[uint8]localio.PinState{17: localio.StateActive}, node.EventCounts{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{
		"LocalIO garage",
		`<td id="out-2" class="set">1</td>`,
		"<th>Pin 17</th><td>ACTIVE</td>",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHTMLBeforeFirstPoll(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Waiting for first poll") {
		t.Error("expected placeholder before first poll")
	}
}

func TestHTMLLiveScriptOnlyWithWSBroker(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.Contains(string(body), "mqtt.connect") {
		t.Error("live script should be omitted without a websocket broker")
	}

	tr := status.NewTracker(time.Now(), status.Config{Node: "garage", WSBroker: "ws://192.168.1.200:9001"})
	srv := New(":0", tr)
	ts2 := httptest.NewServer(srv.httpServer.Handler)
	defer ts2.Close()

	resp2, err := http.Get(ts2.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()
	if !strings.Contains(string(body2), "localio/garage/events") {
		t.Error("live script should subscribe to the node's events topic")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	m := newMem(t)
	m.SetAuxIn(3, memmap.Triggered)
	tr.Update(m, nil, node.EventCounts{Link: 1})
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj2.Status.Memory.AuxIn[3] != int(memmap.Triggered) {
		t.Errorf("AuxIn[3]: got %d, want %d", sj2.Status.Memory.AuxIn[3], memmap.Triggered)
	}
	if sj2.Status.Counts.Link != 1 {
		t.Errorf("Counts.Link: got %d, want 1", sj2.Status.Counts.Link)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestSlotEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	m := newMem(t)
	m.SetOut(3, 42)
	tr.Update(m, nil, node.EventCounts{})

	resp, err := http.Get(ts.URL + "/slot/out/3")
	if err != nil {
		t.Fatalf("GET /slot/out/3: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var sj SlotJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj != (SlotJSON{Region: "out", Slot: 3, Value: 42}) {
		t.Errorf("unexpected slot: %+v", sj)
	}
}

func TestSlotEndpointErrors(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(newMem(t), nil, node.EventCounts{})

	tests := []struct {
		path string
		want int
	}{
		{"/slot/typ/1", 400},
		{"/slot/in/x", 400},
		{"/slot/in/-1", 400},
		{"/slot/in/4", 404},
		{"/slot/in", 404},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s: got %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestSlotEndpointBeforeFirstPoll(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/slot/in/0")
	if err != nil {
		t.Fatalf("GET /slot/in/0: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}
