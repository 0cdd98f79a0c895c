// Command localio-node polls GPIO bindings into a node memory map and
// publishes memory map changes to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/localio/internal/config"
	"github.com/sweeney/localio/internal/gpio"
	"github.com/sweeney/localio/internal/localio"
	"github.com/sweeney/localio/internal/memmap"
	"github.com/sweeney/localio/internal/mqtt"
	"github.com/sweeney/localio/internal/node"
	"github.com/sweeney/localio/internal/status"
	"github.com/sweeney/localio/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/localio/node.json", "Node binding configuration file")
	backend := flag.String("backend", "gpiocdev", "Pin backend: gpiocdev, periph, rpio or fake")
	chip := flag.String("chip", "gpiochip0", "GPIO character device (gpiocdev backend)")
	poll := flag.Duration("poll", 50*time.Millisecond, "Binding poll interval")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	printState := flag.Bool("print-state", false, "Print input pin levels and exit")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}

	ws := resolveWSBroker(*wsBroker, *broker)
	opts := options{
		backend:    *backend,
		chip:       *chip,
		poll:       *poll,
		broker:     *broker,
		heartbeat:  *heartbeat,
		printState: *printState,
		httpAddr:   *httpAddr,
		wsBroker:   ws,
	}
	if err := run(cfg, opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

type options struct {
	backend    string
	chip       string
	poll       time.Duration
	broker     string
	heartbeat  time.Duration
	printState bool
	httpAddr   string
	wsBroker   string
}

// openPins opens the named pin backend with the configured pin directions.
func openPins(backend, chip string, setup gpio.Setup) (gpio.Pins, error) {
	switch backend {
	case "gpiocdev":
		p, err := gpio.NewRealPins(chip, setup)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "periph":
		p, err := gpio.NewPeriphPins(setup)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "rpio":
		p, err := gpio.NewRpioPins(setup)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "fake":
		return gpio.NewFakePins(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", backend)
}

func run(cfg *config.Config, opts options) error {
	pins, err := openPins(opts.backend, opts.chip, cfg.Setup)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	// Print state mode
	if opts.printState {
		printInputs(os.Stdout, pins, cfg.Setup.Inputs)
		return pins.Err()
	}

	mem, err := memmap.New(cfg.Layout)
	if err != nil {
		return fmt.Errorf("init memory map: %w", err)
	}
	clock := time.Now
	start := clock()
	halCfg := cfg.HAL
	halCfg.Now = clock
	n, err := node.New(localio.New(pins, halCfg), mem, cfg.Bindings, start)
	if err != nil {
		return fmt.Errorf("init node: %w", err)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(opts.broker, cfg.Node)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, status.Config{
		Node:        cfg.Node,
		Backend:     opts.backend,
		Slots:       cfg.Layout.Slots,
		Bindings:    len(cfg.Bindings),
		PollMs:      opts.poll.Milliseconds(),
		HeartbeatMs: opts.heartbeat.Milliseconds(),
		Broker:      opts.broker,
		HTTPPort:    opts.httpAddr,
		WSBroker:    opts.wsBroker,
	})
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: node=%s backend=%s bindings=%d poll=%v broker=%s heartbeat=%v",
		cfg.Node, opts.backend, len(cfg.Bindings), opts.poll, opts.broker, opts.heartbeat)

	ticker := time.NewTicker(opts.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		node:      n,
		pins:      pins,
		publisher: publisher,
		mqtt:      publisher,
		commands:  publisher.Commands(),
		tracker:   tracker,
	}, opts.heartbeat, clock, ticker.C, sigCh)
}

// loopDeps are the collaborators runLoop drives. mqtt, commands and tracker
// may be nil.
type loopDeps struct {
	node      *node.Node
	pins      gpio.Pins
	publisher mqtt.Publisher
	mqtt      mqtt.ConnectionStatus
	commands  <-chan node.Command
	tracker   *status.Tracker
}

func runLoop(d loopDeps, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				d.refreshTracker()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			d.applyCommands()

			events := d.node.Poll(t)
			if err := d.pins.Err(); err != nil {
				log.Printf("gpio error: %v", err)
			}

			for _, event := range events {
				log.Printf("event: %s %s %s[%d]=%d", event.Type, event.Binding, event.Region, event.Slot, event.Value)
				if err := d.publisher.Publish(event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			// Check for heartbeat
			if hbData := d.node.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v input=%d link=%d output=%d",
					hbData.Uptime, hbData.Counts.Input, hbData.Counts.Link, hbData.Counts.Output)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					d.refreshTracker()
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			if d.tracker != nil {
				d.refreshTracker()
			}
		}
	}
}

// applyCommands drains queued commands without blocking so they take effect
// in the poll that follows.
func (d loopDeps) applyCommands() {
	if d.commands == nil {
		return
	}
	for {
		select {
		case cmd := <-d.commands:
			if err := d.node.Apply(cmd); err != nil {
				log.Printf("command rejected: %v", err)
				continue
			}
			log.Printf("command: %s[%d]=%d", cmd.Region, cmd.Slot, cmd.Value)
		default:
			return
		}
	}
}

func (d loopDeps) refreshTracker() {
	d.tracker.Update(d.node.Memory(), d.node.PinStates(), d.node.EventCountsSnapshot())
	if d.mqtt != nil {
		d.tracker.SetMQTTConnected(d.mqtt.IsConnected())
		b := d.mqtt.Backlog()
		d.tracker.SetMQTTBacklog(b.Pending, b.Dropped)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

func printInputs(w io.Writer, pins gpio.DigitalReader, inputs []gpio.InputConfig) {
	for _, in := range inputs {
		fmt.Fprintf(w, "pin %d: %s\n", in.Pin, levelString(pins.DigitalRead(in.Pin)))
	}
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
