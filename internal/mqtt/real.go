package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/localio/internal/node"
)

const (
	// backlogSize is the number of messages kept while the broker is unreachable.
	backlogSize = 256

	// commandQueue is the depth of the channel returned by Commands.
	commandQueue = 32
)

// RealPublisher publishes to an actual MQTT broker and relays memory map
// commands received on the node's command topic.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	commands chan node.Command

	mu        sync.Mutex
	queue     *backlog
	connected bool
	everUp    bool
	dropping  bool
	session   uint64
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker holds a retained OFFLINE message as the client's last will.
func NewRealPublisher(broker, nodeName string) (*RealPublisher, error) {
	p := newPublisher(TopicsFor(nodeName))

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("localio-" + nodeName).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func newPublisher(topics Topics) *RealPublisher {
	return &RealPublisher{
		topics:   topics,
		commands: make(chan node.Command, commandQueue),
		queue:    newBacklog(backlogSize),
	}
}

// onConnect runs on the first connection and after every automatic reconnect.
func (p *RealPublisher) onConnect(c paho.Client) {
	token := c.Subscribe(p.topics.Command, 1, func(_ paho.Client, msg paho.Message) {
		p.handleCommand(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("mqtt: subscribe %s: timeout", p.topics.Command)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", p.topics.Command, err)
	}

	p.mu.Lock()
	reconnect := p.everUp
	p.everUp = true
	p.session++
	session := p.session
	st := p.queue.stats()
	p.mu.Unlock()

	if reconnect {
		log.Printf("mqtt: reconnected, replaying %d buffered messages (%d dropped so far)", st.Pending, st.Dropped)
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			c.Publish(p.topics.System, 1, true, payload)
		}
	}
	p.replay(c, session)
}

// replay publishes the backlog oldest first. Sends made meanwhile keep
// queueing behind it; the publisher only goes live once the backlog is empty.
func (p *RealPublisher) replay(c paho.Client, session uint64) {
	for {
		p.mu.Lock()
		if p.session != session {
			p.mu.Unlock()
			return
		}
		pending := p.queue.take()
		if len(pending) == 0 {
			p.connected = true
			p.dropping = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		for _, m := range pending {
			c.Publish(m.topic, m.qos, m.retained, m.payload)
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	p.mu.Lock()
	p.connected = false
	p.session++
	p.mu.Unlock()
}

// handleCommand decodes a command payload and queues it without blocking
// the paho callback goroutine.
func (p *RealPublisher) handleCommand(payload []byte) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		log.Printf("mqtt: ignoring command: %v", err)
		return
	}
	select {
	case p.commands <- cmd:
	default:
		log.Printf("mqtt: command queue full, dropping %s[%d]=%d", cmd.Region, cmd.Slot, cmd.Value)
	}
}

// enqueue stores a message for replay if the client is offline and reports
// whether it did so.
func (p *RealPublisher) enqueue(topic string, qos byte, retained bool, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return false
	}
	if p.queue.add(pendingMsg{topic: topic, payload: payload, qos: qos, retained: retained}) && !p.dropping {
		p.dropping = true
		log.Printf("mqtt: offline backlog full (%d messages), dropping oldest", backlogSize)
	}
	return true
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if p.enqueue(topic, qos, retained, payload) {
		return nil
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// Publish sends a memory map event to the MQTT broker.
func (p *RealPublisher) Publish(event node.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.send(p.topics.Events, 0, false, payload); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so lifecycle events survive a flaky link
	if err := p.send(p.topics.System, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// IsConnected reports whether the client currently holds a broker connection.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Backlog reports the offline queue depth and how many messages it has dropped.
func (p *RealPublisher) Backlog() BacklogStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.stats()
}

// Commands returns the channel of decoded command-topic messages.
func (p *RealPublisher) Commands() <-chan node.Command {
	return p.commands
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
