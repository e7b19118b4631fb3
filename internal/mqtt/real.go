package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/powersense/backend/internal/storage"
)

// Capacity of the offline replay queue.
const replayLimit = 512

// RealPublisher publishes to an actual MQTT broker. Messages produced while
// the broker is unreachable are queued and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu    sync.Mutex
	queue *replayQueue
}

// NewRealPublisher creates a publisher connected to the given broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{queue: newReplayQueue(replayLimit)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("powersense-hub").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			p.replay()
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	p.client = client
	return p, nil
}

// PublishReading sends one sensor reading to the broker.
func (p *RealPublisher) PublishReading(r storage.Reading) error {
	payload, err := FormatReadingPayload(r)
	if err != nil {
		return fmt.Errorf("format telemetry payload: %w", err)
	}
	// QoS 0 (at-most-once): readings arrive continuously, losses are cheap
	return p.publish(queuedMsg{topic: TopicTelemetry, payload: payload, qos: 0})
}

// PublishRelay sends one relay transition to the broker.
func (p *RealPublisher) PublishRelay(ev storage.ActivityEvent) error {
	payload, err := FormatRelayPayload(ev)
	if err != nil {
		return fmt.Errorf("format relay payload: %w", err)
	}
	// QoS 1, retained: subscribers should see the last known relay state
	return p.publish(queuedMsg{topic: TopicRelay(ev.Relay), payload: payload, qos: 1, retained: true})
}

func (p *RealPublisher) publish(msg queuedMsg) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.queue.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// replay flushes the offline queue after a (re)connect.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	msgs := p.queue.drain()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	slog.Info("replaying buffered mqtt messages", "count", len(msgs))
	for _, msg := range msgs {
		token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if !token.WaitTimeout(5 * time.Second) {
			slog.Warn("replay publish timeout", "topic", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			slog.Warn("replay publish failed", "topic", msg.topic, "err", err)
		}
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
