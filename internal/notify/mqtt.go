// Package notify publishes recording lifecycle events to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// Config contains broker settings
type Config struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	TopicPrefix string
	QoS         byte
}

// Publisher sends lifecycle events to <prefix>/<event type>
type Publisher struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
}

// NewPublisher creates a publisher backed by a paho client with automatic
// reconnection. Call Connect before publishing.
func NewPublisher(cfg Config) *Publisher {
	p := &Publisher{
		cfg:       cfg,
		published: make(map[string]uint64),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		slog.Info("stream-record: mqtt connection established",
			"broker", cfg.Broker,
			"client_id", cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("stream-record: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", cfg.Broker,
		)
	}

	p.client = mqtt.NewClient(opts)
	return p
}

// NewPublisherWithClient creates a publisher on an existing client
func NewPublisherWithClient(client mqtt.Client, cfg Config) *Publisher {
	return &Publisher{
		cfg:       cfg,
		client:    client,
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection
func (p *Publisher) Connect(ctx context.Context) error {
	slog.Info("stream-record: connecting to mqtt broker", "broker", p.cfg.Broker)

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

// Topic returns the topic events of type t are published on
func (p *Publisher) Topic(t events.Type) string {
	return fmt.Sprintf("%s/%s", p.cfg.TopicPrefix, t)
}

// Publish sends ev as JSON
func (p *Publisher) Publish(ev events.Event) error {
	if !p.isConnected() {
		p.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := p.Topic(ev.Type)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	slog.Debug("stream-record: event published",
		"topic", topic,
		"qos", p.cfg.QoS,
		"size", len(payload),
	)
	return nil
}

// Consume publishes events from ch until it is closed or ctx is done.
// Publish failures are logged and do not stop consumption.
func (p *Publisher) Consume(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				slog.Warn("stream-record: event not published",
					"type", ev.Type,
					"run_id", ev.RunID,
					"error", err,
				)
			}
		}
	}
}

// Disconnect closes the broker connection
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		slog.Info("stream-record: mqtt disconnected")
	}
	p.setConnected(false)
}

// Stats returns publisher statistics
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
