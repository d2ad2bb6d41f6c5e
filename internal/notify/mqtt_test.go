package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/orion-care-sensor/modules/stream-record/internal/events"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements the subset of mqtt.Client the publisher uses
type fakeClient struct {
	mqtt.Client

	mu         sync.Mutex
	connectErr error
	publishErr error
	connected  bool
	messages   []message
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = c.connectErr == nil
	return newToken(c.connectErr)
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr == nil {
		c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	}
	return newToken(c.publishErr)
}

func (c *fakeClient) sent() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...)
}

var testConfig = Config{Broker: "tcp://test:1883", ClientID: "rec-1", TopicPrefix: "care/recorder", QoS: 1}

func TestPublisher_Publish(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisherWithClient(client, testConfig)

	if err := p.Publish(events.Event{Type: events.TypeStarted}); err == nil {
		t.Fatal("expected error before Connect")
	}

	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ev := events.Event{Type: events.TypeFinished, RunID: "abc", Path: "/out/a.mp4", Cause: "timer"}
	if err := p.Publish(ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	msgs := client.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].topic != "care/recorder/finished" || msgs[0].qos != 1 {
		t.Errorf("unexpected topic/qos: %s/%d", msgs[0].topic, msgs[0].qos)
	}

	var decoded events.Event
	if err := json.Unmarshal(msgs[0].payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.RunID != "abc" || decoded.Path != "/out/a.mp4" {
		t.Errorf("unexpected payload: %+v", decoded)
	}

	stats := p.Stats()
	if !stats.Connected || stats.Published["care/recorder/finished"] != 1 || stats.Errors != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPublisher_Errors(t *testing.T) {
	t.Run("connect failure", func(t *testing.T) {
		p := NewPublisherWithClient(&fakeClient{connectErr: errors.New("refused")}, testConfig)
		if err := p.Connect(context.Background()); err == nil {
			t.Error("expected connect error")
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		client := &fakeClient{publishErr: errors.New("broken pipe")}
		p := NewPublisherWithClient(client, testConfig)
		if err := p.Connect(context.Background()); err != nil {
			t.Fatalf("Connect failed: %v", err)
		}
		if err := p.Publish(events.Event{Type: events.TypeFailed}); err == nil {
			t.Error("expected publish error")
		}
		if p.Stats().Errors != 1 {
			t.Errorf("expected 1 error, got %d", p.Stats().Errors)
		}
	})
}

func TestPublisher_Consume(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisherWithClient(client, testConfig)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	ch := make(chan events.Event, 3)
	ch <- events.Event{Type: events.TypeTransition, From: "building", To: "playing"}
	ch <- events.Event{Type: events.TypeStarted}
	ch <- events.Event{Type: events.TypeFinished}
	close(ch)

	p.Consume(context.Background(), ch)

	msgs := client.sent()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].topic != "care/recorder/transition" {
		t.Errorf("unexpected first topic %s", msgs[0].topic)
	}

	p.Disconnect()
	if client.IsConnected() || p.Stats().Connected {
		t.Error("expected disconnected publisher")
	}
}
