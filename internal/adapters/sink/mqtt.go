package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// MQTTConfig describes the broker a flush is published to as one JSON message.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	QoS            byte          `yaml:"qos"`
	Retained       bool          `yaml:"retained"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *MQTTConfig) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = "sensorflow/means"
	}
	if c.ClientID == "" {
		c.ClientID = "sensorflow-" + uuid.NewString()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *MQTTConfig) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// MQTTSink publishes every flush to a single topic. Automatic reconnects are disabled
// so the output channel stays in charge of the retry budget.
type MQTTSink struct {
	cfg       MQTTConfig
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

func NewMQTTSink(cfg MQTTConfig) *MQTTSink {
	return &MQTTSink{cfg: cfg, newClient: mqtt.NewClient}
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil && m.client.IsConnectionOpen()
}

func (m *MQTTSink) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		if m.client.IsConnectionOpen() {
			return nil
		}
		// the broker dropped the link; release the stale client before dialling again
		m.client.Disconnect(0)
		m.client = nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(m.cfg.ConnectTimeout)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	client := m.newClient(opts)
	if err := wait(ctx, client.Connect(), m.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("connect mqtt %s: %w", m.cfg.Broker, err)
	}
	m.client = client
	return nil
}

func (m *MQTTSink) Send(ctx context.Context, f domain.Flush) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return ports.ErrNotConnected
	}

	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal flush: %w", err)
	}

	if err := wait(ctx, m.client.Publish(m.cfg.Topic, m.cfg.QoS, m.cfg.Retained, payload), m.cfg.ConnectTimeout); err != nil {
		m.client.Disconnect(0)
		m.client = nil
		return fmt.Errorf("publish %s: %w", m.cfg.Topic, err)
	}
	return nil
}

func (m *MQTTSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	return nil
}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return errors.New("timed out waiting for broker")
	}
}

var _ ports.Sink = (*MQTTSink)(nil)
