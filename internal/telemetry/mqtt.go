package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig contains broker connection settings
type MQTTConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	QoS      byte
}

// MQTTEmitter publishes payloads to an MQTT broker
type MQTTEmitter struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{cfg: cfg}
}

// Connect establishes connection to MQTT broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("sensor-capture: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("sensor-capture: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("sensor-capture: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish sends payload to topic with the configured QoS
func (e *MQTTEmitter) Publish(topic string, payload []byte) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
	return nil
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250) // 250ms grace period
		slog.Info("sensor-capture: mqtt disconnected")
	}
	e.setConnected(false)
}

// EmitterStats contains emitter statistics
type EmitterStats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() EmitterStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return EmitterStats{Connected: e.connected, Published: e.published, Errors: e.errors}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
