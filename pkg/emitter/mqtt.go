package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SafeStack/internal/models"
	"SafeStack/pkg/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTConfig broker 配置；Broker 为空表示不启用
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	// UrgentLevel 及以上的告警以 QoS 1 发布
	UrgentLevel int
}

// MQTTEmitter publishes created alerts to {Topic}/{policy level}.
type MQTTEmitter struct {
	cfg    MQTTConfig
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

func NewMQTTEmitter(cfg MQTTConfig) *MQTTEmitter {
	if cfg.Topic == "" {
		cfg.Topic = "safestack/alerts"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "safestack"
	}
	if cfg.UrgentLevel <= 0 {
		cfg.UrgentLevel = 3
	}
	return &MQTTEmitter{cfg: cfg, published: make(map[string]uint64)}
}

// NewMQTTEmitterWithClient 使用已建立的客户端，测试时注入
func NewMQTTEmitterWithClient(cfg MQTTConfig, client mqtt.Client) *MQTTEmitter {
	e := NewMQTTEmitter(cfg)
	e.Client = client
	e.connected = client.IsConnected()
	return e
}

// Connect establishes connection to the broker with auto-reconnect enabled.
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
		logger.Info("mqtt connection established",
			zap.String("broker", e.cfg.Broker),
			zap.String("client_id", e.cfg.ClientID))
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		logger.Warn("mqtt connection lost, will auto-reconnect",
			zap.Error(err),
			zap.String("broker", e.cfg.Broker))
	}

	e.Client = mqtt.NewClient(opts)
	logger.Info("connecting to mqtt broker", zap.String("broker", e.cfg.Broker))

	timeout := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	token := e.Client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	e.setConnected(true)
	return nil
}

// PublishAlert 发布一条告警，payload 为 AlertView 的 JSON
func (e *MQTTEmitter) PublishAlert(alert *models.AlertView) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	topic := e.topicFor(alert)
	qos := e.qosFor(alert)
	token := e.Client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()

	logger.Debug("alert published",
		zap.String("topic", topic),
		zap.Uint8("qos", qos),
		zap.Uint("alert_id", alert.ID))
	return nil
}

func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		logger.Info("mqtt disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{Connected: e.connected, Published: published, Errors: e.errors}
}

func (e *MQTTEmitter) topicFor(alert *models.AlertView) string {
	return fmt.Sprintf("%s/%d", e.cfg.Topic, alert.PolicyLevel)
}

func (e *MQTTEmitter) qosFor(alert *models.AlertView) byte {
	if alert.PolicyLevel >= e.cfg.UrgentLevel {
		return 1
	}
	return 0
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
