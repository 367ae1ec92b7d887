// Package notify listens for detector change notifications on MQTT and turns them into
// on-demand poll cycles for the backends that watch the notified topic.
package notify

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout       = 30 * time.Second
	connectRetryInterval = 10 * time.Second
	initialConnectWait   = 10 * time.Second
	disconnectQuiesce    = 250
)

// Config holds the broker connection settings.
type Config struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	QoS      byte   `toml:"qos"`

	// CAFile, CertFile and KeyFile enable mutual TLS (AWS IoT style endpoints).
	CAFile   string `toml:"ca_file"`
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Refresher is notified when one of its topics receives a message.
type Refresher interface {
	RequestRefresh()
}

// Notification is the detector payload. Only the identifying fields are read.
type Notification struct {
	AlertID    string `json:"Alert_ID"`
	CameraID   string `json:"camera_id"`
	ObjectType string `json:"object_type"`
}

// Watcher subscribes to detector topics and requests refreshes from the backends
// routed to each topic.
type Watcher struct {
	client mqtt.Client
	qos    byte
	logger *zap.SugaredLogger

	mu     sync.RWMutex
	routes map[string][]Refresher
}

// NewWatcher builds a watcher and its paho client. Routes may be set before the first
// connection succeeds; they are subscribed from the OnConnect handler.
func NewWatcher(cfg Config, logger *zap.SugaredLogger) (*Watcher, error) {
	w := &Watcher{
		qos:    cfg.QoS,
		logger: logger,
		routes: make(map[string][]Refresher),
	}

	opts, err := w.clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	w.client = mqtt.NewClient(opts)
	return w, nil
}

func (w *Watcher) clientOptions(cfg Config) (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	if cfg.CertFile != "" || cfg.CAFile != "" {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// AutoReconnect only covers connections that were established once. ConnectRetry keeps
	// the first attempt going when the broker is down at startup.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetryInterval)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)

	// Clean sessions drop subscriptions on reconnect.
	opts.SetOnConnectHandler(func(mqtt.Client) {
		w.logger.Infow("MQTT connected", "broker", cfg.Broker)
		if err := w.resubscribe(); err != nil {
			w.logger.Errorw("Failed to restore MQTT subscriptions", "error", err.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		w.logger.Warnw("MQTT connection lost", "error", err.Error())
	})

	return opts, nil
}

// newWatcherWithClient is used by tests to inject a client.
func newWatcherWithClient(client mqtt.Client, qos byte, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{
		client: client,
		qos:    qos,
		logger: logger,
		routes: make(map[string][]Refresher),
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect starts connecting to the broker and waits briefly for the first attempt. On a
// timeout the client keeps retrying in the background.
func (w *Watcher) Connect() error {
	token := w.client.Connect()
	if !token.WaitTimeout(initialConnectWait) {
		return fmt.Errorf("timed out connecting to MQTT broker, retrying in background")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// SetRoutes replaces the topic routing table, subscribing to new topics and
// unsubscribing from topics no backend watches anymore. While the client is offline only
// the table is updated.
func (w *Watcher) SetRoutes(routes map[string][]Refresher) error {
	w.mu.Lock()
	previous := w.routes
	w.routes = make(map[string][]Refresher, len(routes))
	for topic, refreshers := range routes {
		if len(refreshers) > 0 {
			w.routes[topic] = refreshers
		}
	}
	current := w.routes
	w.mu.Unlock()

	if !w.client.IsConnected() {
		w.logger.Infow("MQTT offline, routes kept until connected", "topics", len(current))
		return nil
	}

	var removed []string
	for topic := range previous {
		if _, ok := current[topic]; !ok {
			removed = append(removed, topic)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		token := w.client.Unsubscribe(removed...)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to unsubscribe from %v: %w", removed, token.Error())
		}
	}

	for _, topic := range sortedTopics(current) {
		if _, ok := previous[topic]; ok {
			continue
		}
		if err := w.subscribe(topic); err != nil {
			return err
		}
	}

	w.logger.Infow("MQTT routes updated", "topics", len(current), "unsubscribed", len(removed))
	return nil
}

func (w *Watcher) subscribe(topic string) error {
	token := w.client.Subscribe(topic, w.qos, func(_ mqtt.Client, msg mqtt.Message) {
		w.handleMessage(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (w *Watcher) resubscribe() error {
	w.mu.RLock()
	topics := sortedTopics(w.routes)
	w.mu.RUnlock()

	for _, topic := range topics {
		if err := w.subscribe(topic); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage requests a refresh from every backend routed to topic. Requests are
// coalesced by the backends, so bursts of detections cause at most one pending cycle.
func (w *Watcher) handleMessage(topic string, payload []byte) {
	w.mu.RLock()
	refreshers := w.routes[topic]
	w.mu.RUnlock()

	if len(refreshers) == 0 {
		w.logger.Debugw("Ignoring message on unrouted topic", "topic", topic)
		return
	}

	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		w.logger.Debugw("Detector notification is not JSON", "topic", topic, "error", err.Error())
	}

	w.logger.Debugw("Detector notification received",
		"topic", topic,
		"alertId", n.AlertID,
		"cameraId", n.CameraID,
		"objectType", n.ObjectType,
		"backends", len(refreshers))

	for _, r := range refreshers {
		r.RequestRefresh()
	}
}

// Topics returns the currently routed topics in sorted order.
func (w *Watcher) Topics() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedTopics(w.routes)
}

// Close disconnects from the broker.
func (w *Watcher) Close() {
	w.client.Disconnect(disconnectQuiesce)
}

func sortedTopics(routes map[string][]Refresher) []string {
	topics := make([]string, 0, len(routes))
	for topic := range routes {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
