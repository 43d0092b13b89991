package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/nugget/wattdash/internal/config"
)

// subscribeQoS is the QoS requested for telemetry topics. Readings are
// superseded by the next publish, so at-most-once is enough.
const subscribeQoS = 0

// Client owns the broker session. It hands every lifecycle event and
// inbound message to a [Dispatcher]; reconnection is left to autopaho.
type Client struct {
	cfg        config.MQTTConfig
	clientID   string
	dispatcher *Dispatcher
	recorder   Recorder
	logger     *slog.Logger
	limiter    *messageRateLimiter

	mu sync.Mutex
	cm *autopaho.ConnectionManager
}

// NewClient creates a Client but does not connect. Call [Client.Start]
// to begin the session.
func NewClient(cfg config.MQTTConfig, clientID string, d *Dispatcher, rec Recorder, logger *slog.Logger) *Client {
	if rec == nil {
		rec = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		clientID:   clientID,
		dispatcher: d,
		recorder:   rec,
		logger:     logger,
	}
}

// ClientID derives the broker client identifier from a persisted
// instance ID. An explicit override in the config wins.
func ClientID(cfg config.MQTTConfig, instanceID string) string {
	if cfg.ClientID != "" {
		return cfg.ClientID
	}
	id := strings.ReplaceAll(instanceID, "-", "")
	if len(id) > 12 {
		id = id[len(id)-12:]
	}
	return "wattdash-" + id
}

// Start begins the broker session and returns once the first connection
// attempt has either succeeded or timed out. autopaho keeps retrying in
// the background until ctx is cancelled.
func (c *Client) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	if c.cfg.RateLimit > 0 {
		c.limiter = newMessageRateLimiter(int64(c.cfg.RateLimit), time.Second, c.logger)
		go c.limiter.start(ctx)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       uint16(c.cfg.KeepAliveSec),
		ConnectUsername: c.cfg.Username,
		ConnectPassword: []byte(c.cfg.Password),
		// Subscriptions are re-issued on every connect, so no session
		// state needs to survive on the broker.
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.logger.Info("mqtt connected to broker", "broker", c.cfg.Broker, "client_id", c.clientID)
			c.dispatcher.OnConnect(ctx, sessionSubscriber{cm: cm})
		},
		OnConnectError: func(err error) {
			c.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.onPublish,
			},
			OnClientError: func(err error) {
				c.dispatcher.OnDisconnect(err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.dispatcher.OnDisconnect(fmt.Errorf("server disconnect: reason code %d", d.ReasonCode))
			},
		},
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying; stale-but-valid data is fine meanwhile.
		c.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop disconnects from the broker. The provided context controls how
// long to wait for the disconnect to complete.
func (c *Client) Stop(ctx context.Context) error {
	cm := c.manager()
	if cm == nil {
		return nil
	}
	err := cm.Disconnect(ctx)
	c.dispatcher.OnDisconnect(nil)
	return err
}

// AwaitConnection blocks until the broker connection is established or
// ctx expires.
func (c *Client) AwaitConnection(ctx context.Context) error {
	cm := c.manager()
	if cm == nil {
		return errors.New("mqtt client not started")
	}
	return cm.AwaitConnection(ctx)
}

func (c *Client) manager() *autopaho.ConnectionManager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cm
}

// Connected reports whether the broker session is currently up.
func (c *Client) Connected() bool {
	return c.dispatcher.State() == Connected
}

func (c *Client) onPublish(pr paho.PublishReceived) (bool, error) {
	if pr.Packet == nil {
		return false, nil
	}
	if c.limiter != nil && !c.limiter.allow() {
		c.recorder.MessageHandled(ResultRateLimited)
		return true, nil
	}
	c.dispatcher.HandleMessage(pr.Packet.Topic, pr.Packet.Payload)
	return true, nil
}

// sessionSubscriber subscribes through the live connection manager.
type sessionSubscriber struct {
	cm *autopaho.ConnectionManager
}

func (s sessionSubscriber) Subscribe(ctx context.Context, topic string) error {
	ack, err := s.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: subscribeQoS},
		},
	})
	if err != nil {
		return err
	}
	if ack != nil && len(ack.Reasons) > 0 && ack.Reasons[0] >= 0x80 {
		return fmt.Errorf("subscription refused: reason code 0x%02x", ack.Reasons[0])
	}
	return nil
}
