// Package mqtt connects zoned to its MQTT broker. It wraps paho.mqtt.golang with automatic
// reconnection, re-subscription on reconnect and a retained availability topic, and publishes
// device commands without blocking the caller.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	availabilityTopic = "zoned/system/status"
	payloadOnline     = "online"
	payloadOffline    = "offline"
)

// Config holds the broker connection parameters.
type Config struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	BaseTopic string
}

// MessageHandler is called for every message received on a subscribed topic. Handlers run on
// the paho router goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Client is a connection to the MQTT broker.
type Client struct {
	cfg           Config
	client        pahomqtt.Client
	logger        *slog.Logger
	subscriptions map[string]MessageHandler
	lock          sync.RWMutex
}

// NewClient returns a Client for the given broker. The connection is established by Run.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	c := Client{
		cfg:           cfg,
		logger:        logger,
		subscriptions: make(map[string]MessageHandler),
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetWill(availabilityTopic, payloadOffline, 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			c.logger.Warn("connection lost", "err", err)
		})
	c.client = pahomqtt.NewClient(opts)
	return &c
}

// Run connects to the broker and keeps the connection up until ctx is done. Subscriptions
// registered before or after the connection is established are (re-)applied on every
// (re)connect.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Debug("started")
	defer c.logger.Debug("stopped")

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: timeout after %s", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	<-ctx.Done()

	if c.client.IsConnected() {
		c.client.Publish(availabilityTopic, 1, true, payloadOffline)
		c.client.Disconnect(250)
	}
	return nil
}

// Subscribe registers a handler for all messages on topic (wildcards allowed). The
// subscription survives reconnects.
func (c *Client) Subscribe(topic string, handler MessageHandler) {
	c.lock.Lock()
	c.subscriptions[topic] = handler
	c.lock.Unlock()

	if c.client.IsConnected() {
		c.subscribe(topic, handler)
	}
}

// Publish sends payload to topic and returns immediately. If ack is not nil, it is called
// with the outcome once the broker confirms, or fails, the delivery.
func (c *Client) Publish(topic string, payload []byte, ack func(error)) {
	token := c.client.Publish(topic, 1, false, payload)
	go func() {
		var err error
		if !token.WaitTimeout(publishTimeout) {
			err = fmt.Errorf("%w: timeout after %s", ErrPublishFailed, publishTimeout)
		} else if e := token.Error(); e != nil {
			err = fmt.Errorf("%w: %w", ErrPublishFailed, e)
		}
		if err != nil {
			c.logger.Warn("publish failed", "topic", topic, "err", err)
		}
		if ack != nil {
			ack(err)
		}
	}()
}

// Set publishes a command to the device's set topic.
func (c *Client) Set(device string, fields map[string]any, ack func(error)) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	c.Publish(SetTopic(c.cfg.BaseTopic, device), payload, ack)
	return nil
}

func (c *Client) onConnect() {
	c.logger.Debug("connected", "broker", c.cfg.Broker)
	c.client.Publish(availabilityTopic, 1, true, payloadOnline)

	c.lock.RLock()
	defer c.lock.RUnlock()
	for topic, handler := range c.subscriptions {
		c.subscribe(topic, handler)
	}
}

func (c *Client) subscribe(topic string, handler MessageHandler) {
	token := c.client.Subscribe(topic, 0, func(_ pahomqtt.Client, m pahomqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	go func() {
		if token.WaitTimeout(publishTimeout) && token.Error() == nil {
			return
		}
		c.logger.Error("subscribe failed", "topic", topic, "err", token.Error())
	}()
}
