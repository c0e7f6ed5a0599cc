// Package relay implements the cloud transport shared by hosts and
// controllers: a topic-based publish/subscribe channel over an external
// managed broker.
package relay

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	werrors "github.com/versewall/versewall/internal/errors"
)

// Message is one publication on the relay
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Options configures a relay client
type Options struct {
	BrokerURL      string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
	// Will is published by the broker if this client vanishes without a
	// clean disconnect
	Will *Message
	// OnConnect runs after every (re)connect, including the first
	OnConnect func()
}

// Client wraps the broker connection. The underlying client retries
// lost connections on its own; while it is down, publishes fail fast
// and the caller surfaces nothing worse than a prolonged connecting
// state.
type Client struct {
	raw    mqtt.Client
	qos    byte
	logger *slog.Logger
}

// Dial connects to the broker
func Dial(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(opts.ClientID)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	o.SetResumeSubs(true)
	o.SetOrderMatters(true)
	if opts.Will != nil {
		o.SetBinaryWill(opts.Will.Topic, opts.Will.Payload, opts.QoS, opts.Will.Retained)
	}
	if opts.OnConnect != nil {
		onConnect := opts.OnConnect
		o.SetOnConnectHandler(func(mqtt.Client) { onConnect() })
	}
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("relay connection lost", "error", err)
	})

	c := mqtt.NewClient(o)
	token := c.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, werrors.NewError("RELAY_UNAVAILABLE", "broker connect timed out",
			"relay.Dial", werrors.ErrRelayUnavailable)
	}
	if err := token.Error(); err != nil {
		return nil, werrors.NewError("RELAY_UNAVAILABLE", "broker connect failed",
			"relay.Dial", fmt.Errorf("%w: %v", werrors.ErrRelayUnavailable, err))
	}

	return &Client{raw: c, qos: opts.QoS, logger: logger}, nil
}

// Publish sends a payload to a topic. Delivery confirmation is not
// awaited: at QoS 1 the broker acknowledgement is a network round trip,
// and callers on the command path must not stall on it. Confirmation
// failures are logged from the token instead.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if !c.raw.IsConnectionOpen() {
		return werrors.ErrRelayUnavailable
	}
	token := c.raw.Publish(topic, c.qos, retained, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Error("publish failed", "topic", topic, "error", err)
		}
	}()
	return nil
}

// Subscribe delivers every publication on topic to the handler
func (c *Client) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := c.raw.Subscribe(topic, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Topic(), m.Payload())
	})
	token.Wait()
	return token.Error()
}

// Unsubscribe stops delivery for the given topics
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.raw.Unsubscribe(topics...)
	token.Wait()
	return token.Error()
}

// Connected reports whether the broker link is currently up
func (c *Client) Connected() bool {
	return c.raw.IsConnectionOpen()
}

// Close disconnects from the broker, allowing a short drain
func (c *Client) Close() {
	c.raw.Disconnect(250)
}
