package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealClient.
type Options struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	RetryInterval time.Duration // delay between connect attempts

	// Will, if WillTopic is set, is published by the broker when the
	// connection drops without a clean disconnect.
	WillTopic   string
	WillPayload []byte
}

// RealClient publishes to an actual MQTT broker.
// Reconnection is driven by the caller through Connect; the paho client's own
// auto-reconnect is disabled so Connected reflects the real link state.
type RealClient struct {
	client paho.Client
	opts   Options
	log    *log.Entry
}

// NewRealClient creates a client for the given broker. It does not connect.
func NewRealClient(opts Options) *RealClient {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	logger := log.WithField("component", "mqtt")

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.WithError(err).Warn("connection lost")
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	if opts.WillTopic != "" {
		po.SetWill(opts.WillTopic, string(opts.WillPayload), 1, true)
	}

	return &RealClient{
		client: paho.NewClient(po),
		opts:   opts,
		log:    logger,
	}
}

// Connected reports whether the broker connection is up.
func (c *RealClient) Connected() bool {
	return c.client.IsConnected()
}

// Connect retries until the broker accepts the connection or ctx is done.
func (c *RealClient) Connect(ctx context.Context) error {
	for {
		c.log.WithField("broker", c.opts.Broker).Info("connecting")
		err := c.connectOnce()
		if err == nil {
			c.log.WithField("broker", c.opts.Broker).Info("connected")
			return nil
		}
		c.log.WithError(err).Warnf("connect failed, retrying in %v", c.opts.RetryInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.RetryInterval):
		}
	}
}

func (c *RealClient) connectOnce() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Publish sends one message at QoS 0.
func (c *RealClient) Publish(topic string, payload []byte, retain bool) bool {
	token := c.client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		c.log.WithField("topic", topic).Warn("publish timeout")
		return false
	}
	if err := token.Error(); err != nil {
		c.log.WithField("topic", topic).WithError(err).Warn("publish failed")
		return false
	}
	c.log.WithField("topic", topic).Debug("published")
	return true
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second quiesce
	return nil
}
