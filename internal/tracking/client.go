// Package tracking carries driver locations and job status changes over MQTT.
package tracking

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/config"
)

// Client is the subset of mqtt.Client the broker wrapper uses.
type Client interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Broker wraps a connected MQTT client with the configured topic layout.
type Broker struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// Connect dials the broker. TLS is used for ssl:// and tls:// URLs.
func Connect(cfg config.MQTTConfig, log zerolog.Logger) (*Broker, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(_ mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if strings.HasPrefix(cfg.Broker, "ssl://") || strings.HasPrefix(cfg.Broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.Broker, err)
	}
	return NewBroker(client, cfg), nil
}

// NewBroker wraps an already connected client.
func NewBroker(client Client, cfg config.MQTTConfig) *Broker {
	return &Broker{
		client:  client,
		prefix:  strings.TrimRight(cfg.TopicPrefix, "/"),
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
	}
}

// Topic joins parts under the configured prefix.
func (b *Broker) Topic(parts ...string) string {
	return b.prefix + "/" + strings.Join(parts, "/")
}

func (b *Broker) publish(topic string, payload []byte, retained bool) error {
	token := b.client.Publish(topic, b.qos, retained, payload)
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("mqtt: publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

func (b *Broker) subscribe(topic string, cb mqtt.MessageHandler) error {
	token := b.client.Subscribe(topic, b.qos, cb)
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("mqtt: subscribe %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	return nil
}

// Close disconnects, allowing in-flight work 250ms to finish.
func (b *Broker) Close() {
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
}
