package trigger

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

// MQTT connection constants.
const (
	// mqttConnectTimeout is the maximum time to wait for initial connection.
	mqttConnectTimeout = 10 * time.Second

	// mqttKeepAlive is the keepalive interval for the connection.
	mqttKeepAlive = 60 * time.Second

	// mqttDisconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	mqttDisconnectQuiesce = 250

	// mqttTLSMinVersion is the minimum TLS version for secure connections.
	mqttTLSMinVersion = tls.VersionTLS12
)

// MQTTTrigger subscribes to a broker topic and fires a toggle event for
// every message received on it. The payload is ignored; the message itself
// is the trigger.
type MQTTTrigger struct {
	cfg    config.MQTTTriggerConfig
	logger Logger
}

// NewMQTTTrigger creates an MQTT trigger from configuration.
func NewMQTTTrigger(cfg config.MQTTTriggerConfig) *MQTTTrigger {
	return &MQTTTrigger{
		cfg:    cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger used by the trigger.
func (t *MQTTTrigger) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Name identifies the source in logs and events.
func (t *MQTTTrigger) Name() string { return "mqtt" }

// Run connects to the broker and forwards toggle messages until the
// context is cancelled. The subscription is placed inside the connect
// handler so it is re-established after a reconnect.
func (t *MQTTTrigger) Run(ctx context.Context, events chan<- Event) error {
	opts := buildMQTTOptions(t.cfg)

	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.logger.Info("mqtt trigger fired", "topic", msg.Topic())
		send(ctx, events, Event{Source: t.Name(), At: time.Now()})
	}

	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		t.logger.Info("mqtt trigger connected", "topic", t.cfg.Topic)
		token := client.Subscribe(t.cfg.Topic, byte(t.cfg.QoS), handler)
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Error("mqtt trigger subscribe failed", "topic", t.cfg.Topic, "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.logger.Warn("mqtt trigger connection lost", "error", err)
	})

	client := pahomqtt.NewClient(opts)

	// ConnectRetry keeps dialing until the broker appears, so the token
	// may not complete for a long time. Shutdown must still win.
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt trigger connect: %w", err)
		}
	case <-ctx.Done():
		client.Disconnect(mqttDisconnectQuiesce)
		return nil
	}

	<-ctx.Done()
	client.Disconnect(mqttDisconnectQuiesce)
	t.logger.Info("mqtt trigger stopped", "topic", t.cfg.Topic)
	return nil
}

// buildMQTTOptions creates paho client options from trigger configuration.
func buildMQTTOptions(cfg config.MQTTTriggerConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))

	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetKeepAlive(mqttKeepAlive)

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: mqttTLSMinVersion})
	}

	return opts
}
