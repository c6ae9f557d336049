package trigger

import (
	"testing"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

func TestMQTTTriggerName(t *testing.T) {
	mt := NewMQTTTrigger(config.MQTTTriggerConfig{})
	if got := mt.Name(); got != "mqtt" {
		t.Errorf("Name() = %q, want %q", got, "mqtt")
	}
}

func TestBuildMQTTOptionsPlain(t *testing.T) {
	opts := buildMQTTOptions(config.MQTTTriggerConfig{
		Host:     "broker.local",
		Port:     1883,
		ClientID: "killswitchd",
		Topic:    "killswitch/toggle",
		QoS:      1,
	})

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers count = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://broker.local:1883" {
		t.Errorf("broker URL = %q, want %q", got, "tcp://broker.local:1883")
	}
	if opts.ClientID != "killswitchd" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "killswitchd")
	}
	if opts.TLSConfig != nil && len(opts.TLSConfig.Certificates) > 0 {
		t.Error("unexpected TLS certificates on plain connection")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect not enabled")
	}
	if !opts.ConnectRetry {
		t.Error("ConnectRetry not enabled")
	}
	if !opts.CleanSession {
		t.Error("CleanSession not enabled")
	}
}

func TestBuildMQTTOptionsTLS(t *testing.T) {
	opts := buildMQTTOptions(config.MQTTTriggerConfig{
		Host:     "broker.local",
		Port:     8883,
		TLS:      true,
		ClientID: "killswitchd",
	})

	if got := opts.Servers[0].String(); got != "ssl://broker.local:8883" {
		t.Errorf("broker URL = %q, want %q", got, "ssl://broker.local:8883")
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig not set for TLS connection")
	}
	if opts.TLSConfig.MinVersion != mqttTLSMinVersion {
		t.Errorf("TLS MinVersion = %d, want %d", opts.TLSConfig.MinVersion, mqttTLSMinVersion)
	}
}

func TestBuildMQTTOptionsAuth(t *testing.T) {
	opts := buildMQTTOptions(config.MQTTTriggerConfig{
		Host:     "broker.local",
		Port:     1883,
		Username: "killswitch",
		Password: "secret",
	})

	if opts.Username != "killswitch" {
		t.Errorf("Username = %q, want %q", opts.Username, "killswitch")
	}
	if opts.Password != "secret" {
		t.Errorf("Password = %q, want %q", opts.Password, "secret")
	}
}

func TestBuildMQTTOptionsNoAuthWithoutUsername(t *testing.T) {
	opts := buildMQTTOptions(config.MQTTTriggerConfig{
		Host:     "broker.local",
		Port:     1883,
		Password: "ignored",
	})

	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.Password != "" {
		t.Errorf("Password = %q, want empty", opts.Password)
	}
}
