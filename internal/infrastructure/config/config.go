package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the kill-switch daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	QMP      QMPConfig      `yaml:"qmp"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Journal  JournalConfig  `yaml:"journal"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DaemonConfig contains paths to the device and VM documents.
type DaemonConfig struct {
	DevicesFile string `yaml:"devices_file"`
	VMsFile     string `yaml:"vms_file"`
}

// QMPConfig contains timeouts for QMP control socket sessions.
type QMPConfig struct {
	// ConnectTimeout is the maximum time to establish a session, including
	// the greeting and capabilities handshake (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// CommandTimeout is the maximum time for a single command round trip (seconds).
	CommandTimeout int `yaml:"command_timeout"`
}

// TriggerConfig contains the toggle trigger sources.
// At least one source must be enabled or the daemon could never leave
// its startup state.
type TriggerConfig struct {
	File FileTriggerConfig `yaml:"file"`
	MQTT MQTTTriggerConfig `yaml:"mqtt"`
}

// FileTriggerConfig contains the filesystem marker trigger settings.
type FileTriggerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	PollInterval int    `yaml:"poll_interval_ms"`
}

// MQTTTriggerConfig contains the MQTT trigger settings.
type MQTTTriggerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
}

// JournalConfig contains SQLite toggle journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB metric sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KILLSWITCH_SECTION_KEY
// For example: KILLSWITCH_JOURNAL_PATH, KILLSWITCH_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			DevicesFile: "configs/devices.yaml",
			VMsFile:     "configs/vms.yaml",
		},
		QMP: QMPConfig{
			ConnectTimeout: 5,
			CommandTimeout: 10,
		},
		Trigger: TriggerConfig{
			File: FileTriggerConfig{
				Enabled:      true,
				Path:         "/tmp/vm-killswitch-trigger",
				PollInterval: 500,
			},
			MQTT: MQTTTriggerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "killswitchd",
				Topic:    "killswitch/toggle",
				QoS:      1,
			},
		},
		Journal: JournalConfig{
			Enabled:     true,
			Path:        "./data/killswitch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9153,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "killswitch",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies KILLSWITCH_* environment variables over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KILLSWITCH_DEVICES_FILE"); v != "" {
		cfg.Daemon.DevicesFile = v
	}
	if v := os.Getenv("KILLSWITCH_VMS_FILE"); v != "" {
		cfg.Daemon.VMsFile = v
	}

	if v := os.Getenv("KILLSWITCH_TRIGGER_FILE"); v != "" {
		cfg.Trigger.File.Path = v
	}

	if v := os.Getenv("KILLSWITCH_MQTT_HOST"); v != "" {
		cfg.Trigger.MQTT.Host = v
	}
	if v := os.Getenv("KILLSWITCH_MQTT_USERNAME"); v != "" {
		cfg.Trigger.MQTT.Username = v
	}
	if v := os.Getenv("KILLSWITCH_MQTT_PASSWORD"); v != "" {
		cfg.Trigger.MQTT.Password = v
	}

	if v := os.Getenv("KILLSWITCH_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("KILLSWITCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("KILLSWITCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Daemon.DevicesFile == "" {
		errs = append(errs, "daemon.devices_file is required")
	}
	if c.Daemon.VMsFile == "" {
		errs = append(errs, "daemon.vms_file is required")
	}

	if c.QMP.ConnectTimeout <= 0 {
		errs = append(errs, "qmp.connect_timeout must be positive")
	}
	if c.QMP.CommandTimeout <= 0 {
		errs = append(errs, "qmp.command_timeout must be positive")
	}

	// A daemon with no trigger source could never leave its startup state.
	// The API's toggle endpoint counts as a source.
	if !c.Trigger.File.Enabled && !c.Trigger.MQTT.Enabled && !c.API.Enabled {
		errs = append(errs, "at least one trigger source (trigger.file, trigger.mqtt, api) must be enabled")
	}

	if c.Trigger.File.Enabled {
		if c.Trigger.File.Path == "" {
			errs = append(errs, "trigger.file.path is required when the file trigger is enabled")
		}
		if c.Trigger.File.PollInterval <= 0 {
			errs = append(errs, "trigger.file.poll_interval_ms must be positive")
		}
	}

	if c.Trigger.MQTT.Enabled {
		if c.Trigger.MQTT.Topic == "" {
			errs = append(errs, "trigger.mqtt.topic is required when the MQTT trigger is enabled")
		}
		if c.Trigger.MQTT.QoS < 0 || c.Trigger.MQTT.QoS > 2 {
			errs = append(errs, "trigger.mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectTimeout returns the QMP connect timeout as a Duration.
func (c *QMPConfig) GetConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// GetCommandTimeout returns the QMP command timeout as a Duration.
func (c *QMPConfig) GetCommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// GetPollInterval returns the file trigger poll interval as a Duration.
func (c *FileTriggerConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
