// killswitchd toggles audio and video passthrough devices between the
// host and their QEMU virtual machines.
//
// The daemon holds a binary security posture: secure means every
// configured device is detached from its VM, operational means the
// devices are attached. Trigger sources (filesystem marker, MQTT topic,
// local HTTP API) flip the posture with one full sweep per trigger.
// Startup and shutdown both force a detach sweep, so the host trends
// toward the secure state whenever the daemon is not actively serving.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greyhollow/killswitch/internal/api"
	"github.com/greyhollow/killswitch/internal/control"
	"github.com/greyhollow/killswitch/internal/device"
	"github.com/greyhollow/killswitch/internal/host"
	"github.com/greyhollow/killswitch/internal/infrastructure/config"
	"github.com/greyhollow/killswitch/internal/infrastructure/database"
	"github.com/greyhollow/killswitch/internal/infrastructure/influxdb"
	"github.com/greyhollow/killswitch/internal/infrastructure/logging"
	"github.com/greyhollow/killswitch/internal/journal"
	"github.com/greyhollow/killswitch/internal/orchestrator"
	"github.com/greyhollow/killswitch/internal/qmp"
	"github.com/greyhollow/killswitch/internal/trigger"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual daemon logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting killswitchd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Load the device and VM inventory. Any inconsistency here is fatal:
	// the daemon never runs with a partially valid configuration.
	deviceEntries, err := config.LoadDevices(cfg.Daemon.DevicesFile)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	vmEntries, err := config.LoadVMs(cfg.Daemon.VMsFile)
	if err != nil {
		return fmt.Errorf("loading VMs: %w", err)
	}

	registry, err := device.NewRegistry(deviceEntries, vmEntries)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	registry.SetLogger(log)
	log.Info("device registry initialised",
		"devices", registry.DeviceCount(),
		"vms", registry.VMCount(),
	)

	reportMissingHardware(ctx, registry, log)

	// Toggle journal (optional)
	var jrnl *journal.SQLiteJournal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(database.Config{
			Path:        cfg.Journal.Path,
			WALMode:     cfg.Journal.WALMode,
			BusyTimeout: cfg.Journal.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening toggle journal: %w", err)
		}
		defer func() {
			log.Info("closing toggle journal")
			if closeErr := jrnl.Close(); closeErr != nil {
				log.Error("error closing toggle journal", "error", closeErr)
			}
		}()
		log.Info("toggle journal opened", "path", cfg.Journal.Path)
	} else {
		log.Info("toggle journal disabled")
	}

	// InfluxDB metric sink (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Orchestrator: QMP sessions plus host-side PCI driver binding
	binder := host.NewBinder()
	binder.SetLogger(log)

	dialer := &orchestrator.QMPDialer{
		Config: qmp.Config{
			ConnectTimeout: cfg.QMP.GetConnectTimeout(),
			CommandTimeout: cfg.QMP.GetCommandTimeout(),
		},
	}

	orch := orchestrator.New(registry, dialer, binder)
	orch.SetLogger(log)
	if jrnl != nil {
		orch.SetRecorder(jrnl)
	}
	if influxClient != nil {
		orch.SetMetrics(influxTransitionMetrics{client: influxClient})
	}

	// Control loop owning the posture
	loop := control.New(registry, orch)
	loop.SetLogger(log)
	if jrnl != nil {
		loop.SetRecorder(jrnl)
	}
	if influxClient != nil {
		loop.SetMetrics(influxSweepMetrics{client: influxClient})
	}

	// Trigger sources
	if cfg.Trigger.File.Enabled {
		ft := trigger.NewFileTrigger(cfg.Trigger.File)
		ft.SetLogger(log)
		loop.AddSource(ft)
		log.Info("file trigger enabled", "path", cfg.Trigger.File.Path)
	}
	if cfg.Trigger.MQTT.Enabled {
		mt := trigger.NewMQTTTrigger(cfg.Trigger.MQTT)
		mt.SetLogger(log)
		loop.AddSource(mt)
		log.Info("mqtt trigger enabled",
			"host", cfg.Trigger.MQTT.Host,
			"topic", cfg.Trigger.MQTT.Topic,
		)
	}

	// HTTP control API (optional), doubles as a trigger source
	if cfg.API.Enabled {
		var history api.SweepHistory
		if jrnl != nil {
			history = jrnl
		}

		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Registry: registry,
			Posture:  loop,
			History:  history,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		loop.AddSource(server)
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, entering control loop")

	// Blocks until the context is cancelled; the loop runs its own
	// shutdown detach sweep before returning.
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("control loop: %w", err)
	}

	log.Info("killswitchd stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses KILLSWITCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("KILLSWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// reportMissingHardware compares the configured inventory against what
// the host currently reports. Absence is logged, never fatal: devices
// may be powered off or already claimed by a VM at startup.
func reportMissingHardware(ctx context.Context, registry *device.Registry, log *logging.Logger) {
	enum := host.NewEnumerator()
	enum.SetLogger(log)

	usb := make(map[string]bool)
	for _, d := range enum.ListUSB(ctx) {
		usb[d.VendorID+":"+d.ProductID] = true
	}
	// lspci reports short addresses; index both the short and the
	// domain-qualified form so either spelling in the config matches.
	pci := make(map[string]bool)
	for _, d := range enum.ListPCI(ctx) {
		pci[d.Address] = true
		pci["0000:"+d.Address] = true
	}

	for _, dev := range registry.AllDevices() {
		switch dev.Kind {
		case device.KindUSB:
			if len(usb) > 0 && !usb[dev.VendorID+":"+dev.ProductID] {
				log.Warn("configured USB device not present on host",
					"device", dev.Name,
					"vendor_id", dev.VendorID,
					"product_id", dev.ProductID,
				)
			}
		case device.KindPCI:
			if len(pci) > 0 && !pci[dev.ID] {
				log.Warn("configured PCI device not present on host",
					"device", dev.Name,
					"address", dev.ID,
				)
			}
		}
	}
}

// influxSweepMetrics adapts the InfluxDB client to the control loop's
// metrics interface.
type influxSweepMetrics struct {
	client *influxdb.Client
}

func (m influxSweepMetrics) RecordSweep(sweep journal.Sweep, duration time.Duration) {
	m.client.WriteSweepMetric(string(sweep.Op), sweep.Succeeded, sweep.Total, sweep.SecureAfter, duration)
}

// influxTransitionMetrics adapts the InfluxDB client to the
// orchestrator's metrics interface.
type influxTransitionMetrics struct {
	client *influxdb.Client
}

func (m influxTransitionMetrics) RecordTransition(deviceName, op, outcome string) {
	m.client.WriteDeviceTransition(deviceName, op, outcome)
}
