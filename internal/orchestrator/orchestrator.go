package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/greyhollow/killswitch/internal/device"
	"github.com/greyhollow/killswitch/internal/journal"
	"github.com/greyhollow/killswitch/internal/qmp"
)

// Session is one established QMP session. Satisfied by *qmp.Client.
type Session interface {
	Execute(ctx context.Context, command string, args map[string]any) (json.RawMessage, error)
	Close() error
}

// Dialer opens QMP sessions. Tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, socketPath string) (Session, error)
}

// QMPDialer is the production Dialer backed by the qmp package.
type QMPDialer struct {
	Config qmp.Config
}

func (d *QMPDialer) Dial(ctx context.Context, socketPath string) (Session, error) {
	client, err := qmp.Connect(ctx, socketPath, d.Config)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// PCIBinder prepares PCI devices for passthrough. Satisfied by *host.Binder.
type PCIBinder interface {
	BindPCI(addr, driver string) error
}

// Logger is the logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives per-device transition outcomes. Implementations must
// not block the toggle path.
type Metrics interface {
	RecordTransition(deviceName, op, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransition(string, string, string) {}

// Orchestrator applies attach/detach operations to registry devices.
type Orchestrator struct {
	registry *device.Registry
	dialer   Dialer
	binder   PCIBinder
	recorder journal.Recorder
	metrics  Metrics
	logger   Logger
}

// New creates an Orchestrator over the given registry.
//
// Parameters:
//   - registry: Validated device/VM registry
//   - dialer: QMP session factory
//   - binder: Host-side PCI driver binder
func New(registry *device.Registry, dialer Dialer, binder PCIBinder) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		dialer:   dialer,
		binder:   binder,
		recorder: journal.Noop{},
		metrics:  noopMetrics{},
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// SetRecorder sets the journal recorder for attempt rows.
func (o *Orchestrator) SetRecorder(recorder journal.Recorder) {
	o.recorder = recorder
}

// SetMetrics sets the metrics sink for transition outcomes.
func (o *Orchestrator) SetMetrics(metrics Metrics) {
	if metrics != nil {
		o.metrics = metrics
	}
}

// ToggleAll applies one operation to every device in registry order.
//
// Every device gets exactly one attempt regardless of earlier failures;
// the tally of successes is returned for the control loop to judge
// whether the boundary state was reached.
//
// Parameters:
//   - ctx: Context bounding each device's QMP session
//   - op: OpAttach (leaving secure state) or OpDetach (entering it)
//   - toggleID: Correlation ID tying this sweep's records together
//
// Returns:
//   - succeeded: Devices that reached the target state
//   - total: Devices attempted (always the full registry)
func (o *Orchestrator) ToggleAll(ctx context.Context, op device.Op, toggleID string) (succeeded, total int) {
	devices := o.registry.AllDevices()
	for _, dev := range devices {
		var ok bool
		switch op {
		case device.OpDetach:
			ok = o.detach(ctx, dev, toggleID)
		default:
			ok = o.attach(ctx, dev, toggleID)
		}
		if ok {
			succeeded++
		}
	}
	return succeeded, len(devices)
}

// Attach attaches one device to its target VM.
func (o *Orchestrator) Attach(ctx context.Context, dev *device.Device) bool {
	return o.attach(ctx, dev, "")
}

// Detach detaches one device from its target VM.
func (o *Orchestrator) Detach(ctx context.Context, dev *device.Device) bool {
	return o.detach(ctx, dev, "")
}

func (o *Orchestrator) attach(ctx context.Context, dev *device.Device, toggleID string) bool {
	vm, err := o.registry.VM(dev.TargetVM)
	if err != nil {
		// Registry validation makes this unreachable in practice, but a
		// missing VM must not push the device into Transitioning.
		o.logger.Error("target vm not found", "device", dev.Name, "vm", dev.TargetVM)
		o.record(ctx, toggleID, dev, device.OpAttach, device.OutcomeFailure, err.Error())
		return false
	}

	o.registry.SetState(dev.Name, device.Begin(device.OpAttach))

	if dev.Kind == device.KindPCI {
		if err := o.binder.BindPCI(dev.ID, ""); err != nil {
			return o.fail(ctx, toggleID, dev, vm, device.OpAttach, err)
		}
	}

	session, err := o.dialer.Dial(ctx, vm.QMPSocket)
	if err != nil {
		o.registry.SetVMRunning(vm.Name, false)
		return o.fail(ctx, toggleID, dev, vm, device.OpAttach, err)
	}
	defer session.Close()
	o.registry.SetVMRunning(vm.Name, true)

	if _, err := session.Execute(ctx, "device_add", attachArgs(dev)); err != nil {
		return o.fail(ctx, toggleID, dev, vm, device.OpAttach, err)
	}

	o.registry.SetState(dev.Name, device.Next(device.OpAttach, device.OutcomeSuccess))
	o.logger.Info("device attached", "device", dev.Name, "vm", vm.Name, "hotplug_id", dev.HotplugID())
	o.record(ctx, toggleID, dev, device.OpAttach, device.OutcomeSuccess, "")
	return true
}

func (o *Orchestrator) detach(ctx context.Context, dev *device.Device, toggleID string) bool {
	vm, err := o.registry.VM(dev.TargetVM)
	if err != nil {
		o.logger.Error("target vm not found", "device", dev.Name, "vm", dev.TargetVM)
		o.record(ctx, toggleID, dev, device.OpDetach, device.OutcomeFailure, err.Error())
		return false
	}

	o.registry.SetState(dev.Name, device.Begin(device.OpDetach))

	session, err := o.dialer.Dial(ctx, vm.QMPSocket)
	if err != nil {
		o.registry.SetVMRunning(vm.Name, false)
		return o.fail(ctx, toggleID, dev, vm, device.OpDetach, err)
	}
	defer session.Close()
	o.registry.SetVMRunning(vm.Name, true)

	if _, err := session.Execute(ctx, "device_del", map[string]any{"id": dev.HotplugID()}); err != nil {
		return o.fail(ctx, toggleID, dev, vm, device.OpDetach, err)
	}

	o.registry.SetState(dev.Name, device.Next(device.OpDetach, device.OutcomeSuccess))
	o.logger.Info("device detached", "device", dev.Name, "vm", vm.Name, "hotplug_id", dev.HotplugID())
	o.record(ctx, toggleID, dev, device.OpDetach, device.OutcomeSuccess, "")
	return true
}

// fail marks the device failed, logs the cause, and records the attempt.
func (o *Orchestrator) fail(ctx context.Context, toggleID string, dev *device.Device, vm *device.VM, op device.Op, cause error) bool {
	o.registry.SetState(dev.Name, device.Next(op, device.OutcomeFailure))
	o.logger.Error("device operation failed",
		"device", dev.Name,
		"vm", vm.Name,
		"op", string(op),
		"error", cause,
	)
	o.record(ctx, toggleID, dev, op, device.OutcomeFailure, cause.Error())
	return false
}

func (o *Orchestrator) record(ctx context.Context, toggleID string, dev *device.Device, op device.Op, outcome device.Outcome, detail string) {
	o.metrics.RecordTransition(dev.Name, string(op), string(outcome))

	err := o.recorder.RecordAttempt(ctx, journal.Attempt{
		ToggleID: toggleID,
		Device:   dev.Name,
		VM:       dev.TargetVM,
		Op:       op,
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		o.logger.Warn("journal write failed", "device", dev.Name, "error", err)
	}
}

// attachArgs builds the device_add arguments for a device's kind.
func attachArgs(dev *device.Device) map[string]any {
	if dev.Kind == device.KindUSB {
		return map[string]any{
			"driver":    "usb-host",
			"id":        dev.HotplugID(),
			"vendorid":  "0x" + dev.VendorID,
			"productid": "0x" + dev.ProductID,
		}
	}
	return map[string]any{
		"driver": "vfio-pci",
		"id":     dev.HotplugID(),
		"host":   dev.ID,
	}
}
