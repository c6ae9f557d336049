package device

import (
	"fmt"
	"sync"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time view of one device for observers
// (status API, logs). It carries no registry internals.
type Status struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	ID       string `json:"id"`
	TargetVM string `json:"target_vm"`
	State    State  `json:"state"`
}

// Registry holds the validated device and VM model.
//
// Construction validates the whole configuration; a registry that exists is
// internally consistent. Iteration order over devices is configuration order,
// which makes toggle sequencing and test output deterministic.
type Registry struct {
	devices []*Device
	byName  map[string]*Device
	vms     map[string]*VM

	// states is the only mutable part of the model. It is written by the
	// orchestrator (single writer per device during a toggle) and read by
	// observers, so it keeps its own mutex.
	states  map[string]State
	stateMu sync.RWMutex

	logger Logger
}

// NewRegistry builds and validates the registry from the parsed
// configuration documents.
//
// Every device must reference a configured VM, USB devices must carry
// vendor/product identifiers, and PCI devices must carry a bus address.
// Any violation returns an error; the caller treats it as fatal.
//
// Parameters:
//   - deviceEntries: Devices in document order (audio section first)
//   - vmEntries: VMs in document order
//
// Returns:
//   - *Registry: Validated registry with all devices in StateDetached
//   - error: First configuration defect found
func NewRegistry(deviceEntries []config.DeviceEntry, vmEntries []config.VMEntry) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Device, len(deviceEntries)),
		vms:    make(map[string]*VM, len(vmEntries)),
		states: make(map[string]State, len(deviceEntries)),
		logger: noopLogger{},
	}

	for _, entry := range vmEntries {
		if err := validateVMEntry(entry); err != nil {
			return nil, err
		}
		if _, exists := r.vms[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVM, entry.Name)
		}
		r.vms[entry.Name] = &VM{
			Name:      entry.Name,
			QMPSocket: entry.QMPSocket,
			Devices:   append([]string(nil), entry.Devices...),
		}
	}

	for _, entry := range deviceEntries {
		if err := validateDeviceEntry(entry); err != nil {
			return nil, err
		}
		if _, exists := r.byName[entry.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDevice, entry.Name)
		}
		if _, known := r.vms[entry.TargetVM]; !known {
			return nil, fmt.Errorf("%w: device %q references %q", ErrUnknownVM, entry.Name, entry.TargetVM)
		}

		dev := &Device{
			Name:      entry.Name,
			Kind:      Kind(entry.Type),
			ID:        entry.ID,
			VendorID:  entry.VendorID,
			ProductID: entry.ProductID,
			TargetVM:  entry.TargetVM,
		}
		r.devices = append(r.devices, dev)
		r.byName[dev.Name] = dev
		r.states[dev.Name] = StateDetached
	}

	return r, nil
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Device returns the device with the given name.
func (r *Registry) Device(name string) (*Device, error) {
	if dev, ok := r.byName[name]; ok {
		return dev, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
}

// VM returns the VM with the given name.
func (r *Registry) VM(name string) (*VM, error) {
	if vm, ok := r.vms[name]; ok {
		return vm, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrVMNotFound, name)
}

// AllDevices returns every device in configuration order. The returned
// slice is shared; callers must not modify it.
func (r *Registry) AllDevices() []*Device {
	return r.devices
}

// DeviceCount returns the number of configured devices.
func (r *Registry) DeviceCount() int {
	return len(r.devices)
}

// VMCount returns the number of configured VMs.
func (r *Registry) VMCount() int {
	return len(r.vms)
}

// StateOf returns the current attachment state of the named device.
// Unknown names report StateError rather than inventing a safe-looking state.
func (r *Registry) StateOf(name string) State {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	if state, ok := r.states[name]; ok {
		return state
	}
	return StateError
}

// SetState records a new attachment state for the named device.
func (r *Registry) SetState(name string, state State) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if _, ok := r.states[name]; !ok {
		r.logger.Warn("state write for unknown device", "device", name, "state", state)
		return
	}
	r.states[name] = state
}

// SetVMRunning records the best-effort liveness flag for a VM after a
// QMP session attempt.
func (r *Registry) SetVMRunning(name string, running bool) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if vm, ok := r.vms[name]; ok {
		vm.Running = running
	}
}

// AllDetached reports whether every configured device is currently detached.
func (r *Registry) AllDetached() bool {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	for _, dev := range r.devices {
		if r.states[dev.Name] != StateDetached {
			return false
		}
	}
	return true
}

// Snapshot returns a point-in-time status view of every device in
// configuration order.
func (r *Registry) Snapshot() []Status {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()

	out := make([]Status, 0, len(r.devices))
	for _, dev := range r.devices {
		out = append(out, Status{
			Name:     dev.Name,
			Kind:     dev.Kind,
			ID:       dev.ID,
			TargetVM: dev.TargetVM,
			State:    r.states[dev.Name],
		})
	}
	return out
}
