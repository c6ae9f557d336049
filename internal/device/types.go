package device

import "strings"

// Kind classifies how a device is passed through to a guest.
type Kind string

const (
	// KindPCI is a PCI device passed through via VFIO.
	KindPCI Kind = "pci"

	// KindUSB is a USB device passed through as a usb-host device.
	KindUSB Kind = "usb"
)

// State is a device's attachment state.
//
// Transitioning only ever exists inside a single attach or detach call; it
// is always replaced by Attached, Detached, or Error before the call returns.
type State string

const (
	StateDetached      State = "detached"
	StateAttached      State = "attached"
	StateTransitioning State = "transitioning"
	StateError         State = "error"
)

// Device is one passthrough device. The descriptor fields are immutable
// after registry construction; attachment state lives in the registry.
type Device struct {
	// Name uniquely identifies the device across both configuration groups.
	Name string

	// Kind selects the hotplug parameters (vfio-pci or usb-host).
	Kind Kind

	// ID is the PCI bus address (e.g. "01:00.0") for PCI devices, or the
	// host bus/port path for USB devices.
	ID string

	// VendorID and ProductID identify a USB device to the guest.
	// Set only when Kind == KindUSB.
	VendorID  string
	ProductID string

	// TargetVM names the VM this device attaches to.
	TargetVM string
}

// VM is one virtual machine reachable over a QMP control socket.
type VM struct {
	// Name uniquely identifies the VM.
	Name string

	// QMPSocket is the unix socket path of the VM's QMP monitor.
	QMPSocket string

	// Devices lists the device names this VM may host, in configuration order.
	Devices []string

	// Running is a best-effort liveness flag updated after QMP sessions.
	// It is advisory only and never authoritative.
	Running bool
}

// HotplugID returns the deterministic guest-side identifier used for
// device_add and device_del. It is derived from kind and name so a detach
// can address a device attached by an earlier process instance.
func (d *Device) HotplugID() string {
	return string(d.Kind) + "-" + strings.ReplaceAll(d.Name, " ", "_")
}
