// Package device provides the device and VM registry for the kill-switch daemon.
//
// The registry is the validated in-memory model of every passthrough device
// and every virtual machine the daemon controls. It is built once from the
// configuration documents at startup and is structurally immutable for the
// daemon's lifetime: names, identifiers, and the device-to-VM mapping never
// change while the process runs. Only per-device attachment state is mutated,
// and only by the attachment orchestrator during a toggle.
//
// # Key Types
//
//   - Device: One passthrough device (PCI or USB) and its target VM
//   - VM: One virtual machine and its QMP control socket
//   - State: Attachment state (detached, attached, transitioning, error)
//   - Registry: Lookup structure with stable, configuration-ordered iteration
//
// # Validation
//
// NewRegistry fails fast on any configuration defect: a device referencing
// an unknown VM, a USB device without vendor/product identifiers, a PCI
// device without a bus address, or duplicate names. A registry that
// constructs successfully is internally consistent.
//
// # Thread Safety
//
// Lookup methods are safe for concurrent use. State writes are serialized by
// the caller (one toggle in flight at a time); the registry still guards its
// state map with a mutex so readers such as the status API see consistent
// values.
package device
