// Package host wraps the narrow host-side OS operations the daemon needs:
// binding PCI devices to the vfio-pci passthrough driver via sysfs, and
// best-effort enumeration of attached USB and PCI hardware.
//
// These are thin collaborator operations, not core logic. The contract is
// "ask the OS, get identifiers": bind and unbind report success or failure
// and are never retried here — the orchestrator decides what a failure
// means for a given toggle. Enumeration returns an empty list on any
// failure and logs the cause rather than raising it.
//
// The sysfs root is injectable so the bind/unbind sequences can be tested
// against a fake tree.
package host
