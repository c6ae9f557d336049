package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// VFIODriver is the passthrough driver PCI devices are bound to before
// being handed to a guest.
const VFIODriver = "vfio-pci"

// sysfsWriteMode is the permission mode for sysfs control file writes.
const sysfsWriteMode = 0200

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Binder issues PCI driver bind/unbind requests through sysfs.
type Binder struct {
	// SysfsRoot is the sysfs mount point, normally "/sys".
	// Tests point it at a fake tree.
	SysfsRoot string

	logger Logger
}

// NewBinder returns a Binder against the real sysfs tree.
func NewBinder() *Binder {
	return &Binder{SysfsRoot: "/sys", logger: noopLogger{}}
}

// SetLogger sets the logger for the binder.
func (b *Binder) SetLogger(logger Logger) {
	b.logger = logger
}

// canonicalPCIAddress expands a domainless bus address ("01:00.0") to the
// full form sysfs uses ("0000:01:00.0").
func canonicalPCIAddress(addr string) string {
	if strings.Count(addr, ":") == 1 {
		return "0000:" + addr
	}
	return addr
}

func (b *Binder) devicePath(addr string) string {
	return filepath.Join(b.SysfsRoot, "bus", "pci", "devices", canonicalPCIAddress(addr))
}

// currentDriver returns the basename of the driver a device is bound to,
// or "" when unbound.
func (b *Binder) currentDriver(addr string) string {
	link, err := os.Readlink(filepath.Join(b.devicePath(addr), "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(link)
}

// UnbindPCI releases the device from whatever driver currently owns it.
// A device that is already unbound is a success, not an error: the
// operation is idempotent in intent.
//
// Parameters:
//   - addr: PCI bus address, with or without the domain prefix
//
// Returns:
//   - error: ErrUnbindFailed wrapped with the OS cause, or nil
func (b *Binder) UnbindPCI(addr string) error {
	full := canonicalPCIAddress(addr)

	driver := b.currentDriver(addr)
	if driver == "" {
		b.logger.Debug("pci device already unbound", "address", full)
		return nil
	}

	unbindPath := filepath.Join(b.devicePath(addr), "driver", "unbind")
	if err := os.WriteFile(unbindPath, []byte(full), sysfsWriteMode); err != nil {
		return fmt.Errorf("%w: %s from %s: %w", ErrUnbindFailed, full, driver, err)
	}

	b.logger.Debug("pci device unbound", "address", full, "driver", driver)
	return nil
}

// BindPCI binds the device to the given driver, vfio-pci when empty.
//
// The sequence is the standard sysfs one: release the current owner if
// any, set driver_override, then ask the bus to reprobe. The kernel
// completes the probe asynchronously, so success here means the requests
// were accepted, not that the driver finished attaching.
//
// Parameters:
//   - addr: PCI bus address, with or without the domain prefix
//   - driver: Target driver name; "" selects vfio-pci
//
// Returns:
//   - error: ErrBindFailed wrapped with the OS cause, or nil
func (b *Binder) BindPCI(addr, driver string) error {
	if driver == "" {
		driver = VFIODriver
	}
	full := canonicalPCIAddress(addr)

	if current := b.currentDriver(addr); current == driver {
		b.logger.Debug("pci device already bound", "address", full, "driver", driver)
		return nil
	} else if current != "" {
		if err := b.UnbindPCI(addr); err != nil {
			return fmt.Errorf("%w: releasing %s: %w", ErrBindFailed, full, err)
		}
	}

	overridePath := filepath.Join(b.devicePath(addr), "driver_override")
	if err := os.WriteFile(overridePath, []byte(driver), sysfsWriteMode); err != nil {
		return fmt.Errorf("%w: override for %s: %w", ErrBindFailed, full, err)
	}

	probePath := filepath.Join(b.SysfsRoot, "bus", "pci", "drivers_probe")
	if err := os.WriteFile(probePath, []byte(full), sysfsWriteMode); err != nil {
		return fmt.Errorf("%w: probe for %s: %w", ErrBindFailed, full, err)
	}

	b.logger.Debug("pci device bind requested", "address", full, "driver", driver)
	return nil
}
