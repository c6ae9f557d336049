package host

import (
	"context"
	"os/exec"
	"strings"
)

// USBDevice is one host USB device as reported by lsusb.
type USBDevice struct {
	VendorID    string
	ProductID   string
	Description string
}

// PCIDevice is one host PCI device as reported by lspci.
type PCIDevice struct {
	Address     string
	Description string
}

// Enumerator lists attached host hardware via the standard OS utilities.
// All operations are best-effort: any failure yields an empty list and a
// logged error, never a raised one.
type Enumerator struct {
	logger Logger

	// run executes a command and returns its stdout.
	// Overridable for tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewEnumerator returns an Enumerator backed by lsusb and lspci.
func NewEnumerator() *Enumerator {
	return &Enumerator{
		logger: noopLogger{},
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

// SetLogger sets the logger for the enumerator.
func (e *Enumerator) SetLogger(logger Logger) {
	e.logger = logger
}

// ListUSB returns the host's USB devices, empty on any enumeration failure.
//
// Parsed from lsusb lines of the form:
//
//	Bus 001 Device 004: ID 046d:085e Logitech, Inc. BRIO Ultra HD Webcam
func (e *Enumerator) ListUSB(ctx context.Context) []USBDevice {
	out, err := e.run(ctx, "lsusb")
	if err != nil {
		e.logger.Error("usb enumeration failed", "error", err)
		return nil
	}

	var devices []USBDevice
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || fields[4] != "ID" {
			continue
		}
		vendor, product, ok := strings.Cut(fields[5], ":")
		if !ok {
			continue
		}
		devices = append(devices, USBDevice{
			VendorID:    vendor,
			ProductID:   product,
			Description: strings.Join(fields[6:], " "),
		})
	}
	return devices
}

// ListPCI returns the host's PCI devices, empty on any enumeration failure.
//
// Parsed from lspci -n lines of the form:
//
//	01:00.0 0403: 8086:a170 (rev 31)
func (e *Enumerator) ListPCI(ctx context.Context) []PCIDevice {
	out, err := e.run(ctx, "lspci", "-n")
	if err != nil {
		e.logger.Error("pci enumeration failed", "error", err)
		return nil
	}

	var devices []PCIDevice
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		devices = append(devices, PCIDevice{
			Address:     fields[0],
			Description: strings.Join(fields[1:], " "),
		})
	}
	return devices
}
