package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrUnknownVM) {
//	    // handle dangling target_vm reference
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrVMNotFound is returned when a VM name does not exist.
	ErrVMNotFound = errors.New("device: vm not found")

	// ErrUnknownVM is returned when a device's target_vm does not resolve
	// to a configured VM. This is fatal at startup.
	ErrUnknownVM = errors.New("device: target vm not configured")

	// ErrDuplicateDevice is returned when two devices share a name.
	ErrDuplicateDevice = errors.New("device: duplicate device name")

	// ErrDuplicateVM is returned when two VMs share a name.
	ErrDuplicateVM = errors.New("device: duplicate vm name")

	// ErrInvalidKind is returned when a device type is neither pci nor usb.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrMissingName is returned when a device or VM has no name.
	ErrMissingName = errors.New("device: name is required")

	// ErrMissingID is returned when a device has no identifier.
	ErrMissingID = errors.New("device: id is required")

	// ErrMissingUSBIdentity is returned when a USB device omits its
	// vendor or product identifier.
	ErrMissingUSBIdentity = errors.New("device: usb device requires vendor_id and product_id")

	// ErrInvalidPCIAddress is returned when a PCI device identifier is not
	// a bus address of the form [dddd:]bb:ss.f.
	ErrInvalidPCIAddress = errors.New("device: invalid pci bus address")

	// ErrMissingSocket is returned when a VM has no QMP socket path.
	ErrMissingSocket = errors.New("device: vm qmp_socket is required")
)
