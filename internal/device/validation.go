package device

import (
	"fmt"
	"regexp"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

// pciAddressPattern matches a PCI bus address with an optional domain:
// "01:00.0" or "0000:01:00.0".
var pciAddressPattern = regexp.MustCompile(`^([0-9a-fA-F]{4}:)?[0-9a-fA-F]{2}:[0-9a-fA-F]{2}\.[0-7]$`)

// validateDeviceEntry checks one device definition for structural defects.
func validateDeviceEntry(entry config.DeviceEntry) error {
	if entry.Name == "" {
		return ErrMissingName
	}
	if entry.ID == "" {
		return fmt.Errorf("%w: device %q", ErrMissingID, entry.Name)
	}
	if entry.TargetVM == "" {
		return fmt.Errorf("%w: device %q has no target_vm", ErrUnknownVM, entry.Name)
	}

	switch Kind(entry.Type) {
	case KindPCI:
		if !pciAddressPattern.MatchString(entry.ID) {
			return fmt.Errorf("%w: device %q id %q", ErrInvalidPCIAddress, entry.Name, entry.ID)
		}
	case KindUSB:
		if entry.VendorID == "" || entry.ProductID == "" {
			return fmt.Errorf("%w: device %q", ErrMissingUSBIdentity, entry.Name)
		}
	default:
		return fmt.Errorf("%w: device %q type %q", ErrInvalidKind, entry.Name, entry.Type)
	}

	return nil
}

// validateVMEntry checks one VM definition for structural defects.
func validateVMEntry(entry config.VMEntry) error {
	if entry.Name == "" {
		return ErrMissingName
	}
	if entry.QMPSocket == "" {
		return fmt.Errorf("%w: vm %q", ErrMissingSocket, entry.Name)
	}
	return nil
}
