package host

import "errors"

var (
	// ErrBindFailed is returned when a PCI device cannot be bound to the
	// requested driver.
	ErrBindFailed = errors.New("host: pci bind failed")

	// ErrUnbindFailed is returned when a PCI device cannot be released
	// from its current driver.
	ErrUnbindFailed = errors.New("host: pci unbind failed")
)
