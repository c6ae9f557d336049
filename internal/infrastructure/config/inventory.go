package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceEntry is one device definition from devices.yaml.
// Semantic validation (kind, required identifiers, target VM resolution)
// belongs to the device registry; this type only carries the parsed fields.
type DeviceEntry struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	ID        string `yaml:"id"`
	VendorID  string `yaml:"vendor_id,omitempty"`
	ProductID string `yaml:"product_id,omitempty"`
	TargetVM  string `yaml:"target_vm"`
}

// VMEntry is one virtual machine definition from vms.yaml.
type VMEntry struct {
	Name      string   `yaml:"name"`
	QMPSocket string   `yaml:"qmp_socket"`
	Devices   []string `yaml:"devices"`
}

// devicesDocument mirrors the on-disk layout of devices.yaml, which groups
// devices into audio and video sections.
type devicesDocument struct {
	AudioDevices []DeviceEntry `yaml:"audio_devices"`
	VideoDevices []DeviceEntry `yaml:"video_devices"`
}

// vmsDocument mirrors the on-disk layout of vms.yaml.
type vmsDocument struct {
	VirtualMachines []VMEntry `yaml:"virtual_machines"`
}

// LoadDevices reads the device document and returns all entries in document
// order (audio section first, then video). The order is preserved because it
// determines toggle sequencing.
//
// Parameters:
//   - path: Path to devices.yaml
//
// Returns:
//   - []DeviceEntry: Device entries in document order
//   - error: If the file cannot be read or parsed, or defines no devices
func LoadDevices(path string) ([]DeviceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}

	var doc devicesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing devices file: %w", err)
	}

	entries := make([]DeviceEntry, 0, len(doc.AudioDevices)+len(doc.VideoDevices))
	entries = append(entries, doc.AudioDevices...)
	entries = append(entries, doc.VideoDevices...)

	if len(entries) == 0 {
		return nil, fmt.Errorf("devices file %s defines no devices", path)
	}

	return entries, nil
}

// LoadVMs reads the VM document and returns all entries in document order.
//
// Parameters:
//   - path: Path to vms.yaml
//
// Returns:
//   - []VMEntry: VM entries in document order
//   - error: If the file cannot be read or parsed, or defines no VMs
func LoadVMs(path string) ([]VMEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vms file: %w", err)
	}

	var doc vmsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing vms file: %w", err)
	}

	if len(doc.VirtualMachines) == 0 {
		return nil, fmt.Errorf("vms file %s defines no virtual machines", path)
	}

	return doc.VirtualMachines, nil
}
