package device

import (
	"errors"
	"testing"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

func testVMs() []config.VMEntry {
	return []config.VMEntry{
		{Name: "workstation", QMPSocket: "/run/qemu/workstation.sock", Devices: []string{"capture-card", "studio-interface"}},
		{Name: "conference", QMPSocket: "/run/qemu/conference.sock", Devices: []string{"webcam"}},
	}
}

func testDevices() []config.DeviceEntry {
	return []config.DeviceEntry{
		{Name: "studio-interface", Type: "usb", ID: "3-2", VendorID: "1235", ProductID: "8211", TargetVM: "workstation"},
		{Name: "capture-card", Type: "pci", ID: "01:00.0", TargetVM: "workstation"},
		{Name: "webcam", Type: "usb", ID: "1-4", VendorID: "046d", ProductID: "085e", TargetVM: "conference"},
	}
}

func TestNewRegistry_Valid(t *testing.T) {
	reg, err := NewRegistry(testDevices(), testVMs())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	if reg.DeviceCount() != 3 {
		t.Errorf("DeviceCount() = %d, want 3", reg.DeviceCount())
	}
	if reg.VMCount() != 2 {
		t.Errorf("VMCount() = %d, want 2", reg.VMCount())
	}

	dev, err := reg.Device("capture-card")
	if err != nil {
		t.Fatalf("Device() error: %v", err)
	}
	if dev.Kind != KindPCI {
		t.Errorf("Kind = %q, want pci", dev.Kind)
	}

	vm, err := reg.VM("workstation")
	if err != nil {
		t.Fatalf("VM() error: %v", err)
	}
	if vm.QMPSocket != "/run/qemu/workstation.sock" {
		t.Errorf("QMPSocket = %q", vm.QMPSocket)
	}
}

func TestNewRegistry_InitialStateDetached(t *testing.T) {
	reg, err := NewRegistry(testDevices(), testVMs())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	for _, dev := range reg.AllDevices() {
		if got := reg.StateOf(dev.Name); got != StateDetached {
			t.Errorf("StateOf(%q) = %q, want detached", dev.Name, got)
		}
	}
	if !reg.AllDetached() {
		t.Error("AllDetached() = false for a fresh registry")
	}
}

func TestNewRegistry_IterationOrder(t *testing.T) {
	reg, err := NewRegistry(testDevices(), testVMs())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	want := []string{"studio-interface", "capture-card", "webcam"}
	for i, dev := range reg.AllDevices() {
		if dev.Name != want[i] {
			t.Errorf("AllDevices()[%d] = %q, want %q", i, dev.Name, want[i])
		}
	}
}

func TestNewRegistry_UnknownTargetVM(t *testing.T) {
	devices := testDevices()
	devices[1].TargetVM = "ghost"

	_, err := NewRegistry(devices, testVMs())
	if !errors.Is(err, ErrUnknownVM) {
		t.Fatalf("err = %v, want ErrUnknownVM", err)
	}
}

func TestNewRegistry_USBWithoutIdentity(t *testing.T) {
	devices := testDevices()
	devices[0].VendorID = ""

	_, err := NewRegistry(devices, testVMs())
	if !errors.Is(err, ErrMissingUSBIdentity) {
		t.Fatalf("err = %v, want ErrMissingUSBIdentity", err)
	}
}

func TestNewRegistry_BadPCIAddress(t *testing.T) {
	devices := testDevices()
	devices[1].ID = "not-an-address"

	_, err := NewRegistry(devices, testVMs())
	if !errors.Is(err, ErrInvalidPCIAddress) {
		t.Fatalf("err = %v, want ErrInvalidPCIAddress", err)
	}
}

func TestNewRegistry_DomainPrefixedPCIAddress(t *testing.T) {
	devices := testDevices()
	devices[1].ID = "0000:01:00.0"

	if _, err := NewRegistry(devices, testVMs()); err != nil {
		t.Fatalf("domain-prefixed address should validate, got: %v", err)
	}
}

func TestNewRegistry_InvalidKind(t *testing.T) {
	devices := testDevices()
	devices[2].Type = "firewire"

	_, err := NewRegistry(devices, testVMs())
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err = %v, want ErrInvalidKind", err)
	}
}

func TestNewRegistry_DuplicateDevice(t *testing.T) {
	devices := append(testDevices(), testDevices()[0])

	_, err := NewRegistry(devices, testVMs())
	if !errors.Is(err, ErrDuplicateDevice) {
		t.Fatalf("err = %v, want ErrDuplicateDevice", err)
	}
}

func TestNewRegistry_VMWithoutSocket(t *testing.T) {
	vms := testVMs()
	vms[0].QMPSocket = ""

	_, err := NewRegistry(testDevices(), vms)
	if !errors.Is(err, ErrMissingSocket) {
		t.Fatalf("err = %v, want ErrMissingSocket", err)
	}
}

func TestRegistry_SetState(t *testing.T) {
	reg, err := NewRegistry(testDevices(), testVMs())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	reg.SetState("webcam", StateAttached)
	if got := reg.StateOf("webcam"); got != StateAttached {
		t.Errorf("StateOf = %q, want attached", got)
	}
	if reg.AllDetached() {
		t.Error("AllDetached() = true with an attached device")
	}

	// Writes for unknown devices are dropped, not invented.
	reg.SetState("ghost", StateAttached)
	if got := reg.StateOf("ghost"); got != StateError {
		t.Errorf("StateOf(unknown) = %q, want error", got)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	reg, err := NewRegistry(testDevices(), testVMs())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	reg.SetState("capture-card", StateError)

	snap := reg.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() returned %d entries, want 3", len(snap))
	}
	if snap[1].Name != "capture-card" || snap[1].State != StateError {
		t.Errorf("snapshot[1] = %+v", snap[1])
	}
	if snap[0].State != StateDetached {
		t.Errorf("snapshot[0].State = %q, want detached", snap[0].State)
	}
}

func TestHotplugID(t *testing.T) {
	tests := []struct {
		name string
		dev  Device
		want string
	}{
		{"pci", Device{Name: "capture-card", Kind: KindPCI}, "pci-capture-card"},
		{"usb", Device{Name: "webcam", Kind: KindUSB}, "usb-webcam"},
		{"spaces sanitized", Device{Name: "studio mic", Kind: KindUSB}, "usb-studio_mic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dev.HotplugID(); got != tt.want {
				t.Errorf("HotplugID() = %q, want %q", got, tt.want)
			}
		})
	}
}
