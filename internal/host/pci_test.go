package host

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeSysfs builds a minimal /sys/bus/pci tree for one device.
// When driver is non-empty, the device gets a driver symlink pointing at a
// driver directory containing a writable unbind file.
func fakeSysfs(t *testing.T, addr, driver string) string {
	t.Helper()
	root := t.TempDir()

	devDir := filepath.Join(root, "bus", "pci", "devices", addr)
	if err := os.MkdirAll(devDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "bus", "pci", "drivers_probe"), nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(devDir, "driver_override"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	if driver != "" {
		drvDir := filepath.Join(root, "bus", "pci", "drivers", driver)
		if err := os.MkdirAll(drvDir, 0750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(drvDir, "unbind"), nil, 0600); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(drvDir, filepath.Join(devDir, "driver")); err != nil {
			t.Fatal(err)
		}
	}

	return root
}

func readFileString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestUnbindPCI_BoundDevice(t *testing.T) {
	root := fakeSysfs(t, "0000:01:00.0", "snd_hda_intel")
	b := &Binder{SysfsRoot: root, logger: noopLogger{}}

	if err := b.UnbindPCI("01:00.0"); err != nil {
		t.Fatalf("UnbindPCI() error: %v", err)
	}

	got := readFileString(t, filepath.Join(root, "bus", "pci", "drivers", "snd_hda_intel", "unbind"))
	if got != "0000:01:00.0" {
		t.Errorf("unbind wrote %q, want full address", got)
	}
}

func TestUnbindPCI_AlreadyUnbound(t *testing.T) {
	root := fakeSysfs(t, "0000:01:00.0", "")
	b := &Binder{SysfsRoot: root, logger: noopLogger{}}

	// No driver symlink: unbind is an idempotent no-op success.
	if err := b.UnbindPCI("01:00.0"); err != nil {
		t.Fatalf("UnbindPCI() on unbound device: %v", err)
	}
}

func TestBindPCI_FromExistingDriver(t *testing.T) {
	root := fakeSysfs(t, "0000:01:00.0", "snd_hda_intel")
	b := &Binder{SysfsRoot: root, logger: noopLogger{}}

	if err := b.BindPCI("01:00.0", ""); err != nil {
		t.Fatalf("BindPCI() error: %v", err)
	}

	devDir := filepath.Join(root, "bus", "pci", "devices", "0000:01:00.0")
	if got := readFileString(t, filepath.Join(devDir, "driver_override")); got != "vfio-pci" {
		t.Errorf("driver_override = %q, want vfio-pci", got)
	}
	if got := readFileString(t, filepath.Join(root, "bus", "pci", "drivers_probe")); got != "0000:01:00.0" {
		t.Errorf("drivers_probe = %q, want full address", got)
	}
}

func TestBindPCI_AlreadyBound(t *testing.T) {
	root := fakeSysfs(t, "0000:01:00.0", "vfio-pci")
	b := &Binder{SysfsRoot: root, logger: noopLogger{}}

	if err := b.BindPCI("01:00.0", "vfio-pci"); err != nil {
		t.Fatalf("BindPCI() on already-bound device: %v", err)
	}

	// Early return: no probe request issued.
	if got := readFileString(t, filepath.Join(root, "bus", "pci", "drivers_probe")); got != "" {
		t.Errorf("drivers_probe = %q, want untouched", got)
	}
}

func TestBindPCI_MissingDevice(t *testing.T) {
	b := &Binder{SysfsRoot: t.TempDir(), logger: noopLogger{}}

	err := b.BindPCI("01:00.0", "")
	if !errors.Is(err, ErrBindFailed) {
		t.Fatalf("err = %v, want ErrBindFailed", err)
	}
}

func TestCanonicalPCIAddress(t *testing.T) {
	tests := []struct{ in, want string }{
		{"01:00.0", "0000:01:00.0"},
		{"0000:01:00.0", "0000:01:00.0"},
		{"0002:03:04.7", "0002:03:04.7"},
	}
	for _, tt := range tests {
		if got := canonicalPCIAddress(tt.in); got != tt.want {
			t.Errorf("canonicalPCIAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
