package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.QMP.ConnectTimeout != 5 {
		t.Errorf("default qmp.connect_timeout = %d, want 5", cfg.QMP.ConnectTimeout)
	}
	if !cfg.Trigger.File.Enabled {
		t.Error("file trigger should be enabled by default")
	}
	if cfg.Trigger.File.Path != "/tmp/vm-killswitch-trigger" {
		t.Errorf("default trigger path = %q", cfg.Trigger.File.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default logging level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	content := `
qmp:
  connect_timeout: 3
  command_timeout: 7
trigger:
  file:
    enabled: true
    path: /run/killswitch/trigger
    poll_interval_ms: 250
logging:
  level: debug
  format: text
`
	path := writeFile(t, t.TempDir(), "config.yaml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := cfg.QMP.GetConnectTimeout(); got != 3*time.Second {
		t.Errorf("connect timeout = %v, want 3s", got)
	}
	if got := cfg.Trigger.File.GetPollInterval(); got != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", got)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("logging format = %q, want text", cfg.Logging.Format)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KILLSWITCH_DEVICES_FILE", "/etc/killswitch/devices.yaml")
	t.Setenv("KILLSWITCH_MQTT_PASSWORD", "hunter2")

	path := writeFile(t, t.TempDir(), "config.yaml", "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Daemon.DevicesFile != "/etc/killswitch/devices.yaml" {
		t.Errorf("devices file = %q, env override not applied", cfg.Daemon.DevicesFile)
	}
	if cfg.Trigger.MQTT.Password != "hunter2" {
		t.Error("mqtt password env override not applied")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() should fail for missing file")
	}
}

func TestValidate_NoTriggerSource(t *testing.T) {
	content := `
trigger:
  file:
    enabled: false
api:
  enabled: false
`
	path := writeFile(t, t.TempDir(), "config.yaml", content)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() should fail when no trigger source is enabled")
	}
	if !strings.Contains(err.Error(), "trigger source") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_BadQoS(t *testing.T) {
	content := `
trigger:
  mqtt:
    enabled: true
    topic: killswitch/toggle
    qos: 3
`
	path := writeFile(t, t.TempDir(), "config.yaml", content)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject qos=3")
	}
}

func TestLoadDevices_OrderAndGroups(t *testing.T) {
	content := `
audio_devices:
  - name: studio-interface
    type: usb
    id: "3-2"
    vendor_id: "1235"
    product_id: "8211"
    target_vm: workstation
video_devices:
  - name: capture-card
    type: pci
    id: "01:00.0"
    target_vm: workstation
  - name: webcam
    type: usb
    id: "1-4"
    vendor_id: "046d"
    product_id: "085e"
    target_vm: conference
`
	path := writeFile(t, t.TempDir(), "devices.yaml", content)

	entries, err := LoadDevices(path)
	if err != nil {
		t.Fatalf("LoadDevices() error: %v", err)
	}

	// Audio section first, then video, preserving document order.
	want := []string{"studio-interface", "capture-card", "webcam"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, name := range want {
		if entries[i].Name != name {
			t.Errorf("entries[%d].Name = %q, want %q", i, entries[i].Name, name)
		}
	}
}

func TestLoadDevices_Empty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "devices.yaml", "{}\n")

	if _, err := LoadDevices(path); err == nil {
		t.Fatal("LoadDevices() should fail for an empty document")
	}
}

func TestLoadVMs(t *testing.T) {
	content := `
virtual_machines:
  - name: workstation
    qmp_socket: /run/qemu/workstation.sock
    devices: [studio-interface, capture-card]
  - name: conference
    qmp_socket: /run/qemu/conference.sock
    devices: [webcam]
`
	path := writeFile(t, t.TempDir(), "vms.yaml", content)

	vms, err := LoadVMs(path)
	if err != nil {
		t.Fatalf("LoadVMs() error: %v", err)
	}

	if len(vms) != 2 {
		t.Fatalf("got %d VMs, want 2", len(vms))
	}
	if vms[0].QMPSocket != "/run/qemu/workstation.sock" {
		t.Errorf("qmp_socket = %q", vms[0].QMPSocket)
	}
	if len(vms[0].Devices) != 2 {
		t.Errorf("workstation devices = %v", vms[0].Devices)
	}
}

func TestLoadVMs_Empty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "vms.yaml", "virtual_machines: []\n")

	if _, err := LoadVMs(path); err == nil {
		t.Fatal("LoadVMs() should fail for an empty document")
	}
}
