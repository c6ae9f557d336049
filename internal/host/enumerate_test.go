package host

import (
	"context"
	"errors"
	"testing"
)

func stubEnumerator(output string, err error) *Enumerator {
	return &Enumerator{
		logger: noopLogger{},
		run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte(output), err
		},
	}
}

func TestListUSB(t *testing.T) {
	out := `Bus 001 Device 004: ID 046d:085e Logitech, Inc. BRIO Ultra HD Webcam
Bus 001 Device 002: ID 1235:8211 Focusrite-Novation Scarlett Solo 4th Gen
Bus 002 Device 001: ID 1d6b:0003 Linux Foundation 3.0 root hub
garbage line that should be skipped
`
	devices := stubEnumerator(out, nil).ListUSB(context.Background())

	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	if devices[0].VendorID != "046d" || devices[0].ProductID != "085e" {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].Description != "Focusrite-Novation Scarlett Solo 4th Gen" {
		t.Errorf("description = %q", devices[1].Description)
	}
}

func TestListUSB_CommandFailure(t *testing.T) {
	devices := stubEnumerator("", errors.New("exec: lsusb: not found")).ListUSB(context.Background())
	if len(devices) != 0 {
		t.Errorf("got %d devices, want empty list on failure", len(devices))
	}
}

func TestListPCI(t *testing.T) {
	out := `00:00.0 0600: 8086:a700 (rev 01)
01:00.0 0403: 8086:a170 (rev 31)

`
	devices := stubEnumerator(out, nil).ListPCI(context.Background())

	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if devices[1].Address != "01:00.0" {
		t.Errorf("address = %q", devices[1].Address)
	}
}

func TestListPCI_CommandFailure(t *testing.T) {
	devices := stubEnumerator("", errors.New("boom")).ListPCI(context.Background())
	if len(devices) != 0 {
		t.Errorf("got %d devices, want empty list on failure", len(devices))
	}
}
