// Package qmp implements a minimal QEMU Machine Protocol client.
//
// The client speaks the newline-delimited JSON protocol over a VM's QMP
// unix socket: the server sends an unsolicited greeting, the client
// negotiates capabilities, and from then on the exchange is strictly one
// request, one response. That is all device hotplug needs — attach and
// detach are rare, latency-insensitive operations, so there is no
// pipelining, no event subscription, and no connection reuse across
// toggles. Asynchronous QMP events that arrive between a request and its
// response are skipped.
//
// Every operation is bounded by a deadline; a timed-out session is a hard
// session failure. A command rejected by the monitor is a *CommandError
// carrying the protocol-reported class and description, which is distinct
// from a transport failure: the session remains usable.
//
//	client, err := qmp.Connect(ctx, "/run/qemu/workstation.sock", qmp.Config{})
//	if err != nil { ... }
//	defer client.Close()
//
//	_, err = client.Execute(ctx, "device_add", map[string]any{
//	    "driver": "usb-host", "id": "usb-webcam",
//	})
package qmp
