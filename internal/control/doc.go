// Package control owns the daemon's security posture and serializes
// toggle sweeps against it.
//
// The loop holds a single boolean: secure means every passthrough device
// is detached from its VM, operational means the devices are attached.
// A toggle event flips the posture by sweeping every configured device in
// one direction. The posture flag is only promoted when the whole sweep
// succeeds; a partial sweep leaves the flag where it was so the next
// trigger retries the same direction.
//
// The loop runs one detach sweep before accepting triggers and one more
// on shutdown, so the host always trends toward the detached state when
// the daemon starts or stops.
package control
