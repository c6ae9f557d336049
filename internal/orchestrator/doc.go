// Package orchestrator drives device attach/detach against target VMs.
//
// The orchestrator owns the per-device state machine: an operation moves a
// device into Transitioning, then to Attached or Detached on success, or
// to Error on any failure. Transitioning never survives past the call, and
// a retry from Error is a fresh attempt rather than a resumption.
//
// A toggle is one full sweep: every configured device gets exactly one
// attach or detach attempt, in registry order, with no early abort. A
// partially toggled fleet is an expected degraded state that must stay
// visible — the sweep reports its success tally and leaves the policy
// decision to the control loop.
//
// QMP sessions are opened per operation and always closed before the
// operation returns, on every path.
package orchestrator
