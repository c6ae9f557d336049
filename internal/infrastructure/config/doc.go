// Package config loads and validates the daemon configuration.
//
// Configuration comes from three YAML documents:
//
//   - config.yaml: daemon settings (logging, triggers, journal, API, metrics)
//   - devices.yaml: passthrough devices grouped into audio and video sections
//   - vms.yaml: virtual machines and their QMP control sockets
//
// Loading order for config.yaml is defaults, then file values, then
// KILLSWITCH_* environment variable overrides. A configuration that fails
// Validate() is a fatal startup error; the daemon never runs with a partial
// or guessed configuration.
//
// The device and VM documents are parsed here but validated by the device
// registry, which owns the cross-document rules (target VM resolution,
// per-kind required identifiers).
package config
