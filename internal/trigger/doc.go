// Package trigger provides the toggle event sources.
//
// A Source is anything that can say "toggle now": the reference
// filesystem marker, an MQTT topic, or the status API's toggle endpoint.
// Sources are interchangeable behind one interface so the control loop
// never knows which physical mechanism fired. All sources fan into a
// single event channel; the control loop serializes the toggles
// themselves, so a burst of events collapses into sequential sweeps.
package trigger
