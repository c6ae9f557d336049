package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSweepMetric records the outcome of one toggle sweep.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - op: sweep direction ("attach" or "detach")
//   - succeeded: devices that completed the operation
//   - total: devices attempted
//   - secureAfter: posture after the sweep
//   - duration: wall time of the sweep
func (c *Client) WriteSweepMetric(op string, succeeded, total int, secureAfter bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"toggle_sweeps",
		map[string]string{
			"op": op,
		},
		map[string]interface{}{
			"succeeded":    succeeded,
			"total":        total,
			"secure_after": secureAfter,
			"duration_ms":  duration.Milliseconds(),
			"complete":     succeeded == total,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceTransition records a single device's attach or detach attempt.
//
// Parameters:
//   - deviceName: configured device name
//   - op: "attach" or "detach"
//   - outcome: "success" or "failure"
func (c *Client) WriteDeviceTransition(deviceName, op, outcome string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_transitions",
		map[string]string{
			"device":  deviceName,
			"op":      op,
			"outcome": outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
