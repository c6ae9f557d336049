package journal

import (
	"context"
	"time"

	"github.com/greyhollow/killswitch/internal/device"
)

// Attempt is one device's attach or detach attempt within a sweep.
type Attempt struct {
	ToggleID string
	Device   string
	VM       string
	Op       device.Op
	Outcome  device.Outcome

	// Detail carries the failure cause, empty on success.
	Detail string
}

// Sweep is the aggregate outcome of one full toggle pass.
type Sweep struct {
	ToggleID    string    `json:"toggle_id"`
	Op          device.Op `json:"op"`
	Succeeded   int       `json:"succeeded"`
	Total       int       `json:"total"`
	SecureAfter bool      `json:"secure_after"`
}

// SweepRecord is a persisted sweep row.
type SweepRecord struct {
	Sweep
	CreatedAt time.Time `json:"created_at"`
}

// Recorder is the journal interface the control loop and orchestrator
// write through. Implementations must tolerate concurrent calls.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
	RecordSweep(ctx context.Context, sweep Sweep) error
}

// Noop is a Recorder that discards everything, used when the journal is
// disabled.
type Noop struct{}

func (Noop) RecordAttempt(context.Context, Attempt) error { return nil }
func (Noop) RecordSweep(context.Context, Sweep) error     { return nil }
