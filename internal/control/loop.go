package control

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greyhollow/killswitch/internal/device"
	"github.com/greyhollow/killswitch/internal/journal"
	"github.com/greyhollow/killswitch/internal/trigger"
)

// shutdownSweepTimeout bounds the final detach sweep once the run context
// has already been cancelled.
const shutdownSweepTimeout = 30 * time.Second

// eventBuffer is the trigger fan-in channel capacity. Events arriving
// while a toggle is in flight queue here rather than blocking sources.
const eventBuffer = 8

// Toggler runs one full sweep over every configured device.
type Toggler interface {
	ToggleAll(ctx context.Context, op device.Op, toggleID string) (succeeded, total int)
}

// Metrics receives per-sweep measurements. Implementations must not block
// the toggle path.
type Metrics interface {
	RecordSweep(sweep journal.Sweep, duration time.Duration)
}

// Logger is the logging interface used by the control loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetrics struct{}

func (noopMetrics) RecordSweep(journal.Sweep, time.Duration) {}

// Loop owns the secure flag and serializes toggle sweeps.
type Loop struct {
	registry *device.Registry
	toggler  Toggler
	recorder journal.Recorder
	metrics  Metrics
	logger   Logger
	sources  []trigger.Source

	// mu guards the posture fields and serializes sweeps: exactly one
	// toggle runs at a time, and the flag is only read or written under it.
	mu         sync.Mutex
	secure     bool
	lastToggle time.Time
}

// New creates a control loop over the given registry and toggler.
// The posture starts secure; Run performs the enforcing detach sweep.
func New(registry *device.Registry, toggler Toggler) *Loop {
	return &Loop{
		registry: registry,
		toggler:  toggler,
		recorder: journal.Noop{},
		metrics:  noopMetrics{},
		logger:   noopLogger{},
		secure:   true,
	}
}

// SetLogger sets the logger used by the loop.
func (l *Loop) SetLogger(logger Logger) {
	if logger != nil {
		l.logger = logger
	}
}

// SetRecorder sets the journal recorder for sweep outcomes.
func (l *Loop) SetRecorder(recorder journal.Recorder) {
	if recorder != nil {
		l.recorder = recorder
	}
}

// SetMetrics sets the metrics sink for sweep measurements.
func (l *Loop) SetMetrics(metrics Metrics) {
	if metrics != nil {
		l.metrics = metrics
	}
}

// AddSource registers a trigger source. Sources added after Run starts
// are ignored.
func (l *Loop) AddSource(src trigger.Source) {
	if src != nil {
		l.sources = append(l.sources, src)
	}
}

// Secure reports the current posture.
func (l *Loop) Secure() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.secure
}

// LastToggle returns when the most recent sweep finished, zero if none
// has run yet.
func (l *Loop) LastToggle() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastToggle
}

// Run enforces the starting posture, then services trigger events until
// the context is cancelled. A final detach sweep always runs on the way
// out, on a fresh context since the run context is already done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("enforcing secure posture at startup", "devices", l.registry.DeviceCount())
	l.sweep(ctx, device.OpDetach)

	events := make(chan trigger.Event, eventBuffer)

	var wg sync.WaitGroup
	for _, src := range l.sources {
		wg.Add(1)
		go func(src trigger.Source) {
			defer wg.Done()
			if err := src.Run(ctx, events); err != nil {
				l.logger.Error("trigger source stopped", "source", src.Name(), "error", err)
			}
		}(src)
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			l.shutdownSweep()
			return nil
		case ev := <-events:
			l.logger.Info("toggle triggered", "source", ev.Source)
			l.Toggle(ctx)
		}
	}
}

// Toggle runs one sweep in the direction implied by the current posture
// and returns the resulting sweep summary. Concurrent callers serialize.
func (l *Loop) Toggle(ctx context.Context) journal.Sweep {
	l.mu.Lock()
	defer l.mu.Unlock()

	op := device.OpDetach
	if l.secure {
		op = device.OpAttach
	}

	sweep, elapsed := l.runSweep(ctx, op)

	if sweep.Succeeded == sweep.Total {
		l.secure = op == device.OpDetach
	} else {
		l.logger.Warn("partial sweep, posture unchanged",
			"op", op,
			"succeeded", sweep.Succeeded,
			"total", sweep.Total,
			"secure", l.secure)
	}

	return l.finishSweep(ctx, sweep, elapsed)
}

// sweep runs a forced sweep in a fixed direction, used for the startup
// and shutdown passes. It updates the posture on full success but never
// flips it toward operational.
func (l *Loop) sweep(ctx context.Context, op device.Op) journal.Sweep {
	l.mu.Lock()
	defer l.mu.Unlock()

	sweep, elapsed := l.runSweep(ctx, op)

	if op == device.OpDetach && sweep.Succeeded == sweep.Total {
		l.secure = true
	}

	return l.finishSweep(ctx, sweep, elapsed)
}

// finishSweep stamps the resulting posture on the sweep and fans it out
// to the journal and metrics sinks. Callers hold l.mu.
func (l *Loop) finishSweep(ctx context.Context, sweep journal.Sweep, elapsed time.Duration) journal.Sweep {
	sweep.SecureAfter = l.secure
	l.lastToggle = time.Now()

	l.metrics.RecordSweep(sweep, elapsed)
	if err := l.recorder.RecordSweep(ctx, sweep); err != nil {
		l.logger.Warn("sweep not journaled", "toggle_id", sweep.ToggleID, "error", err)
	}

	return sweep
}

// runSweep executes one pass and reports it. Callers hold l.mu.
func (l *Loop) runSweep(ctx context.Context, op device.Op) (journal.Sweep, time.Duration) {
	toggleID := uuid.NewString()
	start := time.Now()

	l.logger.Info("sweep starting", "toggle_id", toggleID, "op", op)
	succeeded, total := l.toggler.ToggleAll(ctx, op, toggleID)
	elapsed := time.Since(start)

	if succeeded == total {
		l.logger.Info("sweep complete",
			"toggle_id", toggleID, "op", op, "devices", total, "duration", elapsed)
	} else {
		l.logger.Warn("sweep degraded",
			"toggle_id", toggleID, "op", op,
			"succeeded", succeeded, "total", total, "duration", elapsed)
	}

	sweep := journal.Sweep{
		ToggleID:  toggleID,
		Op:        op,
		Succeeded: succeeded,
		Total:     total,
	}

	return sweep, elapsed
}

// shutdownSweep detaches everything on a bounded fresh context.
func (l *Loop) shutdownSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownSweepTimeout)
	defer cancel()

	l.logger.Info("shutdown, detaching all devices")
	l.sweep(ctx, device.OpDetach)
}
