package trigger

import (
	"context"
	"time"
)

// Event is one toggle request from a source.
type Event struct {
	// Source names the mechanism that fired ("file", "mqtt", "api").
	Source string

	// At is when the source observed the trigger.
	At time.Time
}

// Source is an injectable toggle event source.
type Source interface {
	// Name identifies the source in logs and events.
	Name() string

	// Run watches for triggers and sends an Event per observation until
	// the context is cancelled. It returns nil on clean shutdown.
	Run(ctx context.Context, events chan<- Event) error
}

// Logger is the logging interface used by trigger sources.
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

// send delivers an event unless the context ends first.
func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
