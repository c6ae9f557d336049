package trigger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/greyhollow/killswitch/internal/infrastructure/config"
)

// FileTrigger polls a filesystem marker and fires a toggle event whenever
// the marker appears or its modification time changes. The marker is
// removed after each observation so a single touch yields a single toggle.
type FileTrigger struct {
	path     string
	interval time.Duration
	logger   Logger
}

// NewFileTrigger creates a file trigger from configuration.
func NewFileTrigger(cfg config.FileTriggerConfig) *FileTrigger {
	return &FileTrigger{
		path:     cfg.Path,
		interval: cfg.GetPollInterval(),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger used by the trigger.
func (t *FileTrigger) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// Name identifies the source in logs and events.
func (t *FileTrigger) Name() string { return "file" }

// Run polls the marker path until the context is cancelled.
func (t *FileTrigger) Run(ctx context.Context, events chan<- Event) error {
	t.logger.Info("file trigger watching", "path", t.path, "interval", t.interval)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var lastMod time.Time

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("file trigger stopped", "path", t.path)
			return nil
		case <-ticker.C:
			info, err := os.Stat(t.path)
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					t.logger.Warn("file trigger stat failed", "path", t.path, "error", err)
				}
				continue
			}

			if info.ModTime().Equal(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			t.logger.Info("file trigger fired", "path", t.path)
			send(ctx, events, Event{Source: t.Name(), At: time.Now()})

			if err := t.consume(); err != nil {
				t.logger.Warn("file trigger marker not removed", "path", t.path, "error", err)
			}
		}
	}
}

// consume removes the marker so the same touch does not fire twice.
func (t *FileTrigger) consume() error {
	if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", t.path, err)
	}
	return nil
}
